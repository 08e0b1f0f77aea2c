// Package api provides the HTTP ingress for the relay service.
//
// It exposes a publish endpoint that accepts messages from local clients and
// routes them to a supervised broker connection, plus a health endpoint for
// monitoring.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
