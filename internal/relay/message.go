package relay

// MQTT Quality of Service levels.
const (
	QoSAtMostOnce  byte = 0
	QoSAtLeastOnce byte = 1
	QoSExactlyOnce byte = 2
)

// PublishMessage is one outbound publish request on its way to a broker.
//
// A message is constructed per ingress request, traverses exactly one relay's
// publish queue, and is consumed exactly once by that relay's publish loop.
//
// QoS carries the level requested by the caller and is validated at ingress;
// delivery to the broker is always at-least-once.
type PublishMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}
