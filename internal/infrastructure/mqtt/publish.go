package mqtt

import "fmt"

// maxPayloadSize bounds a single message. Device state documents are a
// few hundred bytes; anything near this limit is a caller bug.
const maxPayloadSize = 64 << 10

// Publish sends payload on topic and waits up to the publish timeout for
// the broker acknowledgment (QoS 1 and 2) or for the write to complete
// (QoS 0).
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	case !c.IsConnected():
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("%w: %w after %v", ErrPublishFailed, ErrTimeout, c.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
