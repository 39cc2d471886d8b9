package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/nerrad567/plcbridge/internal/device"
)

// TimestampLayout is the publish timestamp format: UTC, millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// PublishMessage is the state update sent to every bus sink.
type PublishMessage struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Value     int    `json:"value"`
	Timestamp string `json:"timestamp"`
}

// NewPublishMessage builds the message for d at time at.
func NewPublishMessage(d device.Device, at time.Time) PublishMessage {
	return PublishMessage{
		Address:   d.Address,
		Name:      d.Name,
		Type:      string(d.Type),
		Value:     d.Value,
		Timestamp: FormatTimestamp(at),
	}
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// WriteCommand is a decoded inbound write. The address comes from the topic.
type WriteCommand struct {
	Value int
}

// Codec converts between wire payloads and messages.
type Codec interface {
	EncodePublish(msg PublishMessage) ([]byte, error)
	DecodeWrite(payload []byte) (WriteCommand, error)
}

// JSONCodec is the default Codec.
type JSONCodec struct{}

// EncodePublish implements Codec.
func (JSONCodec) EncodePublish(msg PublishMessage) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding publish message: %w", err)
	}
	return b, nil
}

// DecodeWrite implements Codec. The payload must be a JSON object whose
// "value" member is an integer literal in the 32-bit range.
func (JSONCodec) DecodeWrite(payload []byte) (WriteCommand, error) {
	var raw struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return WriteCommand{}, fmt.Errorf("%w: %w", ErrMalformedCommand, err)
	}

	lit := bytes.TrimSpace(raw.Value)
	if len(lit) == 0 || bytes.Equal(lit, []byte("null")) {
		return WriteCommand{}, fmt.Errorf("%w: missing value", ErrMalformedCommand)
	}

	n, err := strconv.ParseInt(string(lit), 10, 64)
	if err != nil {
		return WriteCommand{}, fmt.Errorf("%w: value %s is not an integer", ErrMalformedCommand, lit)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return WriteCommand{}, fmt.Errorf("%w: value %d out of range", ErrMalformedCommand, n)
	}

	return WriteCommand{Value: int(n)}, nil
}
