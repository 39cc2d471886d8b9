package monitor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/plcbridge/internal/device"
)

// CommandSuffix is the last topic segment of a write command.
const CommandSuffix = "set"

// ParseCommandTopic extracts the device address from a command topic of
// the form {prefix}/{address}/set. The prefix may itself contain slashes.
func ParseCommandTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[len(parts)-1] != CommandSuffix {
		return "", fmt.Errorf("%w: %q", ErrNotCommandTopic, topic)
	}
	address := parts[len(parts)-2]
	if address == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptyAddress, topic)
	}
	return address, nil
}

type writeRequest struct {
	source  string
	topic   string
	address string
	value   int
}

// HandleCommand validates an inbound write command and queues it for the
// write worker. It never blocks on the controller. A nil return means the
// command was accepted, not that the write succeeded.
func (s *Service) HandleCommand(source, topic string, payload []byte) error {
	ev := CommandEvent{Source: source, Topic: topic, At: s.now()}

	if s.closed.Load() {
		return ErrClosed
	}

	address, err := ParseCommandTopic(topic)
	if err != nil {
		if errors.Is(err, ErrNotCommandTopic) {
			s.logDebug("ignoring non-command message", "source", source, "topic", topic)
			return err
		}
		return s.reject(ev, err)
	}
	ev.Address = address

	d, ok := s.registry.Lookup(address)
	if !ok {
		return s.reject(ev, fmt.Errorf("%w: %s", ErrUnknownAddress, address))
	}

	cmd, err := s.codec.DecodeWrite(payload)
	if err != nil {
		return s.reject(ev, err)
	}
	value := cmd.Value
	ev.Value = &value

	if err := device.ValidateValue(d, value); err != nil {
		return s.reject(ev, fmt.Errorf("%w: %w", ErrInvalidValue, err))
	}

	if !s.link.IsConnected() {
		return s.reject(ev, ErrNotConnected)
	}

	req := writeRequest{source: source, topic: topic, address: address, value: value}
	select {
	case s.writes <- req:
		s.logDebug("write command queued", "source", source, "address", address, "value", value)
		return nil
	default:
		ev.Verdict = VerdictDropped
		ev.Reason = ErrQueueFull.Error()
		s.logWarn("write command dropped", "source", source, "address", address, "error", ErrQueueFull)
		s.record(ev)
		return ErrQueueFull
	}
}

func (s *Service) reject(ev CommandEvent, err error) error {
	ev.Verdict = VerdictRejected
	ev.Reason = err.Error()
	s.logWarn("write command rejected",
		"source", ev.Source,
		"topic", ev.Topic,
		"error", err,
	)
	s.record(ev)
	return err
}

func (s *Service) record(ev CommandEvent) {
	if s.recorder != nil {
		s.recorder.RecordCommand(ev)
	}
	if s.metrics != nil {
		s.metrics.RecordCommand(ev.Source, string(ev.Verdict))
	}
}

func (s *Service) writeWorker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.writes:
			s.execute(req)
		}
	}
}

func (s *Service) execute(req writeRequest) {
	value := req.value
	ev := CommandEvent{
		Source:  req.source,
		Topic:   req.topic,
		Address: req.address,
		Value:   &value,
		Verdict: VerdictWritten,
		At:      s.now(),
	}
	if err := s.write(req.address, req.value); err != nil {
		ev.Verdict = VerdictFailed
		ev.Reason = err.Error()
	}
	s.record(ev)
}
