package llm

import (
	"context"
	"errors"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// ErrSimulatedFailure is the injected mid-stream fault.
var ErrSimulatedFailure = errors.New("simulated provider failure")

// MockChatModel replays scripted deltas. FailAfter > 0 injects a provider
// error after that many deltas, for mid-stream failure tests.
type MockChatModel struct {
	Deltas    []string
	FailAfter int
	LastMsgs  []domain.Message
}

func (m *MockChatModel) Stream(ctx context.Context, messages []domain.Message, _ map[string]any) (<-chan port.StreamEvent, error) {
	m.LastMsgs = messages

	events := make(chan port.StreamEvent)
	go func() {
		defer close(events)
		for i, d := range m.Deltas {
			if m.FailAfter > 0 && i >= m.FailAfter {
				events <- port.StreamEvent{Err: &domain.ProviderError{Err: ErrSimulatedFailure}}
				return
			}
			select {
			case events <- port.StreamEvent{Delta: d}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func (m *MockChatModel) ModelName() string {
	return "mock"
}
