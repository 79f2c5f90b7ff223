package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/nodeexec/internal/events"
)

// EventStreamInput selects which events a client receives.
type EventStreamInput struct {
	Output bool `query:"output" doc:"Also stream every output line"`
}

// registerEventRoutes registers the executor event stream.
func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time executor and batch lifecycle events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"executor-started":  events.ExecutorStartedEvent{},
		"executor-output":   events.ExecutorOutputEvent{},
		"executor-finished": events.ExecutorFinishedEvent{},
		"batch-started":     events.BatchStartedEvent{},
		"batch-finished":    events.BatchFinishedEvent{},
	}, func(ctx context.Context, input *EventStreamInput, send sse.Sender) {
		if s.eventBus == nil {
			return
		}

		eventCh := make(chan any, 64)
		unsubscribers := []func(){
			events.SubscribeToChannel[events.ExecutorStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ExecutorFinishedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.BatchStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.BatchFinishedEvent](s.eventBus, eventCh),
		}
		if input.Output {
			unsubscribers = append(unsubscribers, events.SubscribeToChannel[events.ExecutorOutputEvent](s.eventBus, eventCh))
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
