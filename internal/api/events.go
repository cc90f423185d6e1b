package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/procmux/internal/events"
)

// registerSSERoutes registers the live event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of process lifecycle events and output lines",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"proc-started":       events.ProcStartedEvent{},
		"proc-exited":        events.ProcExitedEvent{},
		"proc-state-changed": events.ProcStateChangedEvent{},
		"proc-line":          events.ProcLineEvent{},
		"procs-reloaded":     events.ProcsReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 64)
		unsubscribers := []func(){
			events.SubscribeToChannel[events.ProcStartedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.ProcExitedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.ProcStateChangedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.ProcLineEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.ProcsReloadedEvent](s.bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Connection confirmation so clients can detect readiness.
		if err := send.Data(events.ProcsReloadedEvent{
			Path:      "",
			Count:     len(s.group.Members()),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
