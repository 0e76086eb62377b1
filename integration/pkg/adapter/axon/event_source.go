package axon

import (
	"context"

	"github.com/Flouse/forcerelay/integration/pkg/monitor"
	"github.com/Flouse/forcerelay/protocol"
)

var _ monitor.EventSource = (*eventSource)(nil)

// eventSource feeds the monitor with every handler event.
type eventSource struct {
	a *Adapter
}

func (s *eventSource) LatestHeight(ctx context.Context) (uint64, error) {
	return s.a.tip(ctx)
}

func (s *eventSource) EventsInRange(ctx context.Context, from, to uint64) ([]protocol.IBCEventWithHeight, error) {
	logs, err := s.a.filterLogs(ctx, from, to, nil)
	if err != nil {
		return nil, err
	}
	return s.a.translator.TranslateAll(logs, nil)
}
