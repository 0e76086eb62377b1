// Package monitor polls a chain for IBC events and delivers them to the
// adapter's subscriber.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Flouse/forcerelay/integration/pkg/monitoring"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"
)

const (
	DEFAULT_POLL_INTERVAL = 2 * time.Second
	// DEFAULT_RPC_TIMEOUT bounds a single poll so a hanging node cannot stall
	// shutdown.
	DEFAULT_RPC_TIMEOUT     = 10 * time.Second
	DEFAULT_MAX_BLOCK_RANGE = 100
	subscriptionBuffer      = 64
)

// EventSource yields the IBC events a chain recorded.
type EventSource interface {
	LatestHeight(ctx context.Context) (uint64, error)
	// EventsInRange returns the events of blocks [from, to] ordered by height.
	EventsInRange(ctx context.Context, from, to uint64) ([]protocol.IBCEventWithHeight, error)
}

type Config struct {
	PollInterval  time.Duration
	RPCTimeout    time.Duration
	MaxBlockRange uint64
}

type subscription struct {
	id     string
	events chan protocol.EventBatch
}

func (s *subscription) ID() string                         { return s.id }
func (s *subscription) Events() <-chan protocol.EventBatch { return s.events }

// Service polls an EventSource from the tip seen at start and delivers one
// batch per block that has events.
type Service struct {
	services.StateMachine
	stopCh  services.StopChan
	wg      sync.WaitGroup
	chainID string
	source  EventSource
	cfg     Config
	sub     *subscription
	// next is the first block not scanned yet. Only the poll loop touches it
	// after Start.
	next    uint64
	lggr    logger.Logger
	metrics *monitoring.MetricLabeler
	running atomic.Bool
}

func NewService(chainID string, source EventSource, cfg Config, lggr logger.Logger, metrics *monitoring.MetricLabeler) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("event source required")
	}
	if lggr == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DEFAULT_POLL_INTERVAL
	}
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = DEFAULT_RPC_TIMEOUT
	}
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = DEFAULT_MAX_BLOCK_RANGE
	}
	return &Service{
		chainID: chainID,
		source:  source,
		cfg:     cfg,
		sub: &subscription{
			id:     uuid.NewString(),
			events: make(chan protocol.EventBatch, subscriptionBuffer),
		},
		lggr:    logger.Named(lggr, "Monitor"),
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}, nil
}

// Subscription is the single handle of this monitor.
func (s *Service) Subscription() protocol.Subscription {
	return s.sub
}

func (s *Service) Start(ctx context.Context) error {
	return s.StartOnce(s.Name(), func() error {
		timeoutCtx, cancel := context.WithTimeout(ctx, s.cfg.RPCTimeout)
		defer cancel()
		tip, err := s.source.LatestHeight(timeoutCtx)
		if err != nil {
			return fmt.Errorf("failed to read tip of %s: %w", s.chainID, err)
		}
		s.next = tip

		s.running.Store(true)
		s.wg.Go(func() {
			s.pollLoop()
		})

		s.lggr.Infow("Event monitor started",
			"chainID", s.chainID,
			"fromBlock", tip,
			"pollInterval", s.cfg.PollInterval)
		return nil
	})
}

// Close stops polling and closes the subscription channel.
func (s *Service) Close() error {
	return s.StopOnce(s.Name(), func() error {
		close(s.stopCh)
		s.wg.Wait()
		close(s.sub.events)
		s.running.Store(false)

		s.lggr.Infow("Event monitor stopped", "chainID", s.chainID)
		return nil
	})
}

func (s *Service) pollLoop() {
	ctx, cancel := s.stopCh.NewCtx()
	defer cancel()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll scans at most MaxBlockRange blocks past the last scanned one. A
// failed poll is retried from the same block on the next tick.
func (s *Service) poll(ctx context.Context) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.cfg.RPCTimeout)
	defer cancel()

	tip, err := s.source.LatestHeight(timeoutCtx)
	if err != nil {
		s.lggr.Errorw("Failed to get latest height", "chainID", s.chainID, "error", err)
		return
	}
	if tip < s.next {
		return
	}
	to := min(tip, s.next+s.cfg.MaxBlockRange-1)

	evs, err := s.source.EventsInRange(timeoutCtx, s.next, to)
	if err != nil {
		s.lggr.Errorw("Failed to get events",
			"chainID", s.chainID,
			"from", s.next,
			"to", to,
			"error", err)
		return
	}

	for _, batch := range batchByHeight(s.chainID, evs) {
		select {
		case s.sub.events <- batch:
		case <-ctx.Done():
			return
		}
		for _, ev := range batch.Events {
			s.metrics.IncrementEventsObserved(ev.Event.Kind().String())
		}
	}
	s.metrics.SetMonitorHeight(to)
	s.lggr.Debugw("Scanned blocks", "chainID", s.chainID, "from", s.next, "to", to, "events", len(evs))
	s.next = to + 1
}

// batchByHeight groups height-ordered events into one batch per block.
func batchByHeight(chainID string, evs []protocol.IBCEventWithHeight) []protocol.EventBatch {
	var batches []protocol.EventBatch
	for _, ev := range evs {
		if n := len(batches); n > 0 && batches[n-1].Height.EQ(ev.Height) {
			batches[n-1].Events = append(batches[n-1].Events, ev)
			continue
		}
		batches = append(batches, protocol.EventBatch{
			ChainID: chainID,
			Height:  ev.Height,
			Events:  []protocol.IBCEventWithHeight{ev},
		})
	}
	return batches
}

func (s *Service) Ready() error {
	if !s.running.Load() {
		return errors.New("event monitor not running")
	}
	return nil
}

func (s *Service) HealthReport() map[string]error {
	return map[string]error{s.Name(): s.Ready()}
}

func (s *Service) Name() string {
	return "monitor.Service"
}
