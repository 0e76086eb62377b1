package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Flouse/forcerelay/integration/pkg/monitoring"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// fakeSource serves events from a fixed chain of blocks.
type fakeSource struct {
	mu      sync.Mutex
	tip     uint64
	events  map[uint64][]protocol.IBCEventWithHeight
	ranges  [][2]uint64
	failTip bool
}

func (f *fakeSource) LatestHeight(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTip {
		return 0, errors.New("connection refused")
	}
	return f.tip, nil
}

func (f *fakeSource) EventsInRange(_ context.Context, from, to uint64) ([]protocol.IBCEventWithHeight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranges = append(f.ranges, [2]uint64{from, to})
	var out []protocol.IBCEventWithHeight
	for h := from; h <= to; h++ {
		out = append(out, f.events[h]...)
	}
	return out, nil
}

func (f *fakeSource) advance(tip uint64, evs ...protocol.IBCEventWithHeight) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tip = tip
	for _, ev := range evs {
		h := ev.Height.RevisionHeight
		f.events[h] = append(f.events[h], ev)
	}
}

func sendPacket(height, seq uint64) protocol.IBCEventWithHeight {
	return protocol.IBCEventWithHeight{
		Event:  protocol.SendPacket{Packet: channeltypes.Packet{Sequence: seq}},
		Height: protocol.NewHeight(height),
	}
}

func newTestService(t *testing.T, source EventSource, cfg Config) *Service {
	t.Helper()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	svc, err := NewService("axon-2022", source, cfg, logger.Test(t), monitoring.NewNoopMetricLabeler())
	require.NoError(t, err)
	return svc
}

func receive(t *testing.T, sub protocol.Subscription) protocol.EventBatch {
	t.Helper()
	select {
	case batch := <-sub.Events():
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
		return protocol.EventBatch{}
	}
}

func TestService_DeliversBatchesPerBlock(t *testing.T) {
	source := &fakeSource{tip: 10, events: map[uint64][]protocol.IBCEventWithHeight{}}
	svc := newTestService(t, source, Config{})
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Close()

	source.advance(12, sendPacket(11, 1), sendPacket(11, 2), sendPacket(12, 3))
	sub := svc.Subscription()

	first := receive(t, sub)
	assert.Equal(t, "axon-2022", first.ChainID)
	assert.Equal(t, protocol.NewHeight(11), first.Height)
	require.Len(t, first.Events, 2)

	second := receive(t, sub)
	assert.Equal(t, protocol.NewHeight(12), second.Height)
	require.Len(t, second.Events, 1)
	assert.Equal(t, uint64(3), second.Events[0].Event.(protocol.SendPacket).Packet.Sequence)
}

func TestService_SubscriptionIsStable(t *testing.T) {
	source := &fakeSource{tip: 1, events: map[uint64][]protocol.IBCEventWithHeight{}}
	svc := newTestService(t, source, Config{})
	assert.Equal(t, svc.Subscription().ID(), svc.Subscription().ID())
	assert.NotEmpty(t, svc.Subscription().ID())
}

func TestService_CloseClosesSubscription(t *testing.T) {
	source := &fakeSource{tip: 1, events: map[uint64][]protocol.IBCEventWithHeight{}}
	svc := newTestService(t, source, Config{})
	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Ready())
	require.NoError(t, svc.Close())

	_, open := <-svc.Subscription().Events()
	assert.False(t, open)
	assert.Error(t, svc.Ready())
}

func TestService_StartFailsWithoutTip(t *testing.T) {
	source := &fakeSource{failTip: true}
	svc := newTestService(t, source, Config{})
	require.Error(t, svc.Start(context.Background()))
}

func TestService_BoundsBlockRange(t *testing.T) {
	source := &fakeSource{tip: 0, events: map[uint64][]protocol.IBCEventWithHeight{}}
	svc := newTestService(t, source, Config{MaxBlockRange: 5})
	require.NoError(t, svc.Start(context.Background()))
	source.advance(12, sendPacket(12, 1))

	batch := receive(t, svc.Subscription())
	assert.Equal(t, protocol.NewHeight(12), batch.Height)
	require.NoError(t, svc.Close())

	source.mu.Lock()
	defer source.mu.Unlock()
	for _, r := range source.ranges {
		assert.LessOrEqual(t, r[1]-r[0]+1, uint64(5))
	}
}

func TestBatchByHeight(t *testing.T) {
	batches := batchByHeight("ckb", []protocol.IBCEventWithHeight{
		sendPacket(3, 1), sendPacket(3, 2), sendPacket(5, 3), sendPacket(6, 4),
	})
	require.Len(t, batches, 3)
	assert.Len(t, batches[0].Events, 2)
	assert.Equal(t, protocol.NewHeight(6), batches[2].Height)
	assert.Nil(t, batchByHeight("ckb", nil))
}
