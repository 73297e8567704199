package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-icewatch/config"
	"go-icewatch/types"
)

type fakeCollector struct {
	name    string
	reports []*types.Report
	err     error
	polls   atomic.Int32
}

func (f *fakeCollector) Name() string            { return f.name }
func (f *fakeCollector) Trust() types.Trust      { return types.TrustNormal }
func (f *fakeCollector) Interval() time.Duration { return time.Hour }

func (f *fakeCollector) Poll(ctx context.Context) ([]*types.Report, error) {
	f.polls.Add(1)
	return f.reports, f.err
}

func schedConfig(queueCap int) *config.Config {
	return &config.Config{
		QueueCapacity: queueCap,
		PollDeadline:  time.Second,
		DrainGrace:    100 * time.Millisecond,
	}
}

func report(id string) *types.Report {
	now := time.Now().UTC()
	return &types.Report{SourceID: id, Source: "fake", ObservedAt: now, CollectedAt: now}
}

func TestJitterScheduleBounds(t *testing.T) {
	s := jitterSchedule{interval: 100 * time.Second}
	base := time.Now()
	for i := 0; i < 50; i++ {
		next := s.Next(base)
		gap := next.Sub(base)
		assert.GreaterOrEqual(t, gap, 90*time.Second)
		assert.LessOrEqual(t, gap, 110*time.Second)
	}
}

func TestPollEnqueuesReports(t *testing.T) {
	s := New(schedConfig(8))
	c := &fakeCollector{name: "fake", reports: []*types.Report{report("1"), report("2")}}

	s.poll(c)

	assert.Len(t, s.queue, 2)
	assert.Equal(t, int32(1), c.polls.Load())
}

func TestPollDropsWhenQueueFull(t *testing.T) {
	s := New(schedConfig(1))
	c := &fakeCollector{name: "fake", reports: []*types.Report{report("1"), report("2"), report("3")}}

	s.poll(c)

	// One queued, the rest dropped rather than blocking.
	assert.Len(t, s.queue, 1)
}

func TestTransientFailureKeepsCollectorEnabled(t *testing.T) {
	s := New(schedConfig(8))
	c := &fakeCollector{name: "fake", err: types.Transientf("upstream flaked")}

	s.poll(c)
	s.poll(c)

	assert.Equal(t, int32(2), c.polls.Load())
	assert.Empty(t, s.DisabledSources())
}

func TestPermanentFailureDisablesCollector(t *testing.T) {
	s := New(schedConfig(8))
	c := &fakeCollector{name: "fake", err: types.Permanentf("credentials revoked")}

	s.poll(c)
	require.Equal(t, []string{"fake"}, s.DisabledSources())

	// Subsequent ticks skip the collector entirely.
	s.poll(c)
	assert.Equal(t, int32(1), c.polls.Load())
}

func TestStopDrainsAndClosesQueue(t *testing.T) {
	s := New(schedConfig(8))
	c := &fakeCollector{name: "fake", reports: []*types.Report{report("1")}}
	s.Register(c)
	s.Start(nil) // no eager polls; drive manually
	s.poll(c)

	s.Stop()

	var drained []*types.Report
	for r := range s.Queue() {
		drained = append(drained, r)
	}
	assert.Len(t, drained, 1)

	// Late reports after shutdown are dropped, not panicking sends.
	s.enqueue(report("late"), "fake")
}
