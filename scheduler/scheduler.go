package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"go-icewatch/collectors"
	"go-icewatch/config"
	"go-icewatch/metrics"
	"go-icewatch/monitoring"
	"go-icewatch/types"
)

// jitterSchedule fires at a fixed interval with ±10% random jitter so the
// collectors don't thunder against shared upstreams.
type jitterSchedule struct {
	interval time.Duration
}

func (s jitterSchedule) Next(t time.Time) time.Time {
	jitter := time.Duration((rand.Float64()*2 - 1) * 0.1 * float64(s.interval))
	return t.Add(s.interval + jitter)
}

// Scheduler drives each registered collector on its own cron entry. Poll
// outputs fan into one bounded queue; when the queue is full, reports are
// dropped (counted) instead of blocking faster collectors.
type Scheduler struct {
	cfg  *config.Config
	cron *cron.Cron

	queue chan *types.Report

	mu       sync.Mutex
	disabled map[string]bool
	closed   bool

	inflight sync.WaitGroup
}

// New builds a scheduler with the configured queue capacity.
func New(cfg *config.Config) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		cron:     cron.New(),
		queue:    make(chan *types.Report, cfg.QueueCapacity),
		disabled: make(map[string]bool),
	}
}

// Queue is the channel the pipeline consumes. Closed after Stop.
func (s *Scheduler) Queue() <-chan *types.Report { return s.queue }

// Register adds a collector. The first poll runs one interval after
// Start, not immediately; an eager first poll is scheduled separately.
func (s *Scheduler) Register(c collectors.Collector) {
	s.cron.Schedule(jitterSchedule{interval: c.Interval()}, cron.FuncJob(func() {
		s.poll(c)
	}))
	monitoring.Infof("scheduler: registered %s (every %s, %s trust)", c.Name(), c.Interval(), c.Trust())
}

// Start begins issuing polls. Each registered collector gets one eager
// poll so a fresh process produces data before the first interval ticks.
func (s *Scheduler) Start(eager []collectors.Collector) {
	s.cron.Start()
	for _, c := range eager {
		c := c
		go s.poll(c)
	}
}

// Stop halts new polls, waits for in-flight polls up to the grace
// period, then closes the queue. In-flight polls past the grace period
// are abandoned; their context has the poll deadline regardless.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-stopCtx.Done()
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.DrainGrace):
		monitoring.Warnf("scheduler: drain grace expired with polls still in flight")
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	close(s.queue)
}

// enqueue offers a report to the queue without blocking. Reports arriving
// after shutdown, or into a full queue, are dropped with a counter.
func (s *Scheduler) enqueue(r *types.Report, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		metrics.ReportsDropped.WithLabelValues(source).Inc()
		return
	}
	select {
	case s.queue <- r:
	default:
		metrics.ReportsDropped.WithLabelValues(source).Inc()
		monitoring.Warnf("scheduler: queue full, dropping report %s", r.DedupKey())
	}
}

func (s *Scheduler) poll(c collectors.Collector) {
	s.mu.Lock()
	if s.disabled[c.Name()] {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.inflight.Add(1)
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PollDeadline)
	defer cancel()

	reports, err := c.Poll(ctx)
	if err != nil {
		if types.IsPermanent(err) {
			metrics.CollectorFailures.WithLabelValues(c.Name(), "permanent").Inc()
			monitoring.Errorf("scheduler: %s failed permanently, disabling until restart: %v", c.Name(), err)
			s.mu.Lock()
			s.disabled[c.Name()] = true
			s.mu.Unlock()
			return
		}
		metrics.CollectorFailures.WithLabelValues(c.Name(), "transient").Inc()
		monitoring.Warnf("scheduler: %s poll failed, will retry next tick: %v", c.Name(), err)
		return
	}

	if len(reports) > 0 {
		metrics.ReportsCollected.WithLabelValues(c.Name()).Add(float64(len(reports)))
		monitoring.Infof("scheduler: %s collected %d reports", c.Name(), len(reports))
	}

	for _, r := range reports {
		s.enqueue(r, c.Name())
	}
}

// DisabledSources lists collectors shut off by permanent failures, for
// the status API.
func (s *Scheduler) DisabledSources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name, off := range s.disabled {
		if off {
			names = append(names, name)
		}
	}
	return names
}
