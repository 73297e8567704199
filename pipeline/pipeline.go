package pipeline

import (
	"context"
	"time"

	"go-icewatch/correlation"
	"go-icewatch/db"
	"go-icewatch/geocode"
	"go-icewatch/monitoring"
	"go-icewatch/notifications"
	"go-icewatch/processor"
	"go-icewatch/types"
)

// Tick interval for cluster expiry when no reports are arriving.
const expiryCheckInterval = time.Minute

// Pipeline is the single consumer of the report queue. Reports run
// through filter, extraction, correlation, and notification one at a
// time: cluster-assignment decisions stay deterministic in arrival order
// and the correlator needs no locking.
type Pipeline struct {
	store      *db.Store
	filter     *processor.Filter
	extractor  *geocode.Extractor
	correlator *correlation.Correlator
	notifier   *notifications.Notifier
	queue      <-chan *types.Report
}

// New wires the pipeline stages.
func New(store *db.Store, filter *processor.Filter, extractor *geocode.Extractor,
	correlator *correlation.Correlator, notifier *notifications.Notifier,
	queue <-chan *types.Report) *Pipeline {
	return &Pipeline{
		store:      store,
		filter:     filter,
		extractor:  extractor,
		correlator: correlator,
		notifier:   notifier,
		queue:      queue,
	}
}

// WarmStart restores the correlator's active set from the store.
func (p *Pipeline) WarmStart() error {
	clusters, err := p.store.ActiveClusters()
	if err != nil {
		return err
	}
	p.correlator.WarmStart(clusters)
	return nil
}

// Run consumes the queue until it is closed by the scheduler's shutdown
// drain. Store failures and invariant violations are returned and
// terminate the process; everything else is absorbed at stage
// boundaries.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(expiryCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-p.queue:
			if !ok {
				monitoring.Infof("pipeline: queue closed, stopping")
				return nil
			}
			if err := p.process(ctx, r); err != nil {
				return err
			}
		case <-ticker.C:
			if err := p.expireStale(); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// process runs one report through every stage. A store write failure
// aborts the report; dedup protection makes the retry on the next
// collector cycle safe.
func (p *Pipeline) process(ctx context.Context, r *types.Report) error {
	verdict, duplicate, err := p.filter.Apply(r)
	if err != nil {
		return err
	}
	if duplicate {
		return nil
	}
	r.Verdict = verdict

	if verdict != types.VerdictRelevant {
		monitoring.Debugf("pipeline: %s -> %s", r.DedupKey(), verdict)
		return p.store.PutReport(r)
	}

	p.extractor.Extract(ctx, r)

	cl, emission, expired := p.correlator.Process(r)
	for _, ex := range expired {
		if err := p.store.UpsertCluster(ex); err != nil {
			return err
		}
	}

	if err := p.store.PutReport(r); err != nil {
		return err
	}
	if err := p.store.UpsertCluster(cl); err != nil {
		return err
	}

	if emission != nil {
		if err := p.notifier.Notify(ctx, emission.Cluster, emission.Kind); err != nil {
			return err
		}
	}
	return nil
}

// expireStale runs step (a) of the correlator on the clock rather than
// on report arrival, so quiet periods still retire clusters.
func (p *Pipeline) expireStale() error {
	for _, ex := range p.correlator.ExpireStale(time.Now()) {
		if err := p.store.UpsertCluster(ex); err != nil {
			return err
		}
	}
	return nil
}
