package notifications

import (
	"context"
	"fmt"
	"time"

	"go-icewatch/config"
	"go-icewatch/metrics"
	"go-icewatch/monitoring"
	"go-icewatch/types"
)

const (
	backoffBase    = 2 * time.Second
	backoffCap     = 60 * time.Second
	maxAttempts    = 5
	webhookTimeout = 10 * time.Second
)

// AlertStore is the slice of the store the notifier needs.
type AlertStore interface {
	MarkAlert(cl *types.Cluster) error
}

// Notifier dispatches emission candidates with at-most-once semantics
// per (cluster, kind): exactly one NEW per cluster, UPDATE only after a
// NEW, member counts strictly increasing across emissions.
type Notifier struct {
	cfg        *config.Config
	store      AlertStore
	webhook    *WebhookClient
	summarizer *Summarizer
	dryRun     bool
	nowFn      func() time.Time

	backoffBase time.Duration
	backoffCap  time.Duration
	maxAttempts int
}

// New wires the notifier. In dry-run mode dispatch goes to the log and
// emissions are recorded in memory only.
func New(cfg *config.Config, store AlertStore, summarizer *Summarizer) *Notifier {
	n := &Notifier{
		cfg:         cfg,
		store:       store,
		summarizer:  summarizer,
		dryRun:      cfg.DryRun,
		nowFn:       time.Now,
		backoffBase: backoffBase,
		backoffCap:  backoffCap,
		maxAttempts: maxAttempts,
	}
	if !cfg.DryRun {
		n.webhook = NewWebhookClient(cfg.WebhookURL, webhookTimeout)
	}
	return n
}

// SetNow overrides the clock, for tests.
func (n *Notifier) SetNow(fn func() time.Time) { n.nowFn = fn }

// Notify reconciles the candidate kind against the cluster's emission
// history and dispatches. A transient webhook failure is retried with
// exponential backoff; a permanent one is logged and dropped with the
// history unchanged, so the missing alert is retried by a future update.
// Only store failures are returned: they are fatal.
func (n *Notifier) Notify(ctx context.Context, cl *types.Cluster, kind types.AlertKind) error {
	// Enforce one NEW per cluster, NEW before any UPDATE.
	switch {
	case kind == types.AlertNew && cl.NewEmitted():
		kind = types.AlertUpdate
	case kind == types.AlertUpdate && !cl.NewEmitted():
		kind = types.AlertNew
	}

	memberCount := len(cl.Members)
	if memberCount <= cl.LastEmitCount() {
		// Nothing new to say; emitting would break the strictly
		// increasing member count.
		monitoring.Debugf("notifier: suppressing %s for cluster %s (count %d not above %d)",
			kind, cl.ID, memberCount, cl.LastEmitCount())
		return nil
	}

	seq := len(cl.AlertsEmitted)
	token := fmt.Sprintf("%s/%d", cl.ID, seq)
	now := n.nowFn().UTC()

	var payload webhookPayload
	if kind == types.AlertNew {
		summary := n.summarizer.Summarize(ctx, cl)
		payload = buildNewPayload(cl, summary, now)
	} else {
		newMembers := cl.Members[cl.LastEmitCount():]
		payload = buildUpdatePayload(cl, newMembers, now)
	}

	if n.dryRun {
		monitoring.Infof("notifier: DRY RUN %s for cluster %s (%s, %d members, conf %.2f)",
			kind, cl.ID, cl.Label, memberCount, cl.Confidence)
		cl.AlertsEmitted = append(cl.AlertsEmitted, types.AlertRecord{
			Kind: kind, SentAt: now, MemberCount: memberCount,
		})
		return nil
	}

	if err := n.dispatch(ctx, token, payload); err != nil {
		metrics.AlertFailures.WithLabelValues(string(kind)).Inc()
		monitoring.Errorf("notifier: dropping %s for cluster %s: %v", kind, cl.ID, err)
		return nil
	}

	cl.AlertsEmitted = append(cl.AlertsEmitted, types.AlertRecord{
		Kind: kind, SentAt: now, MemberCount: memberCount,
	})
	if err := n.store.MarkAlert(cl); err != nil {
		return err
	}

	metrics.AlertsSent.WithLabelValues(string(kind)).Inc()
	monitoring.Infof("notifier: %s sent for cluster %s (%s, %d members)", kind, cl.ID, cl.Label, memberCount)
	return nil
}

// dispatch retries transient failures with exponential backoff: 2s, 4s,
// 8s, ... capped at 60s, five attempts total.
func (n *Notifier) dispatch(ctx context.Context, token string, payload webhookPayload) error {
	backoff := n.backoffBase
	var lastErr error

	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		err := n.webhook.Send(ctx, token, payload)
		if err == nil {
			return nil
		}
		if types.IsPermanent(err) {
			return err
		}
		lastErr = err

		if attempt < n.maxAttempts {
			monitoring.Warnf("notifier: attempt %d/%d failed, retrying in %s: %v",
				attempt, n.maxAttempts, backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if backoff > n.backoffCap {
				backoff = n.backoffCap
			}
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", n.maxAttempts, lastErr)
}
