// Package invalidation keeps derived cache entries coherent with store
// mutations. It is the only component that evicts them.
package invalidation

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/tenantcrud/pkg/cache"
	"github.com/iota-uz/tenantcrud/pkg/docstore"
	"github.com/iota-uz/tenantcrud/pkg/eventbus"
)

// job is a plan whose eviction already failed attempts times.
type job struct {
	plan     Plan
	kind     docstore.MutationKind
	attempts int
}

type Invalidator struct {
	cache cache.Cache
	opts  Options
	log   *logrus.Entry

	mu     sync.RWMutex
	closed bool
	queue  chan job

	abortOnce sync.Once
	abort     chan struct{}
	done      chan struct{}
}

func New(c cache.Cache, opts Options) *Invalidator {
	opts.setDefaults()
	inv := &Invalidator{
		cache: c,
		opts:  opts,
		log:   opts.Logger.WithField("component", "invalidation"),
		abort: make(chan struct{}),
		done:  make(chan struct{}),
	}
	if opts.Mode == ModeAsync {
		inv.queue = make(chan job, opts.QueueSize)
		go inv.run()
	} else {
		close(inv.done)
	}
	return inv
}

func (inv *Invalidator) Mode() Mode { return inv.opts.Mode }

// Attach subscribes the invalidator to bus and returns the unsubscribe func.
func (inv *Invalidator) Attach(bus *eventbus.Bus[docstore.Mutation]) func() {
	return bus.Subscribe(inv.Handle)
}

// Handle is the mutation handler. The first eviction always runs before it
// returns, so the write is complete only once derived entries are gone. In
// async mode a failed eviction is queued for retries; in sync mode it is only
// logged. Handle never returns an error: a failed eviction leaves a stale
// entry behind but must not fail the write.
func (inv *Invalidator) Handle(ctx context.Context, m docstore.Mutation) error {
	plan := PlanFor(m)
	if plan.IsEmpty() {
		return nil
	}
	mode := inv.opts.Mode

	err := inv.Invalidate(ctx, plan)
	if err == nil {
		recordInvalidation(plan.Collection, mode, "ok")
		return nil
	}
	log := inv.log.WithFields(logrus.Fields{
		"collection": m.Collection,
		"kind":       m.Kind,
	}).WithError(err)

	if mode == ModeAsync && inv.enqueue(job{plan: plan, kind: m.Kind, attempts: 1}) {
		recordInvalidation(plan.Collection, mode, "retried")
		log.Warn("cache invalidation failed, queued for retry")
		return nil
	}
	recordInvalidation(plan.Collection, mode, "failed")
	log.Warn("cache invalidation failed")
	return nil
}

// enqueue reports false when the job cannot be retried: the invalidator is
// closed or the queue is full.
func (inv *Invalidator) enqueue(j job) bool {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	if inv.closed {
		return false
	}
	select {
	case inv.queue <- j:
		queueDepth.Inc()
		return true
	default:
		inv.log.WithField("collection", j.plan.Collection).Warn("invalidation queue full, dropping retry")
		return false
	}
}

// Invalidate executes plan once and returns every failure aggregated.
func (inv *Invalidator) Invalidate(ctx context.Context, plan Plan) error {
	var result *multierror.Error
	evicted := 0
	if len(plan.Keys) > 0 {
		if err := inv.cache.Delete(ctx, plan.Keys...); err != nil {
			result = multierror.Append(result, err)
		} else {
			evicted += len(plan.Keys)
		}
	}
	for _, prefix := range plan.Prefixes {
		n, err := inv.cache.DeleteByPrefix(ctx, prefix)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		evicted += n
	}
	if evicted > 0 {
		evictedKeys.WithLabelValues(plan.Collection).Add(float64(evicted))
	}
	return result.ErrorOrNil()
}

// InvalidateOrganization evicts the count and paged entries of one
// organization immediately, whatever the mode.
func (inv *Invalidator) InvalidateOrganization(ctx context.Context, collection, orgID string) error {
	return inv.Invalidate(ctx, OrganizationPlan(collection, orgID))
}

func (inv *Invalidator) run() {
	defer close(inv.done)
	for j := range inv.queue {
		queueDepth.Dec()
		inv.process(j)
	}
}

func (inv *Invalidator) process(j job) {
	log := inv.log.WithFields(logrus.Fields{
		"collection": j.plan.Collection,
		"kind":       j.kind,
	})
	for attempt := j.attempts + 1; ; attempt++ {
		wait := backoff(attempt-1, inv.opts.BaseBackoff, inv.opts.MaxBackoff) + jitter(inv.opts.Rand, inv.opts.JitterMax)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-inv.abort:
			timer.Stop()
			recordInvalidation(j.plan.Collection, ModeAsync, "dropped")
			log.WithField("attempts", attempt-1).Error("cache invalidation abandoned on shutdown")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), inv.opts.AttemptTimeout)
		err := inv.Invalidate(ctx, j.plan)
		cancel()
		if err == nil {
			recordInvalidation(j.plan.Collection, ModeAsync, "ok")
			log.WithField("attempts", attempt).Info("cache invalidation succeeded after retry")
			return
		}
		if attempt >= inv.opts.MaxAttempts {
			recordInvalidation(j.plan.Collection, ModeAsync, "dropped")
			log.WithError(err).WithField("attempts", attempt).Error("cache invalidation gave up")
			return
		}
		recordInvalidation(j.plan.Collection, ModeAsync, "retried")
		log.WithError(err).WithField("attempt", attempt).Warn("cache invalidation failed")
	}
}

// Close stops accepting jobs and waits until the queue is drained. When ctx
// ends first, pending retries are abandoned and ctx's error is returned.
func (inv *Invalidator) Close(ctx context.Context) error {
	inv.mu.Lock()
	if !inv.closed {
		inv.closed = true
		if inv.queue != nil {
			close(inv.queue)
		}
	}
	inv.mu.Unlock()

	select {
	case <-inv.done:
		return nil
	case <-ctx.Done():
		inv.abortOnce.Do(func() { close(inv.abort) })
		<-inv.done
		return ctx.Err()
	}
}
