// Package notify keeps live query subscriptions up to date. Every change
// published by the store actors marks the subscriptions that depend on it
// dirty; workers re-evaluate dirty subscriptions and push a result only when
// it differs from the last one delivered.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gator-chat/internal/engine"
	"gator-chat/internal/engine/actors"
	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v3"
)

// Evaluator runs a query on behalf of an identity. *engine.Engine satisfies it.
type Evaluator interface {
	Evaluate(id *models.Identity, q engine.Query) (interface{}, error)
}

// expiring is implemented by results that go stale on their own.
type expiring interface {
	Expiry() time.Time
}

// Update is one push to a subscriber. Exactly one of Data and Err is set.
type Update struct {
	SubscriptionID string
	Data           json.RawMessage
	Err            error
}

type subscription struct {
	key      string
	id       string
	identity *models.Identity
	query    engine.Query
	push     func(Update)

	dirty  atomic.Bool
	closed atomic.Bool

	mu    sync.Mutex // serialises evaluation and guards last/timer
	last  []byte
	timer clockwork.Timer
}

type Registry struct {
	evaluator Evaluator
	stream    *eventstream.EventStream
	clock     clockwork.Clock
	metrics   *utils.MetricsCollector
	logger    *slog.Logger

	subs *xsync.MapOf[string, *subscription]

	queueMu sync.Mutex
	queue   []*subscription
	signal  chan struct{}
}

func NewRegistry(evaluator Evaluator, stream *eventstream.EventStream, clock clockwork.Clock, metrics *utils.MetricsCollector, logger *slog.Logger) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = utils.NewMetricsCollector()
	}
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &Registry{
		evaluator: evaluator,
		stream:    stream,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
		subs:      xsync.NewMapOf[string, *subscription](),
		signal:    make(chan struct{}, 1),
	}
}

func subscriptionKey(connID, subID string) string {
	return connID + "/" + subID
}

// Subscribe registers q for connID under subID, replacing any subscription
// with the same ids. The current result is pushed as soon as a worker picks
// it up.
func (r *Registry) Subscribe(connID, subID string, identity *models.Identity, q engine.Query, push func(Update)) error {
	if err := q.Validate(); err != nil {
		return err
	}
	sub := &subscription{
		key:      subscriptionKey(connID, subID),
		id:       subID,
		identity: identity,
		query:    q,
		push:     push,
	}
	if previous, loaded := r.subs.LoadAndStore(sub.key, sub); loaded {
		r.close(previous)
	} else {
		r.metrics.SubscriptionOpened()
	}
	r.logger.Debug("Subscribed", "connection", connID, "subscription", subID, "kind", q.Kind)
	r.markDirty(sub)
	return nil
}

func (r *Registry) Unsubscribe(connID, subID string) {
	if sub, ok := r.subs.LoadAndDelete(subscriptionKey(connID, subID)); ok {
		r.close(sub)
		r.metrics.SubscriptionClosed()
	}
}

// Drop removes every subscription held by connID.
func (r *Registry) Drop(connID string) {
	prefix := connID + "/"
	r.subs.Range(func(key string, sub *subscription) bool {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			r.Unsubscribe(connID, sub.id)
		}
		return true
	})
}

// Len is the number of live subscriptions.
func (r *Registry) Len() int {
	return r.subs.Size()
}

func (r *Registry) close(sub *subscription) {
	sub.closed.Store(true)
	sub.mu.Lock()
	if sub.timer != nil {
		sub.timer.Stop()
		sub.timer = nil
	}
	sub.mu.Unlock()
}

// Run listens for changes and evaluates dirty subscriptions with the given
// number of workers until ctx is done.
func (r *Registry) Run(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = 4
	}
	handle := r.stream.Subscribe(func(evt interface{}) {
		if change, ok := evt.(*actors.Change); ok {
			r.onChange(change)
		}
	})
	defer r.stream.Unsubscribe(handle)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx)
		}()
	}
	r.logger.Info("Subscription registry started", "workers", workers)
	wg.Wait()
	return nil
}

func (r *Registry) onChange(change *actors.Change) {
	r.subs.Range(func(_ string, sub *subscription) bool {
		viewer := ""
		if sub.identity != nil {
			viewer = sub.identity.Subject
		}
		if sub.query.DependsOn(change, viewer) {
			r.markDirty(sub)
		}
		return true
	})
}

// markDirty queues sub unless it is already waiting.
func (r *Registry) markDirty(sub *subscription) {
	if sub.closed.Load() || !sub.dirty.CompareAndSwap(false, true) {
		return
	}
	r.queueMu.Lock()
	r.queue = append(r.queue, sub)
	r.queueMu.Unlock()
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

func (r *Registry) next() *subscription {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	if len(r.queue) == 0 {
		return nil
	}
	sub := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	if len(r.queue) > 0 {
		// Pass the wake-up on to another worker.
		select {
		case r.signal <- struct{}{}:
		default:
		}
	}
	return sub
}

func (r *Registry) work(ctx context.Context) {
	for {
		if sub := r.next(); sub != nil {
			r.refresh(sub)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-r.signal:
		}
	}
}

// refresh evaluates sub and pushes the result if it changed.
func (r *Registry) refresh(sub *subscription) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.dirty.Store(false)
	if sub.closed.Load() {
		return
	}

	result, err := r.evaluator.Evaluate(sub.identity, sub.query)
	if err != nil {
		r.logger.Warn("Subscription evaluation failed", "subscription", sub.key, "error", err)
		sub.push(Update{SubscriptionID: sub.id, Err: err})
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		r.logger.Error("Failed to encode subscription result", "subscription", sub.key, "error", err)
		sub.push(Update{SubscriptionID: sub.id, Err: err})
		return
	}

	r.scheduleExpiry(sub, result)
	if sub.last != nil && bytes.Equal(sub.last, data) {
		return
	}
	sub.last = data
	sub.push(Update{SubscriptionID: sub.id, Data: data})
}

// scheduleExpiry re-evaluates sub when its result goes stale. Caller holds sub.mu.
func (r *Registry) scheduleExpiry(sub *subscription, result interface{}) {
	if sub.timer != nil {
		sub.timer.Stop()
		sub.timer = nil
	}
	exp, ok := result.(expiring)
	if !ok || exp.Expiry().IsZero() {
		return
	}
	wait := exp.Expiry().Sub(r.clock.Now())
	if wait < 0 {
		wait = 0
	}
	sub.timer = r.clock.AfterFunc(wait, func() { r.markDirty(sub) })
}
