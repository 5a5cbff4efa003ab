package world

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kasuganosora/nightwatch/cache"
	"github.com/kasuganosora/nightwatch/plugin/hook"
)

// EventKind names a pursuit event.
type EventKind string

const (
	KindStateChanged   EventKind = "state_changed"
	KindTargetDetected EventKind = "target_detected"
	KindTargetLost     EventKind = "target_lost"
	KindTargetCaught   EventKind = "target_caught"
)

// hookName maps an event kind to the hook fired after it is published.
func (k EventKind) hookName() string {
	switch k {
	case KindStateChanged:
		return hook.OnStateChanged
	case KindTargetDetected:
		return hook.OnTargetDetected
	case KindTargetLost:
		return hook.OnTargetLost
	case KindTargetCaught:
		return hook.OnTargetCaught
	}
	return ""
}

// Event is one pursuit notification as published on the wire.
type Event struct {
	ID    string    `json:"id"`
	Room  string    `json:"room"`
	Enemy string    `json:"enemy"`
	Name  string    `json:"name,omitempty"`
	Kind  EventKind `json:"kind"`
	From  string    `json:"from,omitempty"`
	To    string    `json:"to,omitempty"`
	Tick  uint64    `json:"tick"`
	At    time.Time `json:"at"`
}

// PublisherConfig tunes the event pipeline.
type PublisherConfig struct {
	Buffer         int           `mapstructure:"buffer"`
	HistoryLen     int           `mapstructure:"history_len"`
	CaughtCooldown time.Duration `mapstructure:"caught_cooldown"`
}

// PublisherStats counts events by outcome.
type PublisherStats struct {
	Emitted     int64 `json:"emitted"`
	Published   int64 `json:"published"`
	Dropped     int64 `json:"dropped"`
	Deduped     int64 `json:"deduped"`
	Interrupted int64 `json:"interrupted"`
	Failed      int64 `json:"failed"`
}

// EventPublisher fans pursuit events out asynchronously: pub/sub channel,
// bounded history list and hooks. Emit never blocks the tick loop.
type EventPublisher struct {
	cache  cache.Cache
	ps     cache.PubSub
	hooks  *hook.HookCenter
	cfg    PublisherConfig
	ch     chan *Event
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger *zap.Logger

	emitted, published, dropped, deduped, interrupted, failed atomic.Int64
}

// NewEventPublisher creates a publisher and starts its background worker.
// hooks may be nil.
func NewEventPublisher(c cache.Cache, ps cache.PubSub, hooks *hook.HookCenter, cfg PublisherConfig, logger *zap.Logger) *EventPublisher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if cfg.HistoryLen <= 0 {
		cfg.HistoryLen = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &EventPublisher{
		cache:  c,
		ps:     ps,
		hooks:  hooks,
		cfg:    cfg,
		ch:     make(chan *Event, cfg.Buffer),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	p.wg.Add(1)
	go p.worker()
	return p
}

// Emit enqueues ev for publishing. It returns false if the buffer is full
// or the publisher is stopped.
func (p *EventPublisher) Emit(ev *Event) bool {
	select {
	case <-p.stopCh:
		return false
	default:
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case p.ch <- ev:
		p.emitted.Add(1)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("event channel full, dropping event",
			zap.String("room", ev.Room),
			zap.String("enemy", ev.Enemy),
			zap.String("kind", string(ev.Kind)))
		return false
	}
}

// Stop flushes queued events and shuts down the worker.
// It blocks until the worker has finished or ctx is done.
func (p *EventPublisher) Stop(ctx context.Context) error {
	p.once.Do(func() { close(p.stopCh) })
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the pipeline counters.
func (p *EventPublisher) Stats() PublisherStats {
	return PublisherStats{
		Emitted:     p.emitted.Load(),
		Published:   p.published.Load(),
		Dropped:     p.dropped.Load(),
		Deduped:     p.deduped.Load(),
		Interrupted: p.interrupted.Load(),
		Failed:      p.failed.Load(),
	}
}

// Recent returns up to limit of the room's latest events, newest first.
func (p *EventPublisher) Recent(ctx context.Context, room string, limit int) ([]Event, error) {
	if limit <= 0 || limit > p.cfg.HistoryLen {
		limit = p.cfg.HistoryLen
	}
	raw, err := p.cache.LRange(ctx, cache.EventHistoryKey(room), 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(raw))
	for _, r := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			p.logger.Warn("skipping malformed history entry", zap.String("room", room), zap.Error(err))
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (p *EventPublisher) worker() {
	defer p.wg.Done()
	ctx := context.Background()
	for {
		select {
		case ev := <-p.ch:
			p.process(ctx, ev)
		case <-p.stopCh:
			// Drain remaining events.
			for {
				select {
				case ev := <-p.ch:
					p.process(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

func (p *EventPublisher) process(ctx context.Context, ev *Event) {
	log := p.logger.With(
		zap.String("room", ev.Room),
		zap.String("enemy", ev.Enemy),
		zap.String("kind", string(ev.Kind)))

	if ev.Kind == KindTargetCaught && p.cfg.CaughtCooldown > 0 {
		ok, err := p.cache.SetNX(ctx, cache.CaughtKey(ev.Room, ev.Enemy), ev.ID, p.cfg.CaughtCooldown)
		if err != nil {
			log.Warn("caught dedupe check failed", zap.Error(err))
		} else if !ok {
			p.deduped.Add(1)
			return
		}
	}

	if p.hooks != nil {
		out, err := p.hooks.Trigger(ctx, hook.BeforeEventPublish, ev)
		if errors.Is(err, hook.ErrInterrupt) {
			p.interrupted.Add(1)
			return
		}
		if err != nil {
			log.Warn("before-publish hook failed", zap.Error(err))
		}
		if modified, ok := out.(*Event); ok && modified != nil {
			ev = modified
		}
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		p.failed.Add(1)
		log.Error("event marshal failed", zap.Error(err))
		return
	}
	if err := p.ps.Publish(ctx, cache.EventChannel(ev.Room), string(payload)); err != nil {
		p.failed.Add(1)
		log.Error("event publish failed", zap.Error(err))
		return
	}
	key := cache.EventHistoryKey(ev.Room)
	if err := p.cache.LPush(ctx, key, string(payload)); err != nil {
		log.Warn("event history push failed", zap.Error(err))
	} else if err := p.cache.LTrim(ctx, key, 0, int64(p.cfg.HistoryLen-1)); err != nil {
		log.Warn("event history trim failed", zap.Error(err))
	}
	p.published.Add(1)

	if p.hooks != nil {
		if _, err := p.hooks.Trigger(ctx, ev.Kind.hookName(), ev); err != nil && !errors.Is(err, hook.ErrInterrupt) {
			log.Warn("event hook failed", zap.Error(err))
		}
	}
}
