// Package archive persists pursuit events to SQL for later review.
package archive

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasuganosora/nightwatch/game/world"
	"github.com/kasuganosora/nightwatch/model"
	"github.com/kasuganosora/nightwatch/plugin/hook"
)

const (
	queueSize     = 1024
	batchSize     = 100
	flushInterval = 2 * time.Second
	maxQueryLimit = 500
)

// Service archives events asynchronously in batches.
type Service struct {
	db     *gorm.DB
	ch     chan *model.Incident
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger *zap.Logger

	// mu orders Record against Stop so nothing is queued after the final drain.
	mu      sync.RWMutex
	stopped bool
}

// New creates a new archive Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		db:     db,
		ch:     make(chan *model.Incident, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Record enqueues ev for an async write. It drops the event if the queue
// is full or the service has stopped.
func (svc *Service) Record(ev *world.Event) {
	payload, _ := json.Marshal(ev)
	rec := &model.Incident{
		EventID:   ev.ID,
		Room:      ev.Room,
		Enemy:     ev.Enemy,
		Name:      ev.Name,
		Kind:      string(ev.Kind),
		FromState: ev.From,
		ToState:   ev.To,
		Tick:      ev.Tick,
		Payload:   datatypes.JSON(payload),
		At:        ev.At,
	}
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	if svc.stopped {
		return
	}
	select {
	case svc.ch <- rec:
	default:
		svc.logger.Warn("archive queue full, dropping event",
			zap.String("room", ev.Room),
			zap.String("kind", string(ev.Kind)))
	}
}

// Register records every published event kind through hc.
func (svc *Service) Register(hc *hook.HookCenter) {
	fn := func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		if ev, ok := data.(*world.Event); ok && ev != nil {
			svc.Record(ev)
		}
		return data, nil
	}
	for _, event := range []string{hook.OnStateChanged, hook.OnTargetDetected, hook.OnTargetLost, hook.OnTargetCaught} {
		hc.Register(event, 50, "archive", fn)
	}
}

// Query filters archived incidents.
type Query struct {
	Room  string
	Kind  string
	Since time.Time
	Limit int
}

// Find returns incidents matching q, newest first.
func (svc *Service) Find(ctx context.Context, q Query) ([]model.Incident, error) {
	if q.Limit <= 0 || q.Limit > maxQueryLimit {
		q.Limit = maxQueryLimit
	}
	tx := svc.db.WithContext(ctx).Model(&model.Incident{})
	if q.Room != "" {
		tx = tx.Where("room = ?", q.Room)
	}
	if q.Kind != "" {
		tx = tx.Where("kind = ?", q.Kind)
	}
	if !q.Since.IsZero() {
		tx = tx.Where("at >= ?", q.Since)
	}
	var out []model.Incident
	err := tx.Order("at DESC").Order("id DESC").Limit(q.Limit).Find(&out).Error
	return out, err
}

// Stop flushes remaining incidents and shuts down the worker.
// It blocks until the worker has finished or ctx is done.
func (svc *Service) Stop(ctx context.Context) error {
	svc.once.Do(func() {
		svc.mu.Lock()
		svc.stopped = true
		close(svc.stopCh)
		svc.mu.Unlock()
	})
	done := make(chan struct{})
	go func() {
		svc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*model.Incident, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Replays of the same event id are ignored.
		err := svc.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&batch).Error
		if err != nil {
			svc.logger.Error("archive batch write failed", zap.Int("size", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-svc.ch:
			batch = append(batch, rec)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case rec := <-svc.ch:
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}
