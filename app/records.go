// Package app provides application services that orchestrate the model core
// and its storage.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/modelkit/core/events"
	"github.com/artpar/modelkit/core/model"
	"github.com/artpar/modelkit/core/registry"
	"github.com/artpar/modelkit/core/scheduler"
	"github.com/artpar/modelkit/ports"
	"github.com/rs/zerolog"
)

// ErrInvalidValue marks values a field's parse rule rejected.
var ErrInvalidValue = errors.New("invalid value")

// maxFlushRounds bounds how often a record's queue is re-flushed when change
// handlers keep setting fields.
const maxFlushRounds = 8

// Gauge is the part of a prometheus gauge the service reports to.
type Gauge interface {
	Set(float64)
}

// CommitRecorder receives the outcome of every commit: "ok", "invalid" or
// "error".
type CommitRecorder interface {
	Committed(modelName, result string)
}

// RecordDeps contains dependencies for RecordService.
type RecordDeps struct {
	Classes  *registry.Registry
	Store    ports.SnapshotStore
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Observer model.Observer // optional
	Live     Gauge          // optional
	Commits  CommitRecorder // optional
	Logger   zerolog.Logger
}

// Record is a point-in-time view of a live model instance.
type Record struct {
	ID            string         `json:"id"`
	Model         string         `json:"model"`
	Version       int            `json:"version"`
	Data          map[string]any `json:"data"`
	Changed       bool           `json:"changed"`
	Notifications int            `json:"notifications"`
}

// RecordService keeps live model instances addressable by ID. Each instance
// has its own lock and notification queue; the queue is flushed before every
// call returns, so callers observe coalesced change events.
type RecordService struct {
	classes  *registry.Registry
	store    ports.SnapshotStore
	clock    ports.Clock
	idGen    ports.IDGenerator
	observer model.Observer
	gauge    Gauge
	commits  CommitRecorder
	logger   zerolog.Logger

	mu   sync.RWMutex
	live map[string]*liveRecord
}

type liveRecord struct {
	mu            sync.Mutex
	id            string
	version       int
	model         *model.Model
	queue         *scheduler.Queue
	notifications int
}

// NewRecordService creates a new record service.
func NewRecordService(deps RecordDeps) *RecordService {
	return &RecordService{
		classes:  deps.Classes,
		store:    deps.Store,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
		observer: deps.Observer,
		gauge:    deps.Live,
		commits:  deps.Commits,
		logger:   deps.Logger.With().Str("service", "records").Logger(),
		live:     make(map[string]*liveRecord),
	}
}

// Create instantiates a model of the named class. The record is live but not
// stored until its first commit.
func (s *RecordService) Create(ctx context.Context, modelName string, data map[string]any) (Record, error) {
	class, err := s.classes.Lookup(modelName)
	if err != nil {
		return Record{}, err
	}

	rec, err := s.instantiate(class, s.idGen.New(), 0, data)
	if err != nil {
		return Record{}, err
	}

	s.track(rec)
	s.logger.Debug().Str("id", rec.id).Str("model", modelName).Msg("record created")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.flush()
	return rec.view(), nil
}

// Open makes a stored record live, or returns the live one.
func (s *RecordService) Open(ctx context.Context, id string) (Record, error) {
	rec, err := s.acquire(ctx, id)
	if err != nil {
		return Record{}, err
	}
	defer rec.mu.Unlock()
	return rec.view(), nil
}

// Get returns the current state of a record.
func (s *RecordService) Get(ctx context.Context, id string) (Record, error) {
	return s.Open(ctx, id)
}

// Update sets the known fields in data. Unknown keys are ignored. Fields that
// fail to parse keep their value and the failures are returned together with
// the resulting state.
func (s *RecordService) Update(ctx context.Context, id string, data map[string]any) (Record, error) {
	rec, err := s.acquire(ctx, id)
	if err != nil {
		return Record{}, err
	}
	defer rec.mu.Unlock()

	setErr := rec.model.SetAll(data)
	rec.flush()
	if setErr != nil {
		return rec.view(), fmt.Errorf("%w: %w", ErrInvalidValue, setErr)
	}
	return rec.view(), nil
}

// Validate runs every field validator of the record. It returns a
// *model.ValidationError when any field is invalid.
func (s *RecordService) Validate(ctx context.Context, id string) error {
	rec, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer rec.mu.Unlock()

	return rec.validate(ctx)
}

// Commit validates the record and stores its current values as a new version.
// The values become the baseline only once the store accepted them; invalid
// records and failed saves leave the record untouched.
func (s *RecordService) Commit(ctx context.Context, id string) (Record, error) {
	rec, err := s.acquire(ctx, id)
	if err != nil {
		return Record{}, err
	}
	defer rec.mu.Unlock()

	if err := rec.validate(ctx); err != nil {
		s.logger.Debug().Str("id", rec.id).Str("invalid", describe(err)).Msg("commit rejected")
		s.recordCommit(rec.model.Name(), "invalid")
		return rec.view(), err
	}

	now := s.clock.Now()
	snap := ports.Snapshot{
		ID:        rec.id,
		Model:     rec.model.Name(),
		Version:   rec.version + 1,
		Data:      rec.model.Values(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, snap); err != nil {
		s.logger.Error().Err(err).Str("id", rec.id).Msg("snapshot save failed")
		s.recordCommit(snap.Model, "error")
		return rec.view(), fmt.Errorf("commit %s: %w", rec.id, err)
	}
	rec.model.Commit()
	rec.version = snap.Version
	s.recordCommit(snap.Model, "ok")

	s.logger.Info().
		Str("id", rec.id).
		Str("model", snap.Model).
		Int("version", snap.Version).
		Msg("record committed")

	return rec.view(), nil
}

// Revert restores the committed values of the record.
func (s *RecordService) Revert(ctx context.Context, id string) (Record, error) {
	rec, err := s.acquire(ctx, id)
	if err != nil {
		return Record{}, err
	}
	defer rec.mu.Unlock()

	rec.model.Revert()
	rec.flush()
	return rec.view(), nil
}

// Delete drops the live instance and its stored snapshot.
func (s *RecordService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	rec, live := s.live[id]
	delete(s.live, id)
	n := len(s.live)
	s.mu.Unlock()

	if live {
		rec.mu.Lock()
		rec.model.Dispose()
		rec.mu.Unlock()
		s.report(n)
	}

	err := s.store.Delete(ctx, id)
	if errors.Is(err, ports.ErrNotFound) && live {
		// Never committed.
		err = nil
	}
	if err != nil {
		return err
	}

	s.logger.Debug().Str("id", id).Msg("record deleted")
	return nil
}

// List returns the stored snapshots matching filter.
func (s *RecordService) List(ctx context.Context, filter ports.SnapshotFilter) ([]ports.Snapshot, error) {
	return s.store.List(ctx, filter)
}

// Count returns the number of stored records of a model, or of all models
// when modelName is empty.
func (s *RecordService) Count(ctx context.Context, modelName string) (int, error) {
	return s.store.Count(ctx, modelName)
}

// Live returns the IDs of the live records, sorted.
func (s *RecordService) Live() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close disposes every live record. Uncommitted changes are lost.
func (s *RecordService) Close() {
	s.mu.Lock()
	live := s.live
	s.live = make(map[string]*liveRecord)
	s.mu.Unlock()

	for _, rec := range live {
		rec.mu.Lock()
		rec.model.Dispose()
		rec.mu.Unlock()
	}
	s.report(0)
}

func (s *RecordService) recordCommit(modelName, result string) {
	if s.commits != nil {
		s.commits.Committed(modelName, result)
	}
}

// acquire returns the live record locked, opening it from the store if needed.
func (s *RecordService) acquire(ctx context.Context, id string) (*liveRecord, error) {
	s.mu.RLock()
	rec, ok := s.live[id]
	s.mu.RUnlock()

	if !ok {
		snap, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		class, err := s.classes.Lookup(snap.Model)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", id, err)
		}
		opened, err := s.instantiate(class, snap.ID, snap.Version, snap.Data)
		if err != nil {
			return nil, err
		}
		rec = s.track(opened)
	}

	rec.mu.Lock()
	return rec, nil
}

func (s *RecordService) instantiate(class *model.Class, id string, version int, data map[string]any) (*liveRecord, error) {
	queue := scheduler.NewQueue()
	opts := []model.Option{
		model.WithScheduler(queue),
		model.WithLogger(s.logger.With().Str("record", id).Logger()),
	}
	if s.observer != nil {
		opts = append(opts, model.WithObserver(s.observer))
	}

	m, err := class.New(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	rec := &liveRecord{id: id, version: version, model: m, queue: queue}
	m.On(events.EventChange, func(events.Event) error {
		rec.notifications++
		return nil
	})
	return rec, nil
}

// track registers rec unless another goroutine opened the same ID first, in
// which case the existing record wins.
func (s *RecordService) track(rec *liveRecord) *liveRecord {
	s.mu.Lock()
	if existing, ok := s.live[rec.id]; ok {
		s.mu.Unlock()
		rec.model.Dispose()
		return existing
	}
	s.live[rec.id] = rec
	n := len(s.live)
	s.mu.Unlock()

	s.report(n)
	return rec
}

func (s *RecordService) report(n int) {
	if s.gauge != nil {
		s.gauge.Set(float64(n))
	}
}

// validate runs model validation and attaches the declared rules each invalid
// field breaks. Must be called with r.mu held.
func (r *liveRecord) validate(ctx context.Context) error {
	err := r.model.Validate(ctx)

	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		return err
	}

	problems := make(map[string][]string, len(verr.Fields))
	for _, f := range verr.Fields {
		var msgs []string
		for _, v := range f.Descriptor().Violations(f.Get()) {
			msgs = append(msgs, v.Message)
		}
		problems[f.Name()] = msgs
	}
	return &InvalidError{Err: verr, Problems: problems}
}

func (r *liveRecord) flush() {
	r.queue.Drain(maxFlushRounds)
}

func (r *liveRecord) view() Record {
	return Record{
		ID:            r.id,
		Model:         r.model.Name(),
		Version:       r.version,
		Data:          r.model.ToJSON(),
		Changed:       r.model.IsChanged(),
		Notifications: r.notifications,
	}
}

// InvalidError is a validation failure of a record. Problems holds, per
// invalid field, the declared rules the value breaks; it is empty for fields
// rejected by their type's own rule.
type InvalidError struct {
	Err      *model.ValidationError
	Problems map[string][]string
}

func (e *InvalidError) Error() string { return e.Err.Error() }

func (e *InvalidError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the record or its model is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, ports.ErrNotFound) || errors.Is(err, registry.ErrNotRegistered)
}

// FieldNames returns the names of the invalid fields in err, or nil when err
// is not a validation failure.
func FieldNames(err error) []string {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return verr.Names()
	}
	return nil
}

// describe is used in log lines for validation failures.
func describe(err error) string {
	if names := FieldNames(err); names != nil {
		return strings.Join(names, ",")
	}
	return err.Error()
}
