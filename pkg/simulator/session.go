// Package simulator runs one allocation session: a block table built from a
// configuration, with every request logged, counted and traced, and
// observers notified after each successful change.
package simulator

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/KevoDB/firstfit/pkg/blocktable"
	"github.com/KevoDB/firstfit/pkg/common/log"
	"github.com/KevoDB/firstfit/pkg/config"
	"github.com/KevoDB/firstfit/pkg/stats"
	"github.com/KevoDB/firstfit/pkg/telemetry"
)

// Session owns a BlockTable and the instrumentation around it.
type Session struct {
	table       *blocktable.BlockTable
	totalMemory int

	logger  log.Logger
	stats   stats.Collector
	tel     telemetry.Telemetry
	metrics SessionMetrics

	observersMu sync.RWMutex
	observers   map[uint64]Observer
	nextID      uint64
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger log.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithStats sets the statistics collector
func WithStats(collector stats.Collector) Option {
	return func(s *Session) {
		s.stats = collector
	}
}

// WithTelemetry sets the telemetry backend
func WithTelemetry(tel telemetry.Telemetry) Option {
	return func(s *Session) {
		s.tel = tel
	}
}

// New validates cfg and builds a session over a fresh table.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	total, sizes := cfg.Layout()
	policy := cfg.TablePolicy()

	table, err := blocktable.New(sizes, blocktable.WithPolicy(policy))
	if err != nil {
		return nil, fmt.Errorf("failed to build block table: %w", err)
	}

	s := &Session{
		table:       table,
		totalMemory: total,
		observers:   make(map[uint64]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = log.GetDefaultLogger()
	}
	s.logger = s.logger.WithField("component", telemetry.ComponentSession)
	if s.stats == nil {
		s.stats = stats.NewAtomicCollector()
	}
	if s.tel == nil {
		s.tel = telemetry.NewNoop()
	}
	s.metrics = NewSessionMetrics(s.tel, policy.String())

	if table.TotalCapacity() > total {
		s.logger.Warn("blocks sum to %d units, more than the declared total of %d", table.TotalCapacity(), total)
	}
	s.logger.Info("session ready: %d blocks, %d units, policy %s", table.Len(), table.TotalCapacity(), policy)
	s.stats.TrackFreeUnits(uint64(table.Fragmentation()))

	return s, nil
}

// Allocate requests a block for owner under the first-fit policy.
func (s *Session) Allocate(ctx context.Context, owner string, size int) (blocktable.Allocation, error) {
	ctx, span := s.tel.StartSpan(ctx, "firstfit.session.allocate",
		attribute.Int(telemetry.AttrRequested, size),
	)
	defer span.End()

	start := time.Now()
	alloc, err := s.table.Allocate(owner, size)
	elapsed := time.Since(start)

	s.stats.TrackOperationWithLatency(stats.OpAllocate, uint64(elapsed.Nanoseconds()))
	s.metrics.RecordOperation(ctx, telemetry.OpTypeAllocate, elapsed, blocktable.ErrorKind(err))

	logger := s.logger.WithFields(map[string]interface{}{"owner": owner, "size": size})
	if err != nil {
		s.stats.TrackError(blocktable.ErrorKind(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, blocktable.ErrorKind(err))
		logger.Warn("allocation rejected: %v", err)
		return alloc, err
	}

	span.SetAttributes(
		attribute.Int(telemetry.AttrBlockIndex, alloc.Index),
		attribute.Int(telemetry.AttrBlockCapacity, alloc.Capacity),
	)
	s.stats.TrackAllocation(uint64(size), uint64(alloc.Capacity))
	s.stats.TrackFreeUnits(uint64(s.table.Fragmentation()))
	s.metrics.RecordAllocation(ctx, size, alloc.Capacity)
	logger.Info("allocated block %d (%d units, %d unused)", alloc.Index, alloc.Capacity, alloc.Waste())

	s.notify(Change{
		Kind:      ChangeAllocated,
		Owner:     owner,
		Index:     alloc.Index,
		Capacity:  alloc.Capacity,
		Requested: size,
	})
	return alloc, nil
}

// Deallocate frees the block held by owner and returns its index.
func (s *Session) Deallocate(ctx context.Context, owner string) (int, error) {
	ctx, span := s.tel.StartSpan(ctx, "firstfit.session.deallocate")
	defer span.End()

	start := time.Now()
	idx, err := s.table.Deallocate(owner)
	elapsed := time.Since(start)

	s.stats.TrackOperationWithLatency(stats.OpDeallocate, uint64(elapsed.Nanoseconds()))
	s.metrics.RecordOperation(ctx, telemetry.OpTypeDeallocate, elapsed, blocktable.ErrorKind(err))

	logger := s.logger.WithField("owner", owner)
	if err != nil {
		s.stats.TrackError(blocktable.ErrorKind(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, blocktable.ErrorKind(err))
		logger.Warn("deallocation rejected: %v", err)
		return idx, err
	}

	capacity := s.blockCapacity(idx)
	span.SetAttributes(
		attribute.Int(telemetry.AttrBlockIndex, idx),
		attribute.Int(telemetry.AttrBlockCapacity, capacity),
	)
	s.stats.TrackRelease(uint64(capacity))
	s.stats.TrackFreeUnits(uint64(s.table.Fragmentation()))
	s.metrics.RecordRelease(ctx, capacity)
	logger.Info("freed block %d (%d units)", idx, capacity)

	s.notify(Change{
		Kind:     ChangeDeallocated,
		Owner:    owner,
		Index:    idx,
		Capacity: capacity,
	})
	return idx, nil
}

func (s *Session) blockCapacity(idx int) int {
	for v := range s.table.Snapshot() {
		if v.Index == idx {
			return v.Capacity
		}
	}
	return 0
}

// Snapshot returns the table's lazy block view sequence.
func (s *Session) Snapshot() iter.Seq[blocktable.BlockView] {
	s.stats.TrackOperation(stats.OpSnapshot)
	return s.table.Snapshot()
}

// Views returns the current block views as a slice.
func (s *Session) Views() []blocktable.BlockView {
	s.stats.TrackOperation(stats.OpSnapshot)
	return s.table.Views()
}

// Fragmentation returns the total free units and records it.
func (s *Session) Fragmentation(ctx context.Context) int {
	free := s.table.Fragmentation()
	s.stats.TrackOperation(stats.OpFragmentation)
	s.stats.TrackFreeUnits(uint64(free))
	s.metrics.RecordFragmentation(ctx, free, s.table.LargestFree())
	return free
}

// TotalMemory returns the declared total used as the display bound.
func (s *Session) TotalMemory() int {
	return s.totalMemory
}

// Table exposes the underlying table for read-only queries.
func (s *Session) Table() *blocktable.BlockTable {
	return s.table
}

// Subscribe registers o for change notifications and returns a function
// that removes it.
func (s *Session) Subscribe(o Observer) func() {
	s.observersMu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	s.observersMu.Unlock()

	return func() {
		s.observersMu.Lock()
		delete(s.observers, id)
		s.observersMu.Unlock()
	}
}

// notify calls observers in subscription order.
func (s *Session) notify(change Change) {
	s.observersMu.RLock()
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	s.observersMu.RUnlock()
	slices.Sort(ids)

	for _, id := range ids {
		s.observersMu.RLock()
		o, ok := s.observers[id]
		s.observersMu.RUnlock()
		if ok {
			o.OnTableChanged(s, change)
		}
	}
}

// Stats returns collector statistics plus live table gauges.
func (s *Session) Stats() map[string]interface{} {
	out := s.stats.GetStats()
	out["blocks_total"] = s.table.Len()
	out["blocks_occupied"] = s.table.Occupied()
	out["free_units"] = s.table.Fragmentation()
	out["used_units"] = s.table.Used()
	out["largest_free_block"] = s.table.LargestFree()
	out["policy"] = s.table.Policy().String()
	return out
}

// Close shuts down the session's telemetry, flushing anything pending.
func (s *Session) Close(ctx context.Context) error {
	if err := s.metrics.Close(); err != nil {
		return err
	}
	return s.tel.Shutdown(ctx)
}
