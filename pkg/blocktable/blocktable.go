// Package blocktable implements a fixed partition of an address space into
// contiguous blocks, allocated to owners under a first-fit policy.
//
// Block boundaries are fixed when the table is built. Blocks are never split,
// merged or resized, so an allocation always consumes a whole block even when
// the request is smaller than its capacity.
package blocktable

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Policy controls whether an owner may hold more than one block.
type Policy int

const (
	// PolicyStrict rejects an allocation for an owner that already holds a
	// block, keeping one block per owner.
	PolicyStrict Policy = iota
	// PolicyLegacy grants any allocation that fits, even to an owner that
	// already holds a block. Deallocate then frees the owner's first block.
	PolicyLegacy
)

// String returns the configuration name of the policy
func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy converts a configuration name into a Policy
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "strict":
		return PolicyStrict, nil
	case "legacy":
		return PolicyLegacy, nil
	default:
		return PolicyStrict, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, name)
	}
}

// block is one fixed-size partition. owner is non-empty iff occupied.
type block struct {
	capacity int
	occupied bool
	owner    string
}

// BlockView is a read-only copy of one block's state.
type BlockView struct {
	Index    int
	Start    int // offset of the block, the sum of the preceding capacities
	Capacity int
	Occupied bool
	Owner    string // empty when the block is free
}

// Allocation describes a granted request.
type Allocation struct {
	Index     int
	Capacity  int
	Requested int
}

// Waste is the part of the block the request does not use. It is not
// reclaimable while the block is held.
func (a Allocation) Waste() int {
	return a.Capacity - a.Requested
}

// Option configures a BlockTable
type Option func(*BlockTable)

// WithPolicy sets the ownership policy
func WithPolicy(p Policy) Option {
	return func(t *BlockTable) {
		t.policy = p
	}
}

// BlockTable is an ordered, fixed-length sequence of blocks in address order.
// It is safe for concurrent use: mutations hold the write lock for the whole
// scan, readers hold the read lock. Len, TotalCapacity and Policy read fields
// fixed at construction and take no lock.
type BlockTable struct {
	mu     sync.RWMutex
	blocks []block
	total  int
	policy Policy
}

// New builds a table with one free block per capacity, in the given order.
func New(capacities []int, opts ...Option) (*BlockTable, error) {
	if len(capacities) == 0 {
		return nil, fmt.Errorf("%w: no block capacities given", ErrInvalidConfig)
	}

	t := &BlockTable{
		blocks: make([]block, len(capacities)),
	}
	for i, c := range capacities {
		if c <= 0 {
			return nil, fmt.Errorf("%w: block %d has non-positive capacity %d", ErrInvalidConfig, i, c)
		}
		if c > math.MaxInt-t.total {
			return nil, fmt.Errorf("%w: capacities overflow at block %d", ErrInvalidConfig, i)
		}
		t.blocks[i] = block{capacity: c}
		t.total += c
	}

	for _, opt := range opts {
		opt(t)
	}
	if t.policy != PolicyStrict && t.policy != PolicyLegacy {
		return nil, fmt.Errorf("%w: unknown policy %d", ErrInvalidConfig, int(t.policy))
	}

	return t, nil
}

// Allocate grants owner the first free block whose capacity is at least
// requestedSize. The earliest such block wins even if a later one fits more
// tightly. On failure the table is unchanged.
func (t *BlockTable) Allocate(owner string, requestedSize int) (Allocation, error) {
	if owner == "" {
		return Allocation{}, fmt.Errorf("%w: empty owner", ErrInvalidRequest)
	}
	if requestedSize <= 0 {
		return Allocation{}, fmt.Errorf("%w: non-positive size %d", ErrInvalidRequest, requestedSize)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.policy == PolicyStrict {
		if idx := t.indexOf(owner); idx >= 0 {
			return Allocation{}, fmt.Errorf("%w: %q holds block %d", ErrAlreadyAllocated, owner, idx)
		}
	}

	for i := range t.blocks {
		b := &t.blocks[i]
		if b.occupied || b.capacity < requestedSize {
			continue
		}
		b.occupied = true
		b.owner = owner
		return Allocation{Index: i, Capacity: b.capacity, Requested: requestedSize}, nil
	}

	return Allocation{}, fmt.Errorf("%w: %q requested %d", ErrNoFit, owner, requestedSize)
}

// Deallocate frees the first block held by owner and returns its index.
func (t *BlockTable) Deallocate(owner string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexOf(owner)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %q", ErrNotFound, owner)
	}
	t.blocks[idx] = block{capacity: t.blocks[idx].capacity}
	return idx, nil
}

// indexOf returns the first block held by owner, or -1. Caller holds mu.
func (t *BlockTable) indexOf(owner string) int {
	if owner == "" {
		return -1
	}
	for i := range t.blocks {
		if t.blocks[i].occupied && t.blocks[i].owner == owner {
			return i
		}
	}
	return -1
}

// Snapshot returns a read-only view of every block in address order.
// Nothing is copied until the sequence is ranged over; each range takes a
// fresh consistent copy, so the sequence can be iterated repeatedly and the
// caller may mutate the table from inside the loop.
func (t *BlockTable) Snapshot() iter.Seq[BlockView] {
	return func(yield func(BlockView) bool) {
		for _, v := range t.copyViews() {
			if !yield(v) {
				return
			}
		}
	}
}

// Views collects Snapshot into a slice
func (t *BlockTable) Views() []BlockView {
	return slices.Collect(t.Snapshot())
}

func (t *BlockTable) copyViews() []BlockView {
	t.mu.RLock()
	defer t.mu.RUnlock()

	views := make([]BlockView, len(t.blocks))
	start := 0
	for i, b := range t.blocks {
		views[i] = BlockView{
			Index:    i,
			Start:    start,
			Capacity: b.capacity,
			Occupied: b.occupied,
			Owner:    b.owner,
		}
		start += b.capacity
	}
	return views
}

// Fragmentation returns the total capacity of all free blocks, whether or
// not any single one of them could satisfy a future request.
func (t *BlockTable) Fragmentation() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	free := 0
	for _, b := range t.blocks {
		if !b.occupied {
			free += b.capacity
		}
	}
	return free
}

// LargestFree returns the capacity of the largest free block, or 0.
func (t *BlockTable) LargestFree() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	largest := 0
	for _, b := range t.blocks {
		if !b.occupied && b.capacity > largest {
			largest = b.capacity
		}
	}
	return largest
}

// Used returns the total capacity of occupied blocks.
func (t *BlockTable) Used() int {
	return t.total - t.Fragmentation()
}

// Occupied returns the number of occupied blocks.
func (t *BlockTable) Occupied() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, b := range t.blocks {
		if b.occupied {
			n++
		}
	}
	return n
}

// Len returns the number of blocks.
func (t *BlockTable) Len() int {
	return len(t.blocks)
}

// TotalCapacity returns the sum of all block capacities.
func (t *BlockTable) TotalCapacity() int {
	return t.total
}

// Policy returns the ownership policy the table was built with.
func (t *BlockTable) Policy() Policy {
	return t.policy
}

// OwnerOf returns the first block held by owner.
func (t *BlockTable) OwnerOf(owner string) (BlockView, bool) {
	for v := range t.Snapshot() {
		if v.Occupied && v.Owner == owner {
			return v, true
		}
	}
	return BlockView{}, false
}

// Fingerprint hashes the table state. Two tables with equal snapshots have
// equal fingerprints.
func (t *BlockTable) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	for v := range t.Snapshot() {
		binary.LittleEndian.PutUint64(buf[:], uint64(v.Capacity))
		d.Write(buf[:])
		if v.Occupied {
			binary.LittleEndian.PutUint64(buf[:], uint64(len(v.Owner)))
			d.Write(buf[:])
			d.WriteString(v.Owner)
		} else {
			// length marker that no owner string can produce
			binary.LittleEndian.PutUint64(buf[:], ^uint64(0))
			d.Write(buf[:])
		}
	}
	return d.Sum64()
}
