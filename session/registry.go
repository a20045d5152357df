package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openvisa-go/govisa/logger"
	"github.com/openvisa-go/govisa/resource"
	"github.com/openvisa-go/govisa/transport"

	// Blank-imported so their init() functions register themselves with
	// transport.New's registry (see transport/register.go); transport
	// itself cannot import these packages without creating an import
	// cycle, since each of them imports transport for the Transport
	// contract and shared error sentinels.
	_ "github.com/openvisa-go/govisa/transport/gpib"
	_ "github.com/openvisa-go/govisa/transport/hislip"
	_ "github.com/openvisa-go/govisa/transport/rawsocket"
	_ "github.com/openvisa-go/govisa/transport/serial"
	_ "github.com/openvisa-go/govisa/transport/usbtmc"
	_ "github.com/openvisa-go/govisa/transport/vxi11"
)

// sessionTableCapacity is the fixed table size (spec.md §3: "capacity ≥
// 256").
const sessionTableCapacity = 256

// findListTableCapacity is the fixed find-list table size (spec.md §3).
const findListTableCapacity = 128

// slot wraps a Session with the bookkeeping the table needs to detect free
// entries and stale handles.
type slot struct {
	Session
}

// registry is the process-wide, lazily initialized singleton of spec.md §3
// holding the session table and the find-list table. There is no single
// handle counter: each slot keeps its own generation (nextSessGen,
// nextFindGen), which is bumped when the slot is closed.
type registry struct {
	mu sync.Mutex

	sessions    [sessionTableCapacity]slot
	nextSessGen [sessionTableCapacity]uint32

	findLists   [findListTableCapacity]findListSlot
	nextFindGen [findListTableCapacity]uint32
}

var (
	inst     *registry
	instOnce sync.Once
)

// get returns the process-wide registry, initializing it on first use
// (mirrors the teacher's getMsgIDGenerator singleton in hsms/id_gen.go).
func get() *registry {
	instOnce.Do(func() {
		inst = &registry{}
	})
	return inst
}

func allocSlot(active []bool, nextGen []uint32) (index int, generation uint32, ok bool) {
	for i, taken := range active {
		if !taken {
			return i, nextGen[i], true
		}
	}
	return 0, 0, false
}

// OpenDefaultResourceManager allocates the Resource Manager session, which
// owns no transport (spec.md §3).
func OpenDefaultResourceManager() (Handle, error) {
	r := get()
	r.mu.Lock()
	defer r.mu.Unlock()

	active := make([]bool, sessionTableCapacity)
	for i := range r.sessions {
		active[i] = r.sessions[i].active
	}
	index, generation, ok := allocSlot(active, r.nextSessGen[:])
	if !ok {
		return 0, fmt.Errorf("session: %w: session table full", ErrAllocationFailure)
	}

	r.sessions[index] = slot{Session: Session{
		active:     true,
		generation: generation,
		isRM:       true,
		attrs:      defaultAttrs(),
		log:        logger.GetLogger(),
	}}
	return makeHandle(generation, index), nil
}

// Open parses rsrc, selects a transport via the factory, and opens it,
// honoring an explicit open timeout via opts (default: transport.DefaultTimeout).
func Open(ctx context.Context, rsrc string, opts ...Option) (Handle, error) {
	desc, err := resource.Parse(rsrc)
	if err != nil {
		return 0, fmt.Errorf("session: %w: %v", ErrInvalidResourceName, err)
	}

	a := defaultAttrs()
	if err := applyOptions(&a, opts); err != nil {
		return 0, err
	}

	log := logger.GetLogger()
	tr, err := transport.New(desc, log)
	if err != nil {
		return 0, fmt.Errorf("session: %w", err)
	}

	openCtx, cancel := transport.WithTimeout(ctx, msToDuration(a.timeoutMillis))
	defer cancel()
	if err := tr.Open(openCtx); err != nil {
		return 0, err
	}

	r := get()
	r.mu.Lock()
	defer r.mu.Unlock()

	active := make([]bool, sessionTableCapacity)
	for i := range r.sessions {
		active[i] = r.sessions[i].active
	}
	index, generation, ok := allocSlot(active, r.nextSessGen[:])
	if !ok {
		_ = tr.Close()
		return 0, fmt.Errorf("session: %w: session table full", ErrAllocationFailure)
	}

	r.sessions[index] = slot{Session: Session{
		active:     true,
		generation: generation,
		desc:       desc,
		transport:  tr,
		attrs:      a,
		log:        log,
	}}
	return makeHandle(generation, index), nil
}

// lookup resolves h to its live Session, or ErrInvalidObject if h is stale
// or out of range.
func (r *registry) lookup(h Handle) (*Session, error) {
	idx := h.index()
	if idx < 0 || idx >= sessionTableCapacity {
		return nil, ErrInvalidObject
	}
	s := &r.sessions[idx]
	if !s.active || s.generation != h.generation() {
		return nil, ErrInvalidObject
	}
	return &s.Session, nil
}

// Get resolves h to its Session under the registry lock, then returns a
// pointer safe to use after the lock is released: per spec.md §5, "transport
// I/O calls happen outside that lock" once the session itself is not being
// concurrently closed by contract.
func Get(h Handle) (*Session, error) {
	r := get()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(h)
}

// Close releases h. If h names an open (non-RM) session, its transport is
// closed first; the slot's generation is bumped so any stale copy of h is
// rejected by future lookups.
func Close(h Handle) error {
	r := get()
	r.mu.Lock()
	s, err := r.lookup(h)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	tr := s.transport
	idx := h.index()
	r.sessions[idx] = slot{}
	r.nextSessGen[idx] = h.generation() + 1
	r.mu.Unlock()

	if tr != nil {
		return tr.Close()
	}
	return nil
}

func msToDuration(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
