package session

import (
	"context"
	"fmt"

	"github.com/openvisa-go/govisa/discovery"
	"github.com/openvisa-go/govisa/internal/queue"
	"github.com/openvisa-go/govisa/logger"
)

// findList is one entry in the registry's find-list table (spec.md §3):
// a handle-indexed record holding up to 128 resource-string descriptors,
// consumed sequentially by FindNext. The pending queue is the same
// queue.Queue the teacher's SML lexer uses to buffer decoded tokens
// (sml/lexer.go), repurposed here to buffer decoded resource strings.
type findList struct {
	active     bool
	generation uint32
	pending    queue.Queue
	count      int
}

type findListSlot struct {
	findList
}

// FindResources runs the discovery engine for pattern and stores the
// (already glob-filtered, de-duplicated, capped) results in a new
// find-list. It returns the find-list handle, the total match count, and
// the first matching resource string, mirroring viFindRsrc's contract.
func FindResources(ctx context.Context, pattern string) (Handle, int, string, error) {
	results, err := discovery.Discover(ctx, pattern, logger.GetLogger())
	if err != nil {
		return 0, 0, "", err
	}

	r := get()
	r.mu.Lock()
	defer r.mu.Unlock()

	active := make([]bool, findListTableCapacity)
	for i := range r.findLists {
		active[i] = r.findLists[i].active
	}
	index, generation, ok := allocSlot(active, r.nextFindGen[:])
	if !ok {
		return 0, 0, "", fmt.Errorf("session: %w: find-list table full", ErrAllocationFailure)
	}

	q := queue.NewSliceQueue(len(results))
	first := results[0]
	for _, item := range results[1:] {
		q.Enqueue(item)
	}

	r.findLists[index] = findListSlot{findList: findList{
		active:     true,
		generation: generation,
		pending:    q,
		count:      len(results),
	}}
	return makeHandle(generation, index), len(results), first, nil
}

// FindNext pops the next resource string from h's find-list. The second
// return value is false once the list is exhausted.
func FindNext(h Handle) (string, bool, error) {
	r := get()
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := h.index()
	if idx < 0 || idx >= findListTableCapacity {
		return "", false, ErrInvalidObject
	}
	fl := &r.findLists[idx]
	if !fl.active || fl.generation != h.generation() {
		return "", false, ErrInvalidObject
	}
	if fl.pending.IsEmpty() {
		return "", false, nil
	}
	item, _ := fl.pending.Dequeue().(string)
	return item, true, nil
}

// CloseFindList releases h.
func CloseFindList(h Handle) error {
	r := get()
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := h.index()
	if idx < 0 || idx >= findListTableCapacity {
		return ErrInvalidObject
	}
	fl := &r.findLists[idx]
	if !fl.active || fl.generation != h.generation() {
		return ErrInvalidObject
	}
	r.findLists[idx] = findListSlot{}
	r.nextFindGen[idx] = h.generation() + 1
	return nil
}
