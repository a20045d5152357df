package discovery

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/openvisa-go/govisa/internal/queue"
	"github.com/openvisa-go/govisa/logger"
)

// Discover runs the mDNS, USB, and serial scanners concurrently and merges
// their output. Three goroutines race to record items: xsync.MapOf (grounded
// on secs1.Client's use of the same type for concurrent reply bookkeeping)
// answers "have I seen this one before" without a mutex, and only the
// goroutine that wins that race pushes the item onto a lock-free queue
// (internal/queue.NewLockFreeQueue) so first-seen order survives the race
// without a second sort pass. The queue is drained single-threaded after
// wg.Wait() into the glob-filtered, de-duplicated, 128-capped result list of
// spec.md §4.8. Both de-dup steps compare exact strings, so two entries
// that differ only in letter case are both kept.
func Discover(ctx context.Context, pattern string, log logger.Logger) ([]string, error) {
	seen := xsync.NewMapOf[string, struct{}]()
	order := queue.NewLockFreeQueue()

	record := func(items []string) {
		for _, item := range items {
			if _, loaded := seen.LoadOrStore(item, struct{}{}); !loaded {
				order.Enqueue(item)
			}
		}
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); record(QueryMDNS(ctx, log)) }()
	go func() { defer wg.Done(); record(QueryUSB(log)) }()
	go func() { defer wg.Done(); record(QuerySerial(log)) }()
	wg.Wait()

	candidates := make([]string, 0, order.Length())
	for v := order.Dequeue(); v != nil; v = order.Dequeue() {
		candidates = append(candidates, v.(string))
	}

	return filterDedupCap(pattern, candidates)
}
