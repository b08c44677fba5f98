// Package jobindex implements the JobIndex: the priority-ordered,
// bijectively cross-referenced forward/reverse index of pending
// compaction advertisements. A single mutex guards both maps so the
// forward/reverse bijection holds and no bucket is ever left empty
// after an operation completes.
package jobindex

import (
	"container/list"
	"sort"
	"sync"

	"github.com/cuemby/compactord/pkg/compaction"
	"github.com/cuemby/compactord/pkg/metrics"
)

// bucket is the insertion-ordered set of tablet servers advertising at
// one (queue, priority). pos gives O(1) membership checks so Add stays
// idempotent and RemoveTserver can excise a single entry without a scan.
type bucket struct {
	order *list.List
	pos   map[compaction.TabletServerID]*list.Element
}

func newBucket() *bucket {
	return &bucket{order: list.New(), pos: make(map[compaction.TabletServerID]*list.Element)}
}

func (b *bucket) add(tsi compaction.TabletServerID) {
	if _, exists := b.pos[tsi]; exists {
		return
	}
	b.pos[tsi] = b.order.PushBack(tsi)
}

func (b *bucket) remove(tsi compaction.TabletServerID) {
	if el, exists := b.pos[tsi]; exists {
		b.order.Remove(el)
		delete(b.pos, tsi)
	}
}

func (b *bucket) empty() bool {
	return b.order.Len() == 0
}

// popFront removes and returns the earliest-inserted tablet server.
func (b *bucket) popFront() compaction.TabletServerID {
	front := b.order.Front()
	tsi := front.Value.(compaction.TabletServerID)
	b.order.Remove(front)
	delete(b.pos, tsi)
	return tsi
}

// queueBuckets holds every priority bucket for one queue, plus a
// descending-sorted list of the priorities currently populated.
type queueBuckets struct {
	byPriority map[int64]*bucket
	sorted     []int64 // descending; kept in sync by insertSorted/removeEmpty
}

func newQueueBuckets() *queueBuckets {
	return &queueBuckets{byPriority: make(map[int64]*bucket)}
}

func (q *queueBuckets) bucketFor(priority int64) *bucket {
	b, ok := q.byPriority[priority]
	if !ok {
		b = newBucket()
		q.byPriority[priority] = b
		q.insertSorted(priority)
	}
	return b
}

func (q *queueBuckets) insertSorted(priority int64) {
	idx := sort.Search(len(q.sorted), func(i int) bool { return q.sorted[i] <= priority })
	q.sorted = append(q.sorted, 0)
	copy(q.sorted[idx+1:], q.sorted[idx:])
	q.sorted[idx] = priority
}

func (q *queueBuckets) removeEmpty(priority int64) {
	b, ok := q.byPriority[priority]
	if !ok || !b.empty() {
		return
	}
	delete(q.byPriority, priority)
	for i, p := range q.sorted {
		if p == priority {
			q.sorted = append(q.sorted[:i], q.sorted[i+1:]...)
			break
		}
	}
}

func (q *queueBuckets) empty() bool {
	return len(q.byPriority) == 0
}

func (q *queueBuckets) size() int {
	n := 0
	for _, b := range q.byPriority {
		n += b.order.Len()
	}
	return n
}

// Index is the JobIndex: forward map queue -> priority -> insertion
// order set of tablet servers, plus a reverse map for O(1) purge on
// tablet-server loss.
type Index struct {
	mu       sync.Mutex
	forward  map[string]*queueBuckets
	reverse  map[compaction.TabletServerID]map[compaction.QueueAndPriority]struct{}
	interner *interner
}

// New returns an empty JobIndex.
func New() *Index {
	return &Index{
		forward:  make(map[string]*queueBuckets),
		reverse:  make(map[compaction.TabletServerID]map[compaction.QueueAndPriority]struct{}),
		interner: newInterner(),
	}
}

// Add is idempotent: it ensures tsi is present in bucket (queue,
// priority) and that the reverse map reflects the pair. queue is
// interned on arrival.
func (idx *Index) Add(tsi compaction.TabletServerID, queue string, priority int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	canonical := idx.interner.intern(queue)
	qp := compaction.QueueAndPriority{Queue: canonical, Priority: priority}

	qb, ok := idx.forward[canonical]
	if !ok {
		qb = newQueueBuckets()
		idx.forward[canonical] = qb
	}
	qb.bucketFor(priority).add(tsi)

	if idx.reverse[tsi] == nil {
		idx.reverse[tsi] = make(map[compaction.QueueAndPriority]struct{})
	}
	idx.reverse[tsi][qp] = struct{}{}

	metrics.PendingJobsTotal.WithLabelValues(canonical).Set(float64(qb.size()))
}

// RemoveTserver removes tsi from every bucket it appears in, pruning any
// bucket or queue left empty, and returns what was removed.
func (idx *Index) RemoveTserver(tsi compaction.TabletServerID) []compaction.QueueAndPriority {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entries, ok := idx.reverse[tsi]
	if !ok {
		return nil
	}

	removed := make([]compaction.QueueAndPriority, 0, len(entries))
	touchedQueues := make(map[string]struct{}, len(entries))
	for qp := range entries {
		removed = append(removed, qp)
		touchedQueues[qp.Queue] = struct{}{}
		qb, ok := idx.forward[qp.Queue]
		if !ok {
			continue
		}
		if b, ok := qb.byPriority[qp.Priority]; ok {
			b.remove(tsi)
			qb.removeEmpty(qp.Priority)
		}
		if qb.empty() {
			delete(idx.forward, qp.Queue)
		}
	}
	delete(idx.reverse, tsi)

	for queue := range touchedQueues {
		size := 0
		if qb, ok := idx.forward[queue]; ok {
			size = qb.size()
		}
		metrics.PendingJobsTotal.WithLabelValues(queue).Set(float64(size))
	}
	return removed
}

// PickHighest removes and returns the earliest-inserted tablet server
// from queue's highest populated priority bucket. ok is false if queue
// has no entries.
func (idx *Index) PickHighest(queue string) (priority int64, tsi compaction.TabletServerID, ok bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	qb, exists := idx.forward[queue]
	if !exists || len(qb.sorted) == 0 {
		return 0, compaction.TabletServerID{}, false
	}

	top := qb.sorted[0]
	b := qb.byPriority[top]
	picked := b.popFront()
	qb.removeEmpty(top)
	if qb.empty() {
		delete(idx.forward, queue)
	}

	qp := compaction.QueueAndPriority{Queue: queue, Priority: top}
	if entries, ok := idx.reverse[picked]; ok {
		delete(entries, qp)
		if len(entries) == 0 {
			delete(idx.reverse, picked)
		}
	}

	size := 0
	if qb, ok := idx.forward[queue]; ok {
		size = qb.size()
	}
	metrics.PendingJobsTotal.WithLabelValues(queue).Set(float64(size))

	return top, picked, true
}

// Entry is one (queue, priority, tablet-server) row in a Snapshot.
type Entry struct {
	Queue    string
	Priority int64
	TServer  compaction.TabletServerID
}

// Snapshot returns a read-only copy of every pending advertisement, for
// diagnostics. It holds the mutex only long enough to copy.
func (idx *Index) Snapshot() []Entry {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var out []Entry
	for queue, qb := range idx.forward {
		for priority, b := range qb.byPriority {
			for el := b.order.Front(); el != nil; el = el.Next() {
				out = append(out, Entry{
					Queue:    queue,
					Priority: priority,
					TServer:  el.Value.(compaction.TabletServerID),
				})
			}
		}
	}
	return out
}
