package dispatch

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePushPopFIFO(t *testing.T) {
	q := NewQueue(1 << 20)
	b1 := Batch{Data: []byte("abc"), Starts: []int{0, 3}, Metadata: [][8]byte{{}}}
	b2 := Batch{Data: []byte("de"), Starts: []int{0, 2}, Metadata: [][8]byte{{}}}
	q.Push(b1, b1.ByteSize())
	q.Push(b2, b2.ByteSize())

	got1 := q.Pop()
	got2 := q.Pop()
	assert.Equal(t, "abc", string(got1.Data))
	assert.Equal(t, "de", string(got2.Data))
}

func TestQueueBlocksOnFull(t *testing.T) {
	q := NewQueue(5)
	b := Batch{Data: []byte("0123456789"), Starts: []int{0, 10}, Metadata: [][8]byte{{}}}
	q.Push(b, b.ByteSize()) // load now exceeds maxLoad

	pushed := make(chan struct{})
	go func() {
		q.Push(Batch{Data: []byte("x"), Starts: []int{0, 1}, Metadata: [][8]byte{{}}}, 1)
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("second push should have blocked while queue is over capacity")
	default:
	}

	q.Pop() // drains the first batch, unblocking the second push
	<-pushed
}

func TestQueueBlocksOnEmpty(t *testing.T) {
	q := NewQueue(1 << 20)
	done := make(chan Batch)
	go func() { done <- q.Pop() }()

	b := Batch{Data: []byte("z"), Starts: []int{0, 1}, Metadata: [][8]byte{{}}}
	q.Push(b, b.ByteSize())
	got := <-done
	assert.Equal(t, "z", string(got.Data))
}

// sliceSource yields (data, metadata) pairs from an in-memory list of reads.
type sliceSource struct {
	reads [][]byte
	i     int
}

func (s *sliceSource) Next() ([]byte, [8]byte, bool) {
	if s.i >= len(s.reads) {
		return nil, [8]byte{}, false
	}
	r := s.reads[s.i]
	s.i++
	return r, [8]byte{}, true
}

// collectingCallback records every (readID, read) it observes.
type collectingCallback struct {
	mu      sync.Mutex
	seen    []int64
	reads   map[int64]string
	finishN int
}

func (c *collectingCallback) Process(readID int64, read []byte, _ [8]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, readID)
	if c.reads == nil {
		c.reads = map[int64]string{}
	}
	c.reads[readID] = string(read)
}

func (c *collectingCallback) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishN++
}

func TestRunDispatchesEveryReadExactlyOnce(t *testing.T) {
	reads := [][]byte{
		[]byte("ACGT"), []byte("TTTT"), []byte("GGGG"), []byte("CCCC"),
		[]byte("AAAA"), []byte("ACAC"), []byte("GTGT"), []byte("TATA"),
	}
	src := &sliceSource{reads: reads}

	var callbacks []*collectingCallback
	var mu sync.Mutex
	Run(4, 8, src, 4, func(threadID int) Callback {
		cb := &collectingCallback{}
		mu.Lock()
		callbacks = append(callbacks, cb)
		mu.Unlock()
		return cb
	})

	all := map[int64]string{}
	var allIDs []int64
	for _, cb := range callbacks {
		assert.Equal(t, 1, cb.finishN)
		for id, data := range cb.reads {
			all[id] = data
		}
		allIDs = append(allIDs, cb.seen...)
	}
	sort.Slice(allIDs, func(i, j int) bool { return allIDs[i] < allIDs[j] })
	require.Len(t, allIDs, len(reads))
	for i, id := range allIDs {
		assert.Equal(t, int64(i), id)
	}
	for i, r := range reads {
		assert.Equal(t, string(r), all[int64(i)])
	}
}

func TestRunWithNoReadsStillFinishesAllConsumers(t *testing.T) {
	src := &sliceSource{}
	var n int
	var mu sync.Mutex
	Run(3, 8, src, 4, func(threadID int) Callback {
		cb := &collectingCallback{}
		mu.Lock()
		n++
		mu.Unlock()
		return cb
	})
	assert.Equal(t, 3, n)
}
