// Package dispatch implements the single-producer/multi-consumer bounded
// work queue (C9): one producer thread drains a sequence source into byte
// batches and a pool of consumer goroutines each process a batch's reads
// through a callback.
//
// Grounded directly on original_source/ParallelBoundedQueue.hh (a classic
// bounded producer/consumer queue built from a mutex and two condition
// variables, admission governed by total byte load rather than item count)
// and original_source/include/WorkDispatcher.hh's producer/consumer loop
// shape. The teacher has no equivalent de Bruijn/read-dispatch code, but
// cmd/bio-bam-sort/sorter/sort.go's NewSorter shows the same
// bounded-channel-plus-WaitGroup worker pool idiom this package's Run
// function follows at the outer layer.
package dispatch

import "sync"

// Batch is one group of reads drained from a sequence source: concatenated
// read bytes, per-read start offsets (sentinel-terminated: len(Starts) ==
// NumReads()+1, with the last entry equal to len(Data)), and an 8-byte
// per-read metadata slot (e.g. a color tag) for each read.
type Batch struct {
	FirstID  int64
	Data     []byte
	Starts   []int
	Metadata [][8]byte
}

// NumReads returns the number of reads packed into the batch.
func (b *Batch) NumReads() int {
	if len(b.Starts) == 0 {
		return 0
	}
	return len(b.Starts) - 1
}

// Read returns read i's bytes and metadata.
func (b *Batch) Read(i int) ([]byte, [8]byte) {
	return b.Data[b.Starts[i]:b.Starts[i+1]], b.Metadata[i]
}

// Empty reports whether this is the zero-size end-of-stream sentinel batch.
func (b *Batch) Empty() bool { return len(b.Data) == 0 }

// ByteSize is the load a Batch contributes to a Queue's admission check.
func (b *Batch) ByteSize() int64 {
	return int64(len(b.Data)) + int64(len(b.Starts))*8 + int64(len(b.Metadata))*8
}

type queuedBatch struct {
	batch Batch
	load  int64
}

// Queue is a bounded blocking queue of Batches: Push blocks while the
// queue's total load exceeds maxLoad, Pop blocks while the queue is empty.
// Mirrors ParallelBoundedQueue.hh's push/pop exactly, substituting Go's
// sync.Mutex/sync.Cond for std::mutex/std::condition_variable.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []queuedBatch
	load     int64
	maxLoad  int64
}

// NewQueue returns an empty Queue admitting up to maxLoad bytes of queued
// batches before Push blocks.
func NewQueue(maxLoad int64) *Queue {
	q := &Queue{maxLoad: maxLoad}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push enqueues b, blocking while the queue's current load exceeds maxLoad.
// load is the byte footprint to charge against admission (callers pass
// b.ByteSize(), except the final end-of-stream sentinel, which is pushed
// with load 0 so it is never blocked by a full queue).
func (q *Queue) Push(b Batch, load int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.load > q.maxLoad {
		q.notFull.Wait()
	}
	q.items = append(q.items, queuedBatch{batch: b, load: load})
	q.load += load
	q.notEmpty.Broadcast()
}

// Pop dequeues the oldest Batch, blocking while the queue is empty.
func (q *Queue) Pop() Batch {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.notEmpty.Wait()
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.load -= item.load
	q.notFull.Broadcast()
	return item.batch
}
