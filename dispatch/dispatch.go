package dispatch

import "sync"

// Source yields one read's bytes and metadata at a time; ok is false once
// exhausted.
type Source interface {
	Next() (data []byte, metadata [8]byte, ok bool)
}

// Callback processes reads dispatched to one consumer, in increasing
// read-id order within any single batch it is handed.
type Callback interface {
	// Process handles one read. readID is its position in the overall
	// input stream (0-based).
	Process(readID int64, read []byte, metadata [8]byte)
	// Finish is called once, after this consumer's batches are exhausted.
	Finish()
}

// RunProducer drains src into Batches of approximately batchSize bytes and
// pushes them to q, finishing with a zero-load, zero-size sentinel batch
// that signals end-of-stream to every consumer. Mirrors
// WorkDispatcher.hh's dispatcher_producer.
func RunProducer(q *Queue, src Source, batchSize int64) {
	var cur Batch
	var readID int64

	flush := func() {
		if len(cur.Data) == 0 {
			return
		}
		cur.Starts = append(cur.Starts, len(cur.Data))
		cur.Metadata = append(cur.Metadata, [8]byte{})
		q.Push(cur, cur.ByteSize())
		cur = Batch{}
	}

	for {
		data, meta, ok := src.Next()
		if !ok {
			break
		}
		if len(cur.Data) == 0 {
			cur.FirstID = readID
		}
		cur.Starts = append(cur.Starts, len(cur.Data))
		cur.Metadata = append(cur.Metadata, meta)
		cur.Data = append(cur.Data, data...)
		readID++
		if int64(len(cur.Data)) >= batchSize {
			flush()
		}
	}
	flush()

	// End-of-stream sentinel: an empty batch pushed with zero load so it
	// is never held back by a full queue.
	cur.Starts = append(cur.Starts, len(cur.Data))
	cur.Metadata = append(cur.Metadata, [8]byte{})
	q.Push(cur, 0)
}

// RunConsumer pops batches from q and dispatches their reads to cb until it
// observes the end-of-stream sentinel, which it re-pushes (load 0) so
// sibling consumers also observe it, then calls cb.Finish.
func RunConsumer(q *Queue, cb Callback) {
	for {
		batch := q.Pop()
		if batch.Empty() {
			q.Push(batch, 0)
			break
		}
		for i := 0; i < batch.NumReads(); i++ {
			read, meta := batch.Read(i)
			cb.Process(batch.FirstID+int64(i), read, meta)
		}
	}
	cb.Finish()
}

// Run wires a producer and n consumer goroutines around a freshly created
// Queue of capacity maxLoad, and blocks until every read has been
// dispatched and every callback has finished. makeCallback is invoked once
// per consumer, receiving that consumer's 0-based thread index.
func Run(n int, maxLoad int64, src Source, batchSize int64, makeCallback func(threadID int) Callback) {
	q := NewQueue(maxLoad)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		cb := makeCallback(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			RunConsumer(q, cb)
		}()
	}
	RunProducer(q, src, batchSize)
	wg.Wait()
}
