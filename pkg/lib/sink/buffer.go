package sink

import (
	"sync"
	"sync/atomic"
)

// chunkNode is an element of the append-only chunk list. A sentinel head node
// keeps the lock-free append logic simple.
type chunkNode struct {
	chunk []byte
	next  atomic.Pointer[chunkNode]
}

// Buffer retains everything drained from one stream as an append-only,
// lock-free chunk list. Writers append without blocking readers; readers get
// a best-effort snapshot without locks. A subscription replays the backlog in
// order and then follows live appends, which is what lets a background job's
// output be brought to the foreground later without losing a byte.
type Buffer struct {
	head *chunkNode // sentinel, immutable
	tail *chunkNode // last element, touched only by the single writer

	size atomic.Int64

	broadcaster *Broadcaster[struct{}]
	closeOnce   sync.Once
}

// RunNewBuffer creates an empty Buffer ready for one writer and any number
// of readers.
func RunNewBuffer() *Buffer {
	sentinel := &chunkNode{}
	return &Buffer{
		head:        sentinel,
		tail:        sentinel,
		broadcaster: RunNewBroadcaster[struct{}](),
	}
}

// Append links data to the end of the list and wakes followers. The slice is
// stored as-is; callers that reuse their buffer must go through Write, which
// copies. Append must only be called from the stream's single drain worker.
func (b *Buffer) Append(data []byte) {
	if b == nil {
		return
	}

	newTail := &chunkNode{chunk: data}
	b.tail.next.Store(newTail)
	b.tail = newTail
	b.size.Add(int64(len(data)))

	b.broadcaster.Publish(struct{}{})
}

// Write implements io.Writer. It copies p before appending, because drain
// workers reuse their read buffer between calls.
func (b *Buffer) Write(p []byte) (int, error) {
	if b == nil {
		return len(p), nil
	}
	if len(p) == 0 {
		return 0, nil
	}

	cp := append([]byte(nil), p...)
	b.Append(cp)
	return len(p), nil
}

// Close marks the buffer complete: the stream behind it reached EOF and no
// further writes will come. Followers drain what is left and their channels
// close. Safe to call more than once.
func (b *Buffer) Close() error {
	if b == nil {
		return nil
	}
	b.closeOnce.Do(func() {
		logger.Println("buffer complete")
		b.broadcaster.Stop()
	})
	return nil
}

// Size returns the total number of bytes appended so far.
func (b *Buffer) Size() int64 {
	if b == nil {
		return 0
	}
	return b.size.Load()
}

// Subscribe returns a channel that first replays every chunk already stored,
// in order, then delivers new chunks as they arrive. The channel closes once
// the buffer is complete and fully delivered. The consumer must keep
// receiving until close.
func (b *Buffer) Subscribe(capacity int) <-chan []byte {
	ch := make(chan []byte, capacity)
	notify, err := b.broadcaster.Subscribe()
	if err != nil {
		// Already complete: replay is all there is.
		go b.replay(ch)
		return ch
	}
	go b.follow(notify, ch)
	return ch
}

func (b *Buffer) replay(ch chan []byte) {
	prev := b.head
	for {
		cur := prev.next.Load()
		if cur == nil {
			close(ch)
			return
		}
		prev = cur
		ch <- cur.chunk
	}
}

func (b *Buffer) follow(notify chan struct{}, ch chan []byte) {
	prev := b.head

	// deliver every chunk linked since the last scan
	flush := func() {
		for {
			cur := prev.next.Load()
			if cur == nil {
				return
			}
			prev = cur
			ch <- cur.chunk
		}
	}

	for {
		flush()
		if _, ok := <-notify; !ok {
			// Complete. Notifications are lossy, so scan one final time
			// for chunks appended after our last pass.
			flush()
			close(ch)
			return
		}
	}
}

// ForEach iterates over stored chunks in insertion order until iter returns
// false.
func (b *Buffer) ForEach(iter func([]byte) bool) {
	if b == nil || iter == nil {
		return
	}
	cur := b.head.next.Load() // skip sentinel
	for cur != nil {
		if !iter(cur.chunk) {
			return
		}
		cur = cur.next.Load()
	}
}

// Bytes concatenates every stored chunk. Allocation is proportional to the
// total data size.
func (b *Buffer) Bytes() []byte {
	total := 0
	chunks := make([][]byte, 0, 16)
	b.ForEach(func(c []byte) bool {
		chunks = append(chunks, c)
		total += len(c)
		return true
	})
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// String returns every stored chunk concatenated as a string.
func (b *Buffer) String() string {
	return string(b.Bytes())
}
