// Package broadcast forwards classified events to live subscribers of a
// single job's channel. It is a pure forwarding stage: no history is
// kept here, the completion summary accumulates events separately.
package broadcast

import (
	"sync"

	"github.com/docsmith-io/docsmith/internal/model"
)

// subscriberBuffer bounds the log frames a subscriber channel holds. A
// consumer that falls this far behind starts losing log frames, which
// is the documented best-effort delivery contract. One extra slot on
// top of the buffer stays reserved for the terminal frame, so a slow
// but still connected subscriber never misses the job outcome.
const subscriberBuffer = 64

// Broadcaster delivers messages to every currently registered
// subscriber in publish order. Only the owning job controller may call
// Publish, keeping a single-writer discipline on the channel.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan model.Message
	nextID int
	closed bool
}

func New() *Broadcaster {
	return &Broadcaster{
		subs: make(map[int]chan model.Message),
	}
}

// Subscribe registers a live subscriber. The returned cancel function
// is idempotent and must be called once the consumer goes away. After
// Close the returned channel is already closed.
func (b *Broadcaster) Subscribe() (<-chan model.Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.Message, subscriberBuffer+1)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish delivers msg to every current subscriber. Log frames are
// best effort: a subscriber that cannot keep up is skipped without
// affecting delivery to the others or the publishing of subsequent
// messages. A terminal frame (complete or error) always lands in the
// reserved slot, there is exactly one per job under the single-writer
// discipline.
func (b *Broadcaster) Publish(msg model.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		if msg.Type == model.MessageLog && len(ch) >= subscriberBuffer {
			continue // drop, never block the job
		}
		// Receivers only ever drain the channel, so the length check
		// under the mutex guarantees room and the send cannot block.
		ch <- msg
	}
}

// Close terminates the channel for all subscribers. Publish and
// Subscribe after Close are safe no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
