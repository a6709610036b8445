// Package bus is the message-bus boundary the live consumer reads from.
// The real deployment sits on Kafka with consumer group "sky-auctions";
// tests use the in-memory backend.
package bus

import (
	"context"
	"sync"
)

// ConsumerGroup is the group id every subscription joins.
const ConsumerGroup = "sky-auctions"

// Batch is one delivery: up to batchSize raw messages.
type Batch [][]byte

// Bus delivers batches of raw messages per topic. Subscribe carries no
// acknowledgement, so a consumer cannot report a failed batch back to
// the client; the in-memory backend delivers each batch once. Consumers
// must be idempotent.
type Bus interface {
	// Subscribe returns a channel of message batches for topic. The
	// channel closes when ctx is cancelled.
	Subscribe(ctx context.Context, topic string, batchSize int) (<-chan Batch, error)
}

// Memory is an in-process Bus for tests: Publish buffers messages per
// topic and flushes them to subscribers in batchSize chunks.
type Memory struct {
	mu     sync.Mutex
	topics map[string][][]byte
	subs   map[string][]chan Batch
	sizes  map[string]int
}

// NewMemory creates an empty in-memory bus.
func NewMemory() *Memory {
	return &Memory{
		topics: make(map[string][][]byte),
		subs:   make(map[string][]chan Batch),
		sizes:  make(map[string]int),
	}
}

func (b *Memory) Subscribe(ctx context.Context, topic string, batchSize int) (<-chan Batch, error) {
	if batchSize < 1 {
		batchSize = 1
	}
	ch := make(chan Batch, 16)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.sizes[topic] = batchSize
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, c := range b.subs[topic] {
			if c == ch {
				b.subs[topic] = append(b.subs[topic][:i], b.subs[topic][i+1:]...)
				close(ch)
				break
			}
		}
	}()

	return ch, nil
}

// Publish appends msg to topic and flushes full batches to subscribers.
func (b *Memory) Publish(topic string, msg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics[topic] = append(b.topics[topic], msg)
	b.flushLocked(topic, false)
}

// Flush delivers any buffered partial batch.
func (b *Memory) Flush(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked(topic, true)
}

func (b *Memory) flushLocked(topic string, partial bool) {
	size := b.sizes[topic]
	if size == 0 {
		return
	}
	for len(b.topics[topic]) > 0 {
		if len(b.topics[topic]) < size && !partial {
			return
		}
		n := size
		if len(b.topics[topic]) < n {
			n = len(b.topics[topic])
		}
		batch := Batch(b.topics[topic][:n])
		b.topics[topic] = b.topics[topic][n:]
		for _, ch := range b.subs[topic] {
			ch <- batch
		}
	}
}
