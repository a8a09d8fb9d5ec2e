package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBufferPushAndPopBatchPreservesFIFOOrder(t *testing.T) {
	b := NewBuffer(10)

	for i := 0; i < 3; i++ {
		ok := b.Push(BufferedEvent{RawMessage: string(rune('a' + i)), ReceivedAt: time.Now()})
		assert.True(t, ok)
	}
	assert.Equal(t, 3, b.Len())

	batch := b.PopBatch(2)
	assert.Equal(t, []string{"a", "b"}, []string{batch[0].RawMessage, batch[1].RawMessage})
	assert.Equal(t, 1, b.Len())
}

func TestBufferTailDropsWhenFull(t *testing.T) {
	b := NewBuffer(2)

	assert.True(t, b.Push(BufferedEvent{RawMessage: "1"}))
	assert.True(t, b.Push(BufferedEvent{RawMessage: "2"}))
	assert.False(t, b.Push(BufferedEvent{RawMessage: "3"}), "buffer at capacity should tail-drop")
	assert.Equal(t, 2, b.Len())
}

func TestBufferPopBatchCapsAtAvailable(t *testing.T) {
	b := NewBuffer(10)
	b.Push(BufferedEvent{RawMessage: "only-one"})

	batch := b.PopBatch(5)
	assert.Len(t, batch, 1)
	assert.Equal(t, 0, b.Len())
}

func TestBufferPopBatchEmptyReturnsNil(t *testing.T) {
	b := NewBuffer(10)
	assert.Nil(t, b.PopBatch(5))
}

func TestBufferUsagePercent(t *testing.T) {
	b := NewBuffer(4)
	assert.Equal(t, 0.0, b.UsagePercent())

	b.Push(BufferedEvent{RawMessage: "1"})
	assert.Equal(t, 25.0, b.UsagePercent())
}
