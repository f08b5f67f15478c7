package utils

import (
	"marketfeed/src/models"
)

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer of tick history rows.
// True ring buffer - no resizing allowed!
// -----------------------------------------------------------------------------

type RingBuffer struct {
	// Data storage as 2D slice (rows x features)
	data     [][models.RB_NUM_FEATURES]float64
	symbol   string
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer(symbol string, capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1000 // Default reasonable size
	}

	return &RingBuffer{
		data:     make([][models.RB_NUM_FEATURES]float64, capacity),
		symbol:   symbol,
		capacity: capacity,
		index:    0,
		size:     0,
	}
}

// -----------------------------------------------------------------------------

// Append adds a tick row, overwriting the oldest entry once full.
func (rb *RingBuffer) Append(tick models.MTick) {
	rb.data[rb.index] = [models.RB_NUM_FEATURES]float64{
		float64(tick.Timestamp),
		tick.Last,
		tick.Bid,
		tick.Ask,
		tick.Volume,
	}

	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns the n most recent rows in chronological order.
func (rb *RingBuffer) GetLatest(n int) []models.MTick {
	if rb.size == 0 || n <= 0 {
		return []models.MTick{}
	}

	count := n
	if n > rb.size {
		count = rb.size
	}

	result := make([]models.MTick, count)
	startIdx := (rb.index - count + rb.capacity) % rb.capacity

	for i := 0; i < count; i++ {
		idx := (startIdx + i) % rb.capacity
		row := rb.data[idx]

		result[i] = models.MTick{
			Symbol:    rb.symbol,
			Timestamp: int64(row[models.RB_IDX_TIMESTAMP]),
			Last:      row[models.RB_IDX_LAST],
			Bid:       row[models.RB_IDX_BID],
			Ask:       row[models.RB_IDX_ASK],
			Volume:    row[models.RB_IDX_VOLUME],
		}
	}

	return result
}

// -----------------------------------------------------------------------------

// Size returns the current number of stored rows.
func (rb *RingBuffer) Size() int {
	return rb.size
}

// Capacity returns the fixed buffer capacity.
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}
