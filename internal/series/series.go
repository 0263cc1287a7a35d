// Package series provides a fixed-capacity, newest-first history of
// timestamped samples. It is the backing container for ball and robot
// position tracks.
package series

import "time"

// Sample is a single timestamped observation.
type Sample[T any] struct {
	At    time.Time
	Value T
}

// Timed is a bounded newest-first sequence of samples backed by a ring
// buffer. Pushing is O(1); the oldest sample is evicted on overflow.
// Timed is not internally synchronized; callers hold the lock of the
// entity that owns the series.
type Timed[T any] struct {
	buf  []Sample[T]
	head int // index of the newest sample
	n    int
}

// New creates an empty series with the given capacity.
func New[T any](capacity int) *Timed[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Timed[T]{buf: make([]Sample[T], capacity)}
}

// Push inserts a value stamped with the current time at the front.
func (s *Timed[T]) Push(v T) {
	s.PushAt(time.Now(), v)
}

// PushAt inserts a value with an explicit timestamp at the front,
// evicting the oldest sample if the series is full.
func (s *Timed[T]) PushAt(t time.Time, v T) {
	s.head = (s.head + 1) % len(s.buf)
	s.buf[s.head] = Sample[T]{At: t, Value: v}
	if s.n < len(s.buf) {
		s.n++
	}
}

// Newest returns the most recent sample. The second return is false if
// the series is empty.
func (s *Timed[T]) Newest() (Sample[T], bool) {
	if s.n == 0 {
		var zero Sample[T]
		return zero, false
	}
	return s.buf[s.head], true
}

// At returns the i-th sample, newest first. At(0) is the most recent.
// Panics if i is out of range, like a slice index.
func (s *Timed[T]) At(i int) Sample[T] {
	if i < 0 || i >= s.n {
		panic("series: index out of range")
	}
	idx := s.head - i
	if idx < 0 {
		idx += len(s.buf)
	}
	return s.buf[idx]
}

// Len returns the number of stored samples.
func (s *Timed[T]) Len() int {
	return s.n
}

// Cap returns the fixed capacity.
func (s *Timed[T]) Cap() int {
	return len(s.buf)
}

// Each calls fn for every sample, newest first, stopping early if fn
// returns false.
func (s *Timed[T]) Each(fn func(Sample[T]) bool) {
	for i := 0; i < s.n; i++ {
		if !fn(s.At(i)) {
			return
		}
	}
}
