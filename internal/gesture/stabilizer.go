// Package gesture smooths per-frame finger counts into a stable reading.
package gesture

// Stabilizer keeps the most recent raw counts and reports their mode.
// It is not safe for concurrent use; the pipeline goroutine owns it.
type Stabilizer struct {
	window  int
	history []int
}

// NewStabilizer creates a Stabilizer over the last window counts.
// A window below 1 is treated as 1.
func NewStabilizer(window int) *Stabilizer {
	if window < 1 {
		window = 1
	}
	return &Stabilizer{
		window:  window,
		history: make([]int, 0, window),
	}
}

// Push appends a raw count, evicting the oldest once the window is full.
func (s *Stabilizer) Push(raw int) {
	if len(s.history) == s.window {
		copy(s.history, s.history[1:])
		s.history = s.history[:len(s.history)-1]
	}
	s.history = append(s.history, raw)
}

// Stable returns the most frequent count in the window. Among tied counts the
// one pushed most recently wins. An empty history reports 0.
func (s *Stabilizer) Stable() int {
	freq := make(map[int]int, len(s.history))
	best, bestFreq := 0, 0

	for _, v := range s.history {
		freq[v]++
	}
	// Newest first: an older value needs a strictly higher frequency to win.
	for i := len(s.history) - 1; i >= 0; i-- {
		v := s.history[i]
		if freq[v] > bestFreq {
			best, bestFreq = v, freq[v]
		}
	}
	return best
}

// Reset clears the history.
func (s *Stabilizer) Reset() {
	s.history = s.history[:0]
}

// History returns a copy of the window, oldest first.
func (s *Stabilizer) History() []int {
	out := make([]int, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of counts in the window.
func (s *Stabilizer) Len() int {
	return len(s.history)
}

// Window returns the window capacity.
func (s *Stabilizer) Window() int {
	return s.window
}
