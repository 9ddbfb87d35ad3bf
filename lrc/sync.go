package lrc

import (
	"sort"
	"sync"
)

// NoLine is returned when no line is active yet
const NoLine = -1

// binarySearchThreshold is the sequence length from which ActiveIndex uses binary search
const binarySearchThreshold = 64

// ActiveIndex returns the index of the last line whose Time is <= t, or NoLine.
// lines must be sorted by Time, as returned by Parse or FromPlainText.
func ActiveIndex(lines []Line, t float64) int {
	if len(lines) >= binarySearchThreshold {
		return searchIndex(lines, t)
	}
	return scanIndex(lines, 0, t)
}

// scanIndex walks forward from start while lines are due.
// start must not be past the answer.
func scanIndex(lines []Line, start int, t float64) int {
	idx := NoLine
	if start > 0 {
		idx = start - 1
	}
	for i := start; i < len(lines); i++ {
		if lines[i].Time > t {
			break
		}
		idx = i
	}
	return idx
}

func searchIndex(lines []Line, t float64) int {
	// first line strictly after t
	next := sort.Search(len(lines), func(i int) bool {
		return lines[i].Time > t
	})
	return next - 1
}

// Highlighter receives active-line changes, e.g. to highlight and scroll a view.
type Highlighter interface {
	Highlight(index int, line Line)
	Clear()
}

// Synchronizer follows a playback clock and reports the active line.
// The line sequence is replaced wholesale by Load and never mutated.
type Synchronizer struct {
	mu          sync.Mutex
	lines       []Line
	synced      bool
	last        int
	lastTime    float64
	fresh       bool
	highlighter Highlighter
}

// NewSynchronizer creates a synchronizer. highlighter may be nil.
func NewSynchronizer(highlighter Highlighter) *Synchronizer {
	return &Synchronizer{
		last:        NoLine,
		fresh:       true,
		highlighter: highlighter,
	}
}

// Load replaces the current sequence. The next Update recomputes from scratch.
func (s *Synchronizer) Load(lines []Line, synced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = lines
	s.synced = synced
	s.fresh = true
	if s.last != NoLine {
		s.last = NoLine
		if s.highlighter != nil {
			s.highlighter.Clear()
		}
	}
}

// Lines returns the current sequence and whether it carries real timestamps
func (s *Synchronizer) Lines() ([]Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines, s.synced
}

// Update moves the synchronizer to playback time t and returns the active index.
// changed is true when the index differs from the previous call.
func (s *Synchronizer) Update(t float64) (index int, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fresh || t < s.lastTime {
		// new sequence or backward seek
		index = ActiveIndex(s.lines, t)
	} else {
		start := s.last
		if start < 0 {
			start = 0
		}
		index = scanIndex(s.lines, start, t)
	}
	s.fresh = false
	s.lastTime = t

	if index == s.last {
		return index, false
	}
	s.last = index

	if s.highlighter != nil {
		if index == NoLine {
			s.highlighter.Clear()
		} else {
			s.highlighter.Highlight(index, s.lines[index])
		}
	}
	return index, true
}

// Current returns the last index reported by Update
func (s *Synchronizer) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
