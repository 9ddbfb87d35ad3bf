package lrc

import (
	"fmt"
	"testing"
)

func linesAt(times ...float64) []Line {
	lines := make([]Line, len(times))
	for i, t := range times {
		lines[i] = Line{Time: t, Text: fmt.Sprintf("line %d", i)}
	}
	return lines
}

func TestActiveIndex(t *testing.T) {
	lines := linesAt(0, 5, 10)

	tests := []struct {
		name     string
		lines    []Line
		time     float64
		expected int
	}{
		{"Between lines", lines, 7, 1},
		{"Before first line", lines, -1, NoLine},
		{"Exactly on boundary", lines, 10, 2},
		{"At zero", lines, 0, 0},
		{"After last line", lines, 999, 2},
		{"Empty sequence", nil, 3, NoLine},
		{"First line later than time", linesAt(2, 4), 1.5, NoLine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ActiveIndex(tt.lines, tt.time); got != tt.expected {
				t.Errorf("ActiveIndex(%v) = %d, expected %d", tt.time, got, tt.expected)
			}
		})
	}
}

func TestActiveIndex_BinarySearchMatchesScan(t *testing.T) {
	times := make([]float64, 0, 200)
	for i := 0; i < 200; i++ {
		// duplicates every few entries exercise the "last of equal times" rule
		times = append(times, float64(i/3)*1.5)
	}
	lines := linesAt(times...)

	for q := -2.0; q < 110; q += 0.25 {
		want := scanIndex(lines, 0, q)
		if got := searchIndex(lines, q); got != want {
			t.Fatalf("searchIndex(%v) = %d, scan gave %d", q, got, want)
		}
		if got := ActiveIndex(lines, q); got != want {
			t.Fatalf("ActiveIndex(%v) = %d, scan gave %d", q, got, want)
		}
	}
}

type recordingHighlighter struct {
	highlighted []int
	clears      int
}

func (r *recordingHighlighter) Highlight(index int, line Line) {
	r.highlighted = append(r.highlighted, index)
}

func (r *recordingHighlighter) Clear() {
	r.clears++
}

func TestSynchronizer_MonotonicUpdates(t *testing.T) {
	h := &recordingHighlighter{}
	s := NewSynchronizer(h)
	s.Load(linesAt(1, 2, 3, 4), true)

	prev := NoLine
	for tm := 0.0; tm <= 5; tm += 0.1 {
		idx, _ := s.Update(tm)
		if idx < prev {
			t.Fatalf("Active index went backwards at t=%v: %d after %d", tm, idx, prev)
		}
		prev = idx
	}

	want := []int{0, 1, 2, 3}
	if len(h.highlighted) != len(want) {
		t.Fatalf("Expected %d highlight calls, got %v", len(want), h.highlighted)
	}
	for i := range want {
		if h.highlighted[i] != want[i] {
			t.Errorf("Highlight %d: expected %d, got %d", i, want[i], h.highlighted[i])
		}
	}
}

func TestSynchronizer_BackwardSeek(t *testing.T) {
	s := NewSynchronizer(nil)
	s.Load(linesAt(0, 5, 10), true)

	if idx, _ := s.Update(11); idx != 2 {
		t.Fatalf("Expected index 2, got %d", idx)
	}

	idx, changed := s.Update(6)
	if idx != 1 || !changed {
		t.Errorf("Expected seek back to index 1 (changed), got %d (changed=%v)", idx, changed)
	}

	if idx, _ := s.Update(-3); idx != NoLine {
		t.Errorf("Expected NoLine before the first line, got %d", idx)
	}
}

func TestSynchronizer_LoadReplacesSequence(t *testing.T) {
	h := &recordingHighlighter{}
	s := NewSynchronizer(h)
	s.Load(linesAt(0, 5, 10), true)
	s.Update(12)

	old, _ := s.Lines()
	s.Load(linesAt(20, 30), false)

	if h.clears != 1 {
		t.Errorf("Expected Load to clear the highlight once, got %d", h.clears)
	}
	if len(old) != 3 {
		t.Errorf("Previous sequence must remain intact, got %d lines", len(old))
	}

	idx, changed := s.Update(12)
	if idx != NoLine {
		t.Errorf("Expected NoLine on the new sequence, got %d", idx)
	}
	if changed {
		t.Error("Expected no change: state was already reset to NoLine")
	}

	lines, synced := s.Lines()
	if synced || len(lines) != 2 {
		t.Errorf("Expected the replacement sequence, got %d lines synced=%v", len(lines), synced)
	}
}

func TestSynchronizer_UnchangedIndexDoesNotHighlight(t *testing.T) {
	h := &recordingHighlighter{}
	s := NewSynchronizer(h)
	s.Load(linesAt(0, 5), true)

	s.Update(1)
	s.Update(2)
	s.Update(3)

	if len(h.highlighted) != 1 {
		t.Errorf("Expected a single highlight, got %v", h.highlighted)
	}
	if s.Current() != 0 {
		t.Errorf("Expected current index 0, got %d", s.Current())
	}
}

func TestSynchronizer_EmptySequence(t *testing.T) {
	s := NewSynchronizer(nil)
	if idx, changed := s.Update(5); idx != NoLine || changed {
		t.Errorf("Expected NoLine without change, got %d (changed=%v)", idx, changed)
	}
}
