package models

import "sort"

// Progress is the set of completed workout indices.
type Progress map[int]struct{}

// NewProgress builds a Progress from a list of indices. Duplicates collapse.
func NewProgress(indices []int) Progress {
	p := make(Progress, len(indices))
	for _, i := range indices {
		p[i] = struct{}{}
	}
	return p
}

// Has reports whether index is completed.
func (p Progress) Has(index int) bool {
	_, ok := p[index]
	return ok
}

// Sorted returns the completed indices in ascending order.
func (p Progress) Sorted() []int {
	out := make([]int, 0, len(p))
	for i := range p {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Clone returns an independent copy.
func (p Progress) Clone() Progress {
	c := make(Progress, len(p))
	for i := range p {
		c[i] = struct{}{}
	}
	return c
}

// ProgressSummary is the API view of the progress record.
type ProgressSummary struct {
	Completed []int `json:"completed"`
	Count     int   `json:"count"`
	Total     int   `json:"total"`
}

// Preferences are the user toggles persisted next to the progress record.
type Preferences struct {
	RunnerName string `json:"runner_name,omitempty"`
	Muted      bool   `json:"muted"`
	ScreenOff  bool   `json:"screen_off"`
}
