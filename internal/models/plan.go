package models

// WorkoutPlan is the parsed form of a workout cell. It is either a Distance
// or an Interval; no other implementations exist.
type WorkoutPlan interface {
	Kind() PlanKind
}

// PlanKind discriminates the two WorkoutPlan variants.
type PlanKind string

const (
	KindDistance PlanKind = "distance"
	KindInterval PlanKind = "interval"
)

// Distance is a workout measured by distance. No timer applies; selecting
// one marks it completed.
type Distance struct {
	Description string `json:"description"`
}

// Kind implements WorkoutPlan.
func (Distance) Kind() PlanKind { return KindDistance }

// Interval is a run/walk workout repeated TotalReps times.
type Interval struct {
	RunSeconds  int `json:"run_seconds"`
	WalkSeconds int `json:"walk_seconds"`
	TotalReps   int `json:"total_reps"`
}

// Kind implements WorkoutPlan.
func (Interval) Kind() PlanKind { return KindInterval }

// Degenerate reports whether neither phase has any duration.
func (i Interval) Degenerate() bool {
	return i.RunSeconds <= 0 && i.WalkSeconds <= 0
}

// Workout is one cell of the running plan.
type Workout struct {
	Index     int      `json:"index"`
	Week      int      `json:"week" yaml:"week"`
	Day       int      `json:"day" yaml:"day"`
	Text      string   `json:"text" yaml:"text"`
	Kind      PlanKind `json:"kind"`
	Completed bool     `json:"completed"`
}
