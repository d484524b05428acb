package timer

import "fmt"

// Display is the surface the controller reports to.
type Display interface {
	// Show renders the countdown, phase label and rep label.
	Show(s Snapshot)
	// Completed shows the completion banner.
	Completed(s Snapshot)
	// Hide removes the timer from view.
	Hide()
	// ProgressCounter updates the "completed N of M" counter.
	ProgressCounter(completed, total int)
	// SetEnergySaver switches the screen-off overlay.
	SetEnergySaver(on bool)
}

// Display labels.
const (
	LabelRun      = "CORRA!"
	LabelWalk     = "CAMINHE"
	LabelFinished = "TREINO CONCLUÍDO!"
)

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	SessionID  string `json:"session_id,omitempty"`
	Index      int    `json:"index"`
	Text       string `json:"text,omitempty"`
	State      State  `json:"state"`
	Phase      Phase  `json:"phase,omitempty"`
	CurrentRep int    `json:"current_rep,omitempty"`
	TotalReps  int    `json:"total_reps,omitempty"`
	TimeLeft   int    `json:"time_left"`
	Clock      string `json:"clock,omitempty"`
	PhaseLabel string `json:"phase_label,omitempty"`
	RepLabel   string `json:"rep_label,omitempty"`
	WakeLock   bool   `json:"wake_lock"`
}

// FormatClock renders seconds as MM:SS. Negative values render as 00:00.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func snapshotOf(s *Session) Snapshot {
	if s == nil {
		return Snapshot{Index: -1, State: StateIdle}
	}
	snap := Snapshot{
		SessionID:  s.ID.String(),
		Index:      s.Index,
		Text:       s.Text,
		State:      s.State(),
		Phase:      s.Phase(),
		CurrentRep: s.CurrentRep,
		TotalReps:  s.Plan.TotalReps,
		TimeLeft:   s.TimeLeft,
		Clock:      FormatClock(s.TimeLeft),
		RepLabel:   fmt.Sprintf("Repetições: %d/%d", s.CurrentRep, s.Plan.TotalReps),
	}
	switch {
	case s.Completed:
		snap.PhaseLabel = LabelFinished
	case s.RunPhase:
		snap.PhaseLabel = LabelRun
	default:
		snap.PhaseLabel = LabelWalk
	}
	return snap
}
