package plan

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/meltforce/run5k/internal/models"
)

// distanceMarker flags a distance workout anywhere in the text.
const distanceMarker = "km"

var (
	// runRe matches: Corra 5 min
	runRe = regexp.MustCompile(`Corra (\d+) min`)

	// walkRe matches: caminhe 2 min
	walkRe = regexp.MustCompile(`caminhe (\d+) min`)

	// repsRe matches: repita 3x
	repsRe = regexp.MustCompile(`repita (\d+)x`)
)

// ErrNoPattern is returned by Validate for text that is neither a distance
// workout nor carries a run or walk duration.
var ErrNoPattern = errors.New("workout text has no run, walk or distance pattern")

// Parse turns a workout cell's text into a plan. It never fails: missing
// run/walk durations become 0 and a missing repeat count becomes 1.
func Parse(text string) models.WorkoutPlan {
	if strings.Contains(text, distanceMarker) {
		return models.Distance{Description: text}
	}
	return models.Interval{
		RunSeconds:  minutes(runRe, text) * 60,
		WalkSeconds: minutes(walkRe, text) * 60,
		TotalReps:   reps(text),
	}
}

// Validate is the strict counterpart of Parse.
func Validate(text string) error {
	p := Parse(text)
	if iv, ok := p.(models.Interval); ok && iv.Degenerate() {
		return ErrNoPattern
	}
	return nil
}

func minutes(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func reps(text string) int {
	m := repsRe.FindStringSubmatch(text)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}
