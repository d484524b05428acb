package plan

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/meltforce/run5k/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed default_plan.yaml
var defaultPlanYAML []byte

// Catalog is the ordered list of workout cells. Indices are positions in
// the list.
type Catalog struct {
	workouts []models.Workout
}

type catalogFile struct {
	Workouts []models.Workout `yaml:"workouts"`
}

// Default returns the built-in 24-workout plan.
func Default() *Catalog {
	c, err := ParseCatalog(defaultPlanYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded plan: %v", err))
	}
	return c
}

// LoadCatalog reads a plan file. An empty path returns the built-in plan.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML plan and validates every workout text.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing plan file: %w", err)
	}
	if len(f.Workouts) == 0 {
		return nil, fmt.Errorf("plan file has no workouts")
	}
	for i := range f.Workouts {
		w := &f.Workouts[i]
		if err := Validate(w.Text); err != nil {
			return nil, fmt.Errorf("workout %d (%q): %w", i, w.Text, err)
		}
		w.Index = i
		w.Kind = Parse(w.Text).Kind()
	}
	return &Catalog{workouts: f.Workouts}, nil
}

// Len returns the number of workouts.
func (c *Catalog) Len() int {
	return len(c.workouts)
}

// Get returns the workout at index.
func (c *Catalog) Get(index int) (models.Workout, bool) {
	if index < 0 || index >= len(c.workouts) {
		return models.Workout{}, false
	}
	return c.workouts[index], true
}

// Workouts returns a copy of the catalog with Completed set from p.
func (c *Catalog) Workouts(p models.Progress) []models.Workout {
	out := make([]models.Workout, len(c.workouts))
	for i, w := range c.workouts {
		w.Completed = p.Has(i)
		out[i] = w
	}
	return out
}
