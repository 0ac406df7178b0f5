package optimization

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// IterationRecord is one row of the optimization history.
type IterationRecord struct {
	Iteration    int     `yaml:"iteration"`
	Cost         float64 `yaml:"cost"`
	GradientNorm float64 `yaml:"gradient_norm"`
	Stepsize     float64 `yaml:"stepsize"`
}

// History records the progress of an optimization run for the output
// layer.
type History struct {
	Algorithm  string            `yaml:"algorithm"`
	Converged  bool              `yaml:"converged"`
	Iterations []IterationRecord `yaml:"iterations"`
}

func (h *History) record(iter int, cost, gnorm, stepsize float64) {
	h.Iterations = append(h.Iterations, IterationRecord{
		Iteration:    iter,
		Cost:         cost,
		GradientNorm: gnorm,
		Stepsize:     stepsize,
	})
}

// Save writes the history as YAML into dir/history.yaml, creating the
// directory if needed.
func (h *History) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("optimization: creating result dir: %w", err)
	}
	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("optimization: marshaling history: %w", err)
	}
	path := filepath.Join(dir, "history.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("optimization: writing %s: %w", path, err)
	}
	return nil
}
