package report

import (
	"fmt"
	"time"

	"reportbot/internal/school"

	"gopkg.in/yaml.v3"
)

// Export is the document written by ExportYAML.
type Export struct {
	GeneratedAt time.Time      `yaml:"generated_at"`
	Summary     school.Summary `yaml:"summary"`
}

// ExportYAML renders the database summary as a YAML document.
func ExportYAML(sum school.Summary, at time.Time) ([]byte, error) {
	out, err := yaml.Marshal(Export{GeneratedAt: at.UTC(), Summary: sum})
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	return out, nil
}
