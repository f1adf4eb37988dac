package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/soundmode/internal/model"
)

// YAMLFormatter formats transitions as a YAML sequence.
type YAMLFormatter struct {
	opts FormatterOptions
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(opts FormatterOptions) *YAMLFormatter {
	return &YAMLFormatter{opts: opts}
}

// Format writes transitions as YAML.
func (f *YAMLFormatter) Format(w io.Writer, transitions []model.Transition) error {
	if transitions == nil {
		transitions = []model.Transition{}
	}
	return writeYAML(w, transitions)
}

func writeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}
