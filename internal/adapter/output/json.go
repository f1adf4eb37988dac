package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/soundmode/internal/model"
)

// JSONFormatter formats transitions as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes transitions as a JSON array.
func (f *JSONFormatter) Format(w io.Writer, transitions []model.Transition) error {
	if transitions == nil {
		transitions = []model.Transition{}
	}
	return writeJSON(w, transitions)
}

// FormatSingle writes a single transition as JSON.
func (f *JSONFormatter) FormatSingle(w io.Writer, t *model.Transition) error {
	return writeJSON(w, t)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeJSONLine writes v compactly, as Waybar expects one object per line.
func writeJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
