package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/soundmode/internal/model"
)

// IDsFormatter outputs just the transition IDs, one per line.
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// Format writes transition IDs to the writer, one per line.
func (f *IDsFormatter) Format(w io.Writer, transitions []model.Transition) error {
	for _, t := range transitions {
		if _, err := fmt.Fprintln(w, t.ID); err != nil {
			return err
		}
	}
	return nil
}
