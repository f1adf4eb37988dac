package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/soundmode/internal/model"
)

// PlainFormatter formats transitions as plain text, one per line.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	// Parse custom template if provided
	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes transitions as plain text.
func (f *PlainFormatter) Format(w io.Writer, transitions []model.Transition) error {
	for i := range transitions {
		line := f.formatLine(i+1, &transitions[i])
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// formatLine formats a single transition.
func (f *PlainFormatter) formatLine(index int, t *model.Transition) string {
	if f.template != nil {
		var buf strings.Builder
		data := templateData{
			Index:        index,
			Transition:   t,
			RelativeTime: relativeTime(t.Timestamp),
		}
		if err := f.template.Execute(&buf, data); err == nil {
			return buf.String()
		}
	}

	// Default format: [index] from -> to (elapsed) time <source>
	var sb strings.Builder

	if f.opts.ShowIndex {
		fmt.Fprintf(&sb, "[%d] ", index)
	}

	fmt.Fprintf(&sb, "%s -> %s (%s)", t.From, t.To, t.Elapsed())

	if f.opts.ShowTime {
		fmt.Fprintf(&sb, " %s", relativeTime(t.Timestamp))
	}

	if f.opts.ShowSource && t.Source != "" {
		fmt.Fprintf(&sb, " <%s>", t.Source)
	}

	return sb.String()
}

// templateData provides data for custom templates.
type templateData struct {
	Index        int
	Transition   *model.Transition
	RelativeTime string
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"reltime": relativeTime,
		"modeIcon": func(m model.SoundMode) string {
			switch m {
			case model.ModeRing:
				return "🔔"
			case model.ModeSilent:
				return "🔕"
			default:
				return "?"
			}
		},
		"ms": func(ms int64) string {
			return (time.Duration(ms) * time.Millisecond).String()
		},
	}
}

// relativeTime returns a human-readable relative time string.
func relativeTime(timestamp int64) string {
	if timestamp == 0 {
		return "unknown"
	}
	return humanize.Time(time.Unix(timestamp, 0))
}
