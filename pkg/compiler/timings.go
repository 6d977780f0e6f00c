package compiler

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Section is one timed phase of a compilation.
type Section struct {
	Label  string
	Start  time.Time
	Finish time.Time
	Size   int64  // Bytes produced by the phase, if any
	Count  int64  // Items produced by the phase, if any
	Unit   string // What Count counts
}

func (s Section) Duration() time.Duration { return s.Finish.Sub(s.Start) }

// Timings records consecutive phases. Starting a section stops the
// previous one.
type Timings struct {
	Total    Section
	Sections []Section
	now      func() time.Time
}

func NewTimings(label string) *Timings {
	t := &Timings{now: time.Now}
	t.Total = Section{Label: label, Start: t.now()}
	return t
}

func (t *Timings) stopCurrent() {
	if n := len(t.Sections); n > 0 && t.Sections[n-1].Finish.IsZero() {
		t.Sections[n-1].Finish = t.now()
	}
}

func (t *Timings) StartSection(label string) {
	t.stopCurrent()
	t.Sections = append(t.Sections, Section{Label: label, Start: t.now()})
}

// Record attaches an output size and item count to the current section.
func (t *Timings) Record(size, count int64, unit string) {
	if n := len(t.Sections); n > 0 {
		s := &t.Sections[n-1]
		s.Size, s.Count, s.Unit = size, count, unit
	}
}

// Stop ends the current section and the total.
func (t *Timings) Stop() {
	t.stopCurrent()
	t.Total.Finish = t.now()
}

// Print writes one aligned line per section, total first.
func (t *Timings) Print(w io.Writer) {
	t.Stop()
	width := len(t.Total.Label)
	for _, s := range t.Sections {
		width = max(width, len(s.Label))
	}

	line := func(s Section) {
		fmt.Fprintf(w, "%-*s - %.3f ms", width, s.Label, float64(s.Duration().Nanoseconds())/1e6)
		var extra []string
		if s.Count > 0 {
			extra = append(extra, humanize.Comma(s.Count)+" "+s.Unit)
		}
		if s.Size > 0 {
			extra = append(extra, humanize.Bytes(uint64(s.Size)))
		}
		if len(extra) > 0 {
			fmt.Fprintf(w, " (%s)", strings.Join(extra, ", "))
		}
		fmt.Fprintln(w)
	}
	line(t.Total)
	for _, s := range t.Sections {
		line(s)
	}
}
