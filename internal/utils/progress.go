package utils

import (
	"fmt"
	"io"
	"strings"
)

// ProgressBar draws a single-line bar that is redrawn in place with a
// carriage return. It keeps no state between calls.
type ProgressBar struct {
	Out    io.Writer
	Total  int
	Prefix string
	Suffix string
	Length int
	Fill   string
}

func NewProgressBar(out io.Writer, total int) *ProgressBar {
	return &ProgressBar{
		Out:    out,
		Total:  total,
		Prefix: "Progress:",
		Suffix: "Complete",
		Length: 50,
		Fill:   "█",
	}
}

// Render formats the bar for iteration without the final newline.
func (p *ProgressBar) Render(iteration int) string {
	percent := 100.0
	filled := p.Length
	if p.Total > 0 {
		percent = 100 * float64(iteration) / float64(p.Total)
		filled = p.Length * iteration / p.Total
	}
	if filled < 0 {
		filled = 0
	}
	if filled > p.Length {
		filled = p.Length
	}

	bar := strings.Repeat(p.Fill, filled) + strings.Repeat("-", p.Length-filled)
	return fmt.Sprintf("\r%s |%s| %.1f%% %s\r", p.Prefix, bar, percent, p.Suffix)
}

// Print writes the bar and ends the line once iteration reaches Total.
func (p *ProgressBar) Print(iteration int) {
	s := p.Render(iteration)
	if iteration >= p.Total {
		s += "\n"
	}
	_, _ = io.WriteString(p.Out, s)
}
