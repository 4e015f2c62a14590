package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	frameStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type row struct {
	label string
	value string
}

// renderPanel draws a titled, bordered list of label/value rows.
func renderPanel(w io.Writer, title string, rows []row) {
	width := 0
	for _, r := range rows {
		if len(r.label) > width {
			width = len(r.label)
		}
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", width, r.label)))
		b.WriteString("  ")
		b.WriteString(r.value)
	}
	fmt.Fprintln(w, frameStyle.Render(b.String()))
}

func renderSection(w io.Writer, name string) {
	fmt.Fprintln(w, sectionStyle.Render(name))
}

func renderError(w io.Writer, label string, err error) {
	fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%s: %v", label, err)))
}

func hexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	return fmt.Sprintf("% X", data)
}
