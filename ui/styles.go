package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Styles renders the table pieces. Links turns paths into terminal
// hyperlinks.
type Styles struct {
	Header    func(string) string
	Normal    func(string) string
	Current   func(string) string
	Disabled  func(string) string
	Warn      func(string) string
	Secondary func(string) string
	Links     bool
}

var (
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	normalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("251"))
	currentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	disabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	secondaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func DefaultStyles(links bool) Styles {
	return Styles{
		Header:    func(s string) string { return headerStyle.Render(s) },
		Normal:    func(s string) string { return normalStyle.Render(s) },
		Current:   func(s string) string { return currentStyle.Render(s) },
		Disabled:  func(s string) string { return disabledStyle.Render(s) },
		Warn:      func(s string) string { return warnStyle.Render(s) },
		Secondary: func(s string) string { return secondaryStyle.Render(s) },
		Links:     links,
	}
}

// PlainStyles renders without escape sequences, for pipes and tests.
func PlainStyles() Styles {
	plain := func(s string) string { return s }
	return Styles{
		Header:    plain,
		Normal:    plain,
		Current:   plain,
		Disabled:  plain,
		Warn:      plain,
		Secondary: plain,
	}
}

// PadOrTrim fits s into width display cells.
func PadOrTrim(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}
