package ui

import "github.com/charmbracelet/lipgloss"

// Palette as ANSI 256 color codes.
const (
	ColorLime    = "154" // Primary accent
	ColorLimeDim = "106" // Stage labels
	ColorGray    = "245" // Counters
	ColorRed     = "196" // Errors
	ColorYellow  = "220" // Warnings
)

// Styles holds the styles of the live renderer.
type Styles struct {
	Stage    lipgloss.Style
	Progress lipgloss.Style
	Label    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
}

// DefaultStyles returns colored styles bound to renderer, which decides
// how much color its output supports.
func DefaultStyles(renderer *lipgloss.Renderer) Styles {
	return Styles{
		Stage:    renderer.NewStyle().Foreground(lipgloss.Color(ColorLimeDim)),
		Progress: renderer.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Label:    renderer.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Success:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Warning:  renderer.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:    renderer.NewStyle().Foreground(lipgloss.Color(ColorRed)),
	}
}

// NoColorStyles returns unstyled components for NO_COLOR output.
func NoColorStyles() Styles {
	return Styles{
		Stage:    lipgloss.NewStyle(),
		Progress: lipgloss.NewStyle(),
		Label:    lipgloss.NewStyle(),
		Success:  lipgloss.NewStyle(),
		Warning:  lipgloss.NewStyle(),
		Error:    lipgloss.NewStyle(),
	}
}

// GetStyles returns the styles for renderer based on color preference.
func GetStyles(renderer *lipgloss.Renderer, noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles(renderer)
}
