package ui

import "github.com/charmbracelet/lipgloss"

// Theme holds the colors and pre-built styles of the editor.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary lipgloss.AdaptiveColor
	Muted   lipgloss.AdaptiveColor
	Success lipgloss.AdaptiveColor
	Warning lipgloss.AdaptiveColor
	Error   lipgloss.AdaptiveColor
	Border  lipgloss.AdaptiveColor

	Header   lipgloss.Style
	Selected lipgloss.Style
	Dim      lipgloss.Style
	Pane     lipgloss.Style
	Status   lipgloss.Style
}

// DefaultTheme builds the theme for a renderer.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,
		Primary:  lipgloss.AdaptiveColor{Light: "#5A3FC0", Dark: "#BD93F9"},
		Muted:    lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6272A4"},
		Success:  lipgloss.AdaptiveColor{Light: "#1F883D", Dark: "#50FA7B"},
		Warning:  lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#F1FA8C"},
		Error:    lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#FF5555"},
		Border:   lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#44475A"},
	}
	t.Header = r.NewStyle().Bold(true).Foreground(t.Primary)
	t.Selected = r.NewStyle().Bold(true).Foreground(t.Primary).Reverse(true)
	t.Dim = r.NewStyle().Foreground(t.Muted)
	t.Pane = r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Border).Padding(0, 1)
	t.Status = r.NewStyle().Foreground(t.Muted)
	return t
}

// StateStyle colors a session or save state label.
func (t Theme) StateStyle(state string) lipgloss.Style {
	switch state {
	case "dirty", "pending":
		return t.Renderer.NewStyle().Foreground(t.Warning)
	case "saving":
		return t.Renderer.NewStyle().Foreground(t.Primary)
	case "error":
		return t.Renderer.NewStyle().Foreground(t.Error)
	case "success":
		return t.Renderer.NewStyle().Foreground(t.Success)
	default:
		return t.Dim
	}
}
