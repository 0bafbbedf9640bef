package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
)

// HeaderStyle is used for the run banner and per-message headings.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// LabelStyle is used for field labels such as "From:" and "Summary:".
var LabelStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// DebugStyle is used for raw agent output.
var DebugStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// SuccessStyle marks completed work.
var SuccessStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGreen)

// WarningStyle marks recoverable problems.
var WarningStyle = lipgloss.NewStyle().
	Foreground(ColorYellow)

// ErrorStyle marks failures.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// StatusStyle returns a color-coded style for a reply status.
func StatusStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch status {
	case "sent":
		return base.Foreground(ColorGreen)
	case "dry_run":
		return base.Foreground(ColorYellow)
	case "failed":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}
