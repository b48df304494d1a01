package render

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for status cells.
var (
	// SuccessStyle for delivered and available states.
	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)

	// WarningStyle for declined and skipped states.
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)

	// ErrorStyle for failures.
	ErrorStyle = lipgloss.NewStyle().Foreground(errorColor)

	// MutedStyle for inactive states.
	MutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	// HeaderStyle for table headers.
	HeaderStyle = lipgloss.NewStyle().Bold(true)
)

// StateStyle returns a style based on the state string.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "delivered", "completed", "active", "available", "closed", "true":
		return SuccessStyle
	case "declined", "skipped", "not_configured", "half-open":
		return WarningStyle
	case "failed", "error", "open", "unknown_adapter", "invalid_config":
		return ErrorStyle
	default:
		return MutedStyle
	}
}
