package theme

import "github.com/charmbracelet/lipgloss"

// Theme holds the terminal color palette.
type Theme struct {
	Primary    lipgloss.Color
	Text       lipgloss.Color
	TextMuted  lipgloss.Color
	Background lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// CurrentTheme is the active palette.
var CurrentTheme = Theme{
	Primary:    lipgloss.Color("#00ff00"),
	Text:       lipgloss.Color("#ffffff"),
	TextMuted:  lipgloss.Color("#808080"),
	Background: lipgloss.Color("#000000"),
	Warning:    lipgloss.Color("#ffaa00"),
	Error:      lipgloss.Color("#ff4444"),
}

// SetTheme replaces the active palette.
func SetTheme(t Theme) {
	CurrentTheme = t
}
