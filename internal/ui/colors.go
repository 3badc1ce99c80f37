package ui

import "github.com/charmbracelet/lipgloss"

// Semantic colors for status indication, kept to plain ANSI codes for
// terminal compatibility.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary lipgloss.Color = "7" // White/default
	ColorMuted   lipgloss.Color = "8" // Gray (bright black)
)

// Styled renders text in the given color.
func Styled(text string, color lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(color).Render(text)
}

// Success renders a green checkmark line.
func Success(text string) string {
	return Styled(SymbolSuccess, ColorSuccess) + " " + text
}

// Fail renders a red cross line.
func Fail(text string) string {
	return Styled(SymbolFail, ColorError) + " " + text
}
