package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha, the subset used by the sync output.
const (
	colorMauve    lipgloss.Color = "#cba6f7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorPeach    lipgloss.Color = "#fab387"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorBlue     lipgloss.Color = "#89b4fa"
	colorLavender lipgloss.Color = "#b4befe"
	colorText     lipgloss.Color = "#cdd6f4"
	colorSubtext0 lipgloss.Color = "#a6adc8"
	colorOverlay1 lipgloss.Color = "#7f849c"
)

const (
	colorAccent  = colorMauve
	colorFocus   = colorLavender
	colorSuccess = colorGreen
	colorError   = colorRed
	colorWarning = colorYellow
	colorInfo    = colorTeal
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	textStyle    = lipgloss.NewStyle().Foreground(colorText)
	dimStyle     = lipgloss.NewStyle().Foreground(colorOverlay1)
	metaStyle    = lipgloss.NewStyle().Foreground(colorSubtext0)
	amountStyle  = lipgloss.NewStyle().Foreground(colorPeach)
	okStyle      = lipgloss.NewStyle().Foreground(colorSuccess)
	errStyle     = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarning)
	infoStyle    = lipgloss.NewStyle().Foreground(colorInfo)
	focusStyle   = lipgloss.NewStyle().Foreground(colorFocus).Bold(true)
	sectionStyle = lipgloss.NewStyle().PaddingLeft(2)
)
