package colours

import "github.com/fatih/color"

// Color scheme for the CLI
var (
	Title   = color.New(color.FgCyan, color.Bold)
	Author  = color.New(color.FgMagenta)
	Chapter = color.New(color.FgHiWhite, color.Bold)
	Voice   = color.New(color.FgHiCyan)
	Muted   = color.New(color.FgHiBlack)
	Error   = color.New(color.FgRed, color.Bold)
	Success = color.New(color.FgGreen)
	Info    = color.New(color.FgBlue)
	Warning = color.New(color.FgYellow)
)

// Status picks the colour for a chapter outcome.
func Status(flagged bool, skipped int) *color.Color {
	switch {
	case flagged:
		return Error
	case skipped > 0:
		return Warning
	default:
		return Success
	}
}
