// Package ui renders command output: colors, headers and tables.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	apperrors "slicehouse/pkg/errors"
)

var (
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	ColorSuccess = colorFunc(ansi.Green)
	ColorError   = colorFunc(ansi.Red)
	ColorWarning = colorFunc(ansi.Yellow)
	ColorInfo    = colorFunc(ansi.Cyan)
	ColorBold    = colorFunc("default+b")
	ColorDim     = colorFunc("default+h")
)

func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// ShowHeader prints a boxed section title.
func ShowHeader(title string) {
	width := 50
	if len(title)+4 > width {
		width = len(title) + 4
	}
	padding := (width - len(title) - 2) / 2
	fmt.Println("\n+" + strings.Repeat("-", width-2) + "+")
	fmt.Printf("|%s%s%s|\n",
		strings.Repeat(" ", padding),
		ColorBold(title),
		strings.Repeat(" ", width-2-padding-len(title)))
	fmt.Println("+" + strings.Repeat("-", width-2) + "+")
}

// ShowSuccess prints a success line.
func ShowSuccess(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", ColorSuccess("OK"), fmt.Sprintf(format, args...))
}

// ShowWarning prints a warning line.
func ShowWarning(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", ColorWarning("WARN"), fmt.Sprintf(format, args...))
}

// ShowInfo prints an informational line.
func ShowInfo(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", ColorInfo("INFO"), fmt.Sprintf(format, args...))
}

// ShowError prints an error with its code and suggestions when available.
func ShowError(err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		fmt.Printf("%s [%s] %s\n", ColorError("ERROR"), appErr.Code, appErr.Message)
		if appErr.Cause != nil {
			fmt.Printf("  %s %v\n", ColorDim("cause:"), appErr.Cause)
		}
		for _, s := range appErr.Suggestions {
			fmt.Printf("  %s %s\n", ColorInfo("hint:"), s)
		}
		return
	}
	fmt.Printf("%s %v\n", ColorError("ERROR"), err)
}

// FormatDuration renders durations compactly; negatives mean "never".
func FormatDuration(d time.Duration) string {
	switch {
	case d < 0:
		return "never"
	case d < time.Second:
		return "<1s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
