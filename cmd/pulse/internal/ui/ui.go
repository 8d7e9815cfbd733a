// Package ui holds the terminal styles shared by the CLI commands.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#7c3aed")
	successColor = lipgloss.Color("#10b981")
	warningColor = lipgloss.Color("#f59e0b")
	errorColor   = lipgloss.Color("#ef4444")
	mutedColor   = lipgloss.Color("#94a3b8")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// Title renders a command heading.
func Title(s string) string { return titleStyle.Render(s) }

// Success renders a completed-step line.
func Success(format string, args ...any) string {
	return successStyle.Render("✓ ") + fmt.Sprintf(format, args...)
}

// Warn renders a non-fatal problem line.
func Warn(format string, args ...any) string {
	return warningStyle.Render("! ") + fmt.Sprintf(format, args...)
}

// Error renders a failure line.
func Error(format string, args ...any) string {
	return errorStyle.Render("✗ ") + fmt.Sprintf(format, args...)
}

// Muted renders secondary detail.
func Muted(s string) string { return mutedStyle.Render(s) }
