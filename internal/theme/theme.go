// Package theme holds the terminal styles of the webmail CLI.
package theme

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/webmail/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for folder titles and search banners.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// MessagePanelStyle wraps a rendered message.
var MessagePanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// UnreadStyle marks unread rows.
var UnreadStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorWhite)

// ReadStyle is the base style for read rows.
var ReadStyle = lipgloss.NewStyle().Foreground(ColorGray)

// StarStyle colors the star marker.
var StarStyle = lipgloss.NewStyle().Foreground(ColorYellow)

// HelpStyle is used for hints and pagination footers.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ToastStyle returns the style for a toast of the given kind.
func ToastStyle(kind model.ToastKind) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	if kind == model.ToastError {
		return base.Foreground(ColorRed)
	}
	return base.Foreground(ColorGreen)
}

// EmailRow renders one listing row: star, sender, subject and date.
func EmailRow(e model.Email, width int) string {
	star := " "
	if e.IsStarred {
		star = StarStyle.Render("★")
	}

	sender := truncate(e.Sender(), 24)
	date := e.SentAt.Local().Format("Jan 2 15:04")
	subject := e.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	if width > 0 {
		subject = truncate(subject, max(width-24-len(date)-6, 10))
	}

	line := fmt.Sprintf("%-24s  %s  %s", sender, subject, date)
	if e.IsRead {
		return star + " " + ReadStyle.Render(line)
	}
	return star + " " + UnreadStyle.Render(line)
}

// PageFooter renders the pagination position. Uncounted listings, such
// as token-paged ones, only say whether more pages follow.
func PageFooter(p model.Pagination, counted bool) string {
	if counted && p.Pages > 0 {
		return HelpStyle.Render(fmt.Sprintf("page %d of %d · %d messages", p.Page, p.Pages, p.Total))
	}
	if p.HasMore {
		return HelpStyle.Render(fmt.Sprintf("page %d · more available", p.Page))
	}
	return HelpStyle.Render(fmt.Sprintf("page %d", p.Page))
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
