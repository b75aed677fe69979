// Package status renders broker health snapshots for the terminal.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/account-broker/internal/application"
	"github.com/bnema/account-broker/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
}

func Render(statuses []application.HealthStatus, opts RenderOptions) string {
	return renderView(statuses, opts, newStyles())
}

func renderView(statuses []application.HealthStatus, opts RenderOptions, s styles) string {
	usable := 0
	for _, status := range statuses {
		if status.Usable {
			usable++
		}
	}

	lines := []string{
		s.title.Render("Account Pool Status"),
		s.header.Render(fmt.Sprintf("accounts: %d usable: %d", len(statuses), usable)),
	}

	if len(statuses) == 0 {
		lines = append(lines, s.empty.Render("No accounts configured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, status := range statuses {
		lines = append(lines, s.section.Render(renderAccount(status, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccount(status application.HealthStatus, opts RenderOptions, s styles) string {
	parts := []string{
		s.account.Render(accountTitle(status.Name, status.ID)),
		stateLine(status, s),
		s.detail.Render(usageLine(status)),
	}

	if line, ok := expiryLine(status, opts, s); ok {
		parts = append(parts, line)
	}

	parts = append(parts, quotaLine(status, s))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func accountTitle(name string, id domain.AccountID) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return string(id)
	}

	return fmt.Sprintf("%s (%s)", trimmed, id)
}

func stateLine(status application.HealthStatus, s styles) string {
	switch {
	case status.Disabled:
		return s.bad.Render("state: disabled")
	case status.Reason == domain.CooldownReasonDisabled:
		return s.bad.Render(fmt.Sprintf("state: unavailable (%d consecutive failures)", status.Failures))
	case status.Reason == domain.CooldownReasonCooldown:
		return s.warning.Render(fmt.Sprintf("state: cooling down (%s left)", formatSeconds(status.CooldownSeconds)))
	case status.Expiry == domain.ExpiryExpired:
		return s.bad.Render("state: expired")
	case !status.Usable:
		return s.warning.Render("state: unavailable")
	default:
		return s.good.Render("state: usable")
	}
}

func usageLine(status application.HealthStatus) string {
	return fmt.Sprintf("usage: %s picks, %s conversations",
		compactNumber(status.UsageCount), compactNumber(status.Conversations))
}

func expiryLine(status application.HealthStatus, opts RenderOptions, s styles) (string, bool) {
	if status.ExpiresAt == nil {
		return "", false
	}

	when := status.ExpiresAt.Format("2006-01-02 15:04")
	switch status.Expiry {
	case domain.ExpiryExpired:
		return s.bad.Render(fmt.Sprintf("expiry: expired at %s", when)), true
	case domain.ExpirySoon:
		remaining := ""
		if !opts.Now.IsZero() {
			remaining = fmt.Sprintf(", %s left", formatDuration(status.ExpiresAt.Sub(opts.Now)))
		}
		return s.warning.Render(fmt.Sprintf("expiry: expiring soon (%s%s)", when, remaining)), true
	default:
		return s.detail.Render(fmt.Sprintf("expiry: %s", when)), true
	}
}

func quotaLine(status application.HealthStatus, s styles) string {
	cells := make([]string, 0, len(domain.Capabilities()))
	for _, capability := range domain.Capabilities() {
		quota, ok := status.Capabilities[capability]
		if !ok || quota.Available {
			cells = append(cells, s.good.Render(fmt.Sprintf("%s ok", capability)))
			continue
		}
		cells = append(cells, s.warning.Render(fmt.Sprintf("%s %s", capability, formatSeconds(quota.RemainingSeconds))))
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.quotaKey.Render("quotas: "),
		strings.Join(cells, s.header.Render(" | ")),
	)
}

func formatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}

	return formatDuration(time.Duration(seconds) * time.Second)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) - minutes*60
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%02ds", minutes, seconds)
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) - hours*60
	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}

	return fmt.Sprintf("%dh%02dm", hours, minutes)
}

func compactNumber(v int64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(v)/1_000_000)
	case v >= 10_000:
		return fmt.Sprintf("%.0fk", float64(v)/1_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fk", float64(v)/1_000)
	default:
		return fmt.Sprintf("%d", v)
	}
}
