// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/holomush/dimensiongate/internal/dimension"
)

const reportTimeLayout = "2006-01-02 15:04:05"

// FormatUptime renders a duration as "Nd Nh Nm", "Nh Nm", "Nm Ns" or "Ns",
// keeping only the two most significant units. Zero renders as "No data".
func FormatUptime(d time.Duration) string {
	if d <= 0 {
		return "No data"
	}

	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours%24, minutes%60)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatReport renders a snapshot as the plain-text statistics report.
// Per-actor sections are totals across all dimensions, sorted by actor.
func FormatReport(snap Snapshot) string {
	var b strings.Builder

	b.WriteString("=== Dimension Gate Metrics ===\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", snap.TakenAt.Format(reportTimeLayout))

	b.WriteString("Dimension Open Count:\n")
	for _, d := range dimension.All() {
		fmt.Fprintf(&b, "  %s: %d\n", d, snap.Dimensions[d].Opens)
	}

	b.WriteString("\nDimension Close Count:\n")
	for _, d := range dimension.All() {
		fmt.Fprintf(&b, "  %s: %d\n", d, snap.Dimensions[d].Closes)
	}

	b.WriteString("\nDimension Uptime:\n")
	for _, d := range dimension.All() {
		fmt.Fprintf(&b, "  %s: %s\n", d, FormatUptime(snap.Dimensions[d].Uptime))
	}

	attempts, denied := actorTotals(snap.Actors)

	b.WriteString("\nPlayer Access Attempts:\n")
	writeTotals(&b, attempts)

	b.WriteString("\nPlayer Access Denied:\n")
	writeTotals(&b, denied)

	return b.String()
}

func actorTotals(actors map[ActorKey]ActorStats) (attempts, denied map[string]int64) {
	attempts = make(map[string]int64)
	denied = make(map[string]int64)
	for key, stats := range actors {
		if stats.Attempts > 0 {
			attempts[key.Actor] += stats.Attempts
		}
		if stats.Denied > 0 {
			denied[key.Actor] += stats.Denied
		}
	}
	return attempts, denied
}

func writeTotals(b *strings.Builder, totals map[string]int64) {
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(b, "  %s: %d\n", name, totals[name])
	}
}
