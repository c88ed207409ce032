// Package report renders advisor output for the console and Slack.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/policy"
	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/posture"
)

// Advice bundles the generated report sections for one run.
type Advice struct {
	Summary         string
	RemediationPlan string
	SlackMessage    string
}

// Render writes the three report sections to w.
func Render(w io.Writer, advice Advice) {
	fmt.Fprintln(w, "=== Endpoint Posture Summary ===")
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.TrimSpace(advice.Summary))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Remediation Plan ===")
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.TrimSpace(advice.RemediationPlan))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Slack Message ===")
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.TrimSpace(advice.SlackMessage))
}

// SlackFallback builds a deterministic Slack message straight from the
// snapshot, used when the generated Slack summary is unavailable so the run
// still produces a postable message.
func SlackFallback(snap posture.Snapshot, opts policy.Slack) string {
	okMark, failMark := "[ok]", "[!!]"
	if opts.IncludeEmojis {
		okMark, failMark = "✅", "❌"
	}

	statusMark := okMark
	if snap.ExceedsPolicy {
		statusMark = failMark
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", opts.Title)
	fmt.Fprintf(&b, "%s Fleet: %d devices, %d noncompliant (%.1f%%, threshold %.1f%%)\n",
		statusMark, snap.TotalDevices, snap.NoncompliantCount,
		snap.NoncompliantPercentage, snap.MaxNoncompliantPercent)
	fmt.Fprintf(&b, "• %d below macOS %s\n", snap.OSOutdatedCount, snap.MinMacOSVersion)
	if snap.RequireFileVault {
		fmt.Fprintf(&b, "• %d without FileVault\n", snap.FileVaultDisabledCount)
	}
	if snap.RequireFirewall {
		fmt.Fprintf(&b, "• %d without the firewall enabled\n", snap.FirewallDisabledCount)
	}
	if len(snap.NoncompliantExamples) > 0 {
		fmt.Fprintf(&b, "• Examples: %s\n", strings.Join(snap.NoncompliantExamples, ", "))
	}
	return strings.TrimSuffix(b.String(), "\n")
}
