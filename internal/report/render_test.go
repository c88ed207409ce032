package report_test

import (
	"strings"
	"testing"

	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/policy"
	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/posture"
	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/report"
)

func TestRender(t *testing.T) {
	var buf strings.Builder
	report.Render(&buf, report.Advice{
		Summary:         "The fleet is mostly healthy.",
		RemediationPlan: "Create a smart group for outdated Macs.",
		SlackMessage:    "*Weekly Endpoint Posture Summary*\n- all good",
	})
	out := buf.String()

	for _, want := range []string{
		"=== Endpoint Posture Summary ===",
		"The fleet is mostly healthy.",
		"=== Remediation Plan ===",
		"Create a smart group for outdated Macs.",
		"=== Slack Message ===",
		"*Weekly Endpoint Posture Summary*",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	order := []int{
		strings.Index(out, "=== Endpoint Posture Summary ==="),
		strings.Index(out, "=== Remediation Plan ==="),
		strings.Index(out, "=== Slack Message ==="),
	}
	if !(order[0] < order[1] && order[1] < order[2]) {
		t.Errorf("sections out of order: %v", order)
	}
}

func testSnapshot() posture.Snapshot {
	return posture.Snapshot{
		MinMacOSVersion:        "14.5",
		NoncompliantExamples:   []string{"12", "45"},
		TotalDevices:           20,
		OSOutdatedCount:        2,
		FileVaultDisabledCount: 1,
		FirewallDisabledCount:  3,
		NoncompliantCount:      3,
		NoncompliantPercentage: 15,
		MaxNoncompliantPercent: 10,
		RequireFileVault:       true,
		RequireFirewall:        true,
		ExceedsPolicy:          true,
	}
}

func TestSlackFallback(t *testing.T) {
	opts := policy.Slack{Title: "Weekly Endpoint Posture Summary", Channel: "#client-platform", IncludeEmojis: true}
	msg := report.SlackFallback(testSnapshot(), opts)

	for _, want := range []string{
		"*Weekly Endpoint Posture Summary*",
		"❌",
		"20 devices, 3 noncompliant (15.0%, threshold 10.0%)",
		"2 below macOS 14.5",
		"1 without FileVault",
		"3 without the firewall enabled",
		"Examples: 12, 45",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestSlackFallbackNoEmojis(t *testing.T) {
	opts := policy.Slack{Title: "Posture", Channel: "#ops", IncludeEmojis: false}
	snap := testSnapshot()
	snap.ExceedsPolicy = false

	msg := report.SlackFallback(snap, opts)
	if strings.Contains(msg, "✅") || strings.Contains(msg, "❌") {
		t.Errorf("emojis present despite include_emojis=false:\n%s", msg)
	}
	if !strings.Contains(msg, "[ok]") {
		t.Errorf("plain status marker missing:\n%s", msg)
	}
}

func TestSlackFallbackSkipsUnrequiredChecks(t *testing.T) {
	snap := testSnapshot()
	snap.RequireFileVault = false
	snap.RequireFirewall = false

	msg := report.SlackFallback(snap, policy.Slack{Title: "Posture"})
	if strings.Contains(msg, "FileVault") || strings.Contains(msg, "firewall") {
		t.Errorf("message mentions checks the policy does not require:\n%s", msg)
	}
}

func TestSlackFallbackDeterministic(t *testing.T) {
	opts := policy.Slack{Title: "Posture", Channel: "#ops", IncludeEmojis: true}
	first := report.SlackFallback(testSnapshot(), opts)
	for i := 0; i < 3; i++ {
		if again := report.SlackFallback(testSnapshot(), opts); again != first {
			t.Fatalf("fallback message not deterministic:\n%s\nvs\n%s", first, again)
		}
	}
}
