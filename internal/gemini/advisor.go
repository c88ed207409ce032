package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/policy"
	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/posture"
)

// Analysis is the structured result of the fleet analysis request.
type Analysis struct {
	Summary         string `json:"summary"`
	RemediationPlan string `json:"remediation_plan"`
}

const analysisPrompt = `You are a senior endpoint engineer and security-conscious
client platform owner. You are reviewing a Jamf Pro-managed macOS fleet.

You are given the following JSON describing fleet posture:

` + "```json\n%s\n```" + `

1. Write a concise plain-English summary (2-3 paragraphs) of the current fleet posture.
2. Propose concrete remediation steps suitable for Jamf Pro:
   - smart group logic ideas
   - policy changes
   - zero-touch / baseline improvements

Return your answer in *valid JSON* with this structure:

{
  "summary": "...",
  "remediation_plan": "..."
}`

const slackPrompt = `You are writing a Slack update for the channel %s about a
Jamf Pro-managed macOS fleet. The message title must be %q.

Fleet posture summary written by an endpoint engineer:

%s

Key numbers: %d devices total, %d noncompliant (%.1f%%), %d below macOS %s,
%d without FileVault, %d without the firewall enabled.

Write a short Slack-ready message with the title on the first line and a few
bullet points covering the key numbers and the most urgent follow-up. %s
Return only the message text, no JSON and no code fences.`

// AnalyzeFleet asks Gemini for a posture summary and remediation plan. A
// response that is not valid JSON degrades to a plain summary instead of
// failing the run.
func (c *Client) AnalyzeFleet(ctx context.Context, snap posture.Snapshot) (Analysis, error) {
	pretty, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	raw, err := c.Generate(ctx, fmt.Sprintf(analysisPrompt, pretty))
	if err != nil {
		return Analysis{}, err
	}

	cleaned := stripCodeFence(raw)
	var analysis Analysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		// Safety net: Gemini answered with Markdown or prose.
		return Analysis{Summary: strings.TrimSpace(raw)}, nil
	}
	return analysis, nil
}

// SlackSummary asks Gemini for a Slack-ready message built from the prior
// analysis and the snapshot numbers, honoring the configured Slack options.
func (c *Client) SlackSummary(ctx context.Context, snap posture.Snapshot, analysis Analysis, opts policy.Slack) (string, error) {
	emojiNote := "Do not use emojis."
	if opts.IncludeEmojis {
		emojiNote = "Use emojis for the bullets and overall status."
	}

	summary := analysis.Summary
	if summary == "" {
		summary = "(no summary available)"
	}

	prompt := fmt.Sprintf(slackPrompt,
		opts.Channel, opts.Title, summary,
		snap.TotalDevices, snap.NoncompliantCount, snap.NoncompliantPercentage,
		snap.OSOutdatedCount, snap.MinMacOSVersion,
		snap.FileVaultDisabledCount, snap.FirewallDisabledCount,
		emojiNote)

	raw, err := c.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stripCodeFence(raw)), nil
}

// stripCodeFence removes a surrounding Markdown code fence, which Gemini
// often wraps JSON answers in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
