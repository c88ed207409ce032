// Package main implements the Gemini endpoint advisor CLI: it fetches macOS
// inventory from Jamf Pro, aggregates fleet compliance posture against a
// YAML policy, and asks Gemini for a readable report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/gemini"
	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/jamf"
	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/policy"
	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/posture"
	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/report"
)

// defaultHTTPTimeout bounds each Jamf and Gemini request.
const defaultHTTPTimeout = 60 * time.Second

var (
	configPath = flag.String("config", "", "Path to YAML policy config (optional)")
	maxDevices = flag.Int("max-devices", 100, "Maximum number of devices to fetch from Jamf")
	jsonOut    = flag.Bool("json", false, "Print the posture snapshot as JSON and skip report generation")
	timeout    = flag.Duration("timeout", defaultHTTPTimeout, "HTTP timeout for Jamf and Gemini requests")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	// Best effort: a missing .env file is fine, the variables may already
	// be exported.
	if err := godotenv.Load(); err == nil && *debug {
		log.Print("[DEBUG] Loaded environment from .env")
	}

	if *maxDevices <= 0 {
		log.Fatal("[ERROR] -max-devices must be positive")
	}

	pol, err := policy.Load(*configPath)
	if err != nil {
		log.Fatalf("[ERROR] Failed to load policy: %v", err)
	}
	if *debug {
		log.Printf("[DEBUG] Policy: min macOS %s, FileVault required: %t, firewall required: %t",
			pol.MinMacOSVersion, pol.RequireFileVault, pol.RequireFirewall)
	}

	jamfClient, err := jamf.NewFromEnv(*timeout)
	if err != nil {
		log.Fatalf("[ERROR] Failed to create Jamf client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	raw, err := jamfClient.Computers(ctx, *maxDevices)
	if err != nil {
		log.Fatalf("[ERROR] Failed to fetch inventory: %v", err)
	}
	if len(raw) == 0 {
		fmt.Println("No devices returned from Jamf Pro.")
		return
	}

	devices, unparseable := posture.Normalize(raw)
	snap := posture.Aggregate(devices, pol, unparseable)

	if *debug {
		log.Printf("[DEBUG] Aggregated %d devices: %d noncompliant (%.1f%%)",
			snap.TotalDevices, snap.NoncompliantCount, snap.NoncompliantPercentage)
	}
	if snap.ExceedsPolicy {
		log.Printf("[WARN] Noncompliant percentage %.1f%% exceeds policy threshold %.1f%%",
			snap.NoncompliantPercentage, snap.MaxNoncompliantPercent)
	}

	if *jsonOut {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			log.Fatalf("[ERROR] Failed to marshal snapshot: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	advisor, err := gemini.NewFromEnv(*timeout)
	if err != nil {
		log.Fatalf("[ERROR] Failed to create Gemini client: %v", err)
	}

	analysis, err := advisor.AnalyzeFleet(ctx, snap)
	if err != nil {
		log.Fatalf("[ERROR] Fleet analysis failed: %v", err)
	}

	slackMessage, err := advisor.SlackSummary(ctx, snap, analysis, pol.Slack)
	if err != nil {
		log.Printf("[WARN] Slack summary generation failed, using local fallback: %v", err)
		slackMessage = report.SlackFallback(snap, pol.Slack)
	}

	report.Render(os.Stdout, report.Advice{
		Summary:         analysis.Summary,
		RemediationPlan: analysis.RemediationPlan,
		SlackMessage:    slackMessage,
	})
}
