package posture

import (
	"math"

	"github.com/Masterminds/semver/v3"

	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/policy"
)

// maxExamples caps the noncompliant_examples list so prompts stay readable.
const maxExamples = 10

// Snapshot is the aggregate fleet posture for one report run. Field names
// are stable: the structure is interpolated directly into generated prompts
// and JSON output.
type Snapshot struct {
	OSVersionBreakdown     map[string]int `json:"os_version_breakdown"`
	MinMacOSVersion        string         `json:"min_macos_version"`
	NoncompliantExamples   []string       `json:"noncompliant_examples"`
	TotalDevices           int            `json:"total_devices"`
	OSOutdatedCount        int            `json:"os_outdated_count"`
	FileVaultDisabledCount int            `json:"filevault_disabled_count"`
	FirewallDisabledCount  int            `json:"firewall_disabled_count"`
	NoncompliantCount      int            `json:"noncompliant_count"`
	UnparseableCount       int            `json:"unparseable_count"`
	NoncompliantPercentage float64        `json:"noncompliant_percentage"`
	MaxNoncompliantPercent float64        `json:"max_noncompliant_percentage"`
	RequireFileVault       bool           `json:"require_filevault"`
	RequireFirewall        bool           `json:"require_firewall"`
	ExceedsPolicy          bool           `json:"exceeds_policy"`
}

// Aggregate evaluates every device against the policy in a single pass and
// returns the fleet snapshot. It is pure: inputs are never mutated, an empty
// device list yields a zero-valued snapshot with 0% noncompliance, and
// identical inputs always produce identical output.
func Aggregate(devices []Device, pol policy.Policy, unparseable int) Snapshot {
	// The policy is validated upstream; an unparseable minimum disables the
	// version comparison rather than crashing, and unknown device versions
	// still fail the OS check.
	minVersion, err := semver.NewVersion(pol.MinMacOSVersion)
	if err != nil {
		minVersion = nil
	}

	snap := Snapshot{
		OSVersionBreakdown:     make(map[string]int, len(devices)),
		MinMacOSVersion:        pol.MinMacOSVersion,
		NoncompliantExamples:   []string{},
		TotalDevices:           len(devices),
		UnparseableCount:       unparseable,
		MaxNoncompliantPercent: pol.MaxNoncompliantPercent,
		RequireFileVault:       pol.RequireFileVault,
		RequireFirewall:        pol.RequireFirewall,
	}

	for _, device := range devices {
		snap.OSVersionBreakdown[device.OSVersion]++

		osBad := osOutdated(device.OSVersion, minVersion, pol.MaxVersionsBehind)
		fvBad := pol.RequireFileVault && !device.FileVaultEnabled
		fwBad := pol.RequireFirewall && !device.FirewallEnabled

		if osBad {
			snap.OSOutdatedCount++
		}
		if fvBad {
			snap.FileVaultDisabledCount++
		}
		if fwBad {
			snap.FirewallDisabledCount++
		}

		if osBad || fvBad || fwBad {
			snap.NoncompliantCount++
			if len(snap.NoncompliantExamples) < maxExamples {
				snap.NoncompliantExamples = append(snap.NoncompliantExamples, device.ID)
			}
		}
	}

	if snap.TotalDevices > 0 {
		pct := float64(snap.NoncompliantCount) / float64(snap.TotalDevices) * 100
		snap.NoncompliantPercentage = math.Round(pct*10) / 10
	}
	snap.ExceedsPolicy = snap.NoncompliantPercentage > pol.MaxNoncompliantPercent

	return snap
}

// osOutdated applies the OS version rule: below the minimum version, or too
// many minor releases behind it when max_versions_behind is configured.
// Versions-behind arithmetic only holds within one major line; a device on
// an older major always counts as behind.
func osOutdated(version string, minVersion *semver.Version, maxBehind *int) bool {
	deviceVersion, err := semver.NewVersion(version)
	if err != nil {
		// Unknown or malformed version never satisfies the check.
		return true
	}
	if minVersion == nil {
		return false
	}

	belowMinimum := deviceVersion.LessThan(minVersion)

	behind := false
	if maxBehind != nil {
		switch {
		case deviceVersion.Major() < minVersion.Major():
			behind = true
		case deviceVersion.Major() == minVersion.Major():
			behind = int(minVersion.Minor())-int(deviceVersion.Minor()) > *maxBehind
		}
	}

	return belowMinimum || behind
}
