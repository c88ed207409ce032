// Package posture turns raw Jamf inventory entries into canonical device
// records and aggregates them into a fleet posture snapshot.
package posture

import (
	"log"
	"strings"
	"time"

	"github.com/adavenport-ops/gemini-endpoint-advisor/internal/jamf"
)

// VersionUnknown marks a device whose OS version was missing or blank. It
// never parses, so it always fails the minimum-version check.
const VersionUnknown = "unknown"

// Device is one normalized managed endpoint. Values are fail-closed: a
// missing security section reads as FileVault and firewall disabled.
type Device struct {
	LastContact      time.Time
	ID               string
	Name             string
	OSVersion        string
	FileVaultEnabled bool
	FirewallEnabled  bool
}

// Normalize maps raw inventory entries to Device records. Entries without a
// usable identifier are skipped and tallied in the second return value so
// they never distort the aggregation totals.
func Normalize(raw []jamf.Computer) (devices []Device, unparseable int) {
	devices = make([]Device, 0, len(raw))

	for _, entry := range raw {
		id := entry.ID
		if id == "" {
			id = entry.UDID
		}
		if id == "" {
			unparseable++
			continue
		}

		device := Device{ID: id, OSVersion: VersionUnknown}

		if entry.General != nil {
			device.Name = entry.General.Name
			if entry.General.LastContactTime != "" {
				if t, err := time.Parse(time.RFC3339, entry.General.LastContactTime); err == nil {
					device.LastContact = t
				}
			}
		}
		if entry.OperatingSystem != nil {
			if v := strings.TrimSpace(entry.OperatingSystem.Version); v != "" {
				device.OSVersion = v
			}
		}
		if entry.Security != nil {
			device.FileVaultEnabled = entry.Security.FileVaultEnabled
			device.FirewallEnabled = entry.Security.FirewallEnabled
		}

		devices = append(devices, device)
	}

	if unparseable > 0 {
		log.Printf("[WARN] Skipped %d inventory entries without an identifier", unparseable)
	}
	return devices, unparseable
}
