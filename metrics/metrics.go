// Package metrics defines the host-populated system-metrics structure
// (§6) plus its field validation and Prometheus exposition. Grounded on
// _examples/original_source/source/adk/steamboat/sb_system_metrics.h and
// _examples/original_source/tests/system_metrics_tests.c.
package metrics

import (
	"fmt"

	"github.com/nvstream/adk-core/cmn/cos"
)

// DeviceClass categorizes the host device for reporting contexts.
type DeviceClass int

const (
	DeviceClassUnknown DeviceClass = iota
	DeviceClassDesktopPC
	DeviceClassGameConsole
	DeviceClassSTB
	DeviceClassTV
	DeviceClassMobile
	DeviceClassDVR
	DeviceClassMiniatureSBC
)

// SentryName maps a DeviceClass to the string Sentry's device context
// expects.
func (c DeviceClass) SentryName() string {
	switch c {
	case DeviceClassDesktopPC:
		return "Desktop"
	case DeviceClassGameConsole:
		return "Console"
	case DeviceClassSTB:
		return "STB"
	case DeviceClassTV:
		return "TV"
	case DeviceClassMobile:
		return "MOBILE"
	default:
		return "Unknown"
	}
}

// System is the input structure populated by the host (§6).
type System struct {
	Vendor        string
	Partner       string
	Device        string
	Firmware      string
	Software      string
	Revision      string
	GPU           string
	CPU           string
	DeviceID      string // hex HMAC
	DeviceRegion  string
	Tenancy       string
	PartnerGUID   string
	AdvertisingID string

	MainMemoryMBytes      int64
	VideoMemoryMBytes     int64
	NumCores              int
	NumHardwareThreads    int
	DeviceClass           DeviceClass
	GPUTextureFormats     []string
	StorageAvailableBytes int64
	StorageMaxWriteBPS    int64
	PersonaID             string
}

// Validate checks every field constraint spec.md §6 names: the
// alphanumeric-with-underscores fields, the alphanumeric-with-dashes
// partner GUID, and the tenancy value.
func (s System) Validate() error {
	checks := []struct {
		name  string
		value string
	}{
		{"vendor", s.Vendor},
		{"partner", s.Partner},
		{"device", s.Device},
		{"software", s.Software},
		{"gpu", s.GPU},
		{"cpu", s.CPU},
		{"device_id", s.DeviceID},
		{"device_region", s.DeviceRegion},
		{"tenancy", s.Tenancy},
		{"advertising_id", s.AdvertisingID},
	}
	for _, c := range checks {
		if !cos.IsAlnumUnderscore(c.value) {
			return fmt.Errorf("metrics: %s must be alphanumeric with underscores, got %q", c.name, c.value)
		}
	}
	if !cos.IsAlnumDash(s.PartnerGUID) {
		return fmt.Errorf("metrics: partner_guid must be alphanumeric with dashes, got %q", s.PartnerGUID)
	}
	if s.Tenancy != "prod" && s.Tenancy != "dev" {
		return fmt.Errorf("metrics: tenancy must be %q or %q, got %q", "prod", "dev", s.Tenancy)
	}
	return nil
}
