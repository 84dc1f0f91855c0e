package metrics

import "testing"

func validSystem() System {
	return System{
		Vendor:        "nuuday_dk",
		Partner:       "nuuday_dk",
		Device:        "ys_4000",
		Software:      "debian",
		GPU:           "nvidia",
		CPU:           "x86_64",
		DeviceID:      "abc123",
		DeviceRegion:  "dk",
		Tenancy:       "dev",
		PartnerGUID:   "0e0de8ec-bdc3-48cf-8941-bc073d32eacd",
		AdvertisingID: "0000_0000",
	}
}

func TestValidateAcceptsWellFormedSystem(t *testing.T) {
	if err := validSystem().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsBadVendor(t *testing.T) {
	s := validSystem()
	s.Vendor = "bad vendor!"
	if err := s.Validate(); err == nil {
		t.Fatal("expected validation error for vendor with spaces/punctuation")
	}
}

func TestValidateRejectsPartnerGUIDWithUnderscore(t *testing.T) {
	s := validSystem()
	s.PartnerGUID = "has_underscore"
	if err := s.Validate(); err == nil {
		t.Fatal("expected validation error for partner_guid with underscore")
	}
}

func TestValidateRejectsBadTenancy(t *testing.T) {
	s := validSystem()
	s.Tenancy = "staging"
	if err := s.Validate(); err == nil {
		t.Fatal("expected validation error for non prod/dev tenancy")
	}
}

func TestExporterSetDoesNotPanic(t *testing.T) {
	e := NewExporter()
	e.Set(System{MainMemoryMBytes: 2048, NumCores: 4})
}
