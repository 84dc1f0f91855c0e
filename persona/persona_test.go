package persona

import (
	"os"
	"path/filepath"
	"testing"
)

const validPersonaFile = `{
	"v1": {
		"default_persona": "alpha",
		"personas": [
			{
				"id": "alpha",
				"manifest_url": "https://example.test/alpha/manifest.json",
				"partner_name": "Alpha Partner",
				"partner_guid": "0e0de8ec-bdc3-48cf-8941-bc073d32eacd",
				"error_message": "alpha is unavailable"
			},
			{
				"id": "beta",
				"manifest_url": "https://example.test/beta/manifest.json",
				"partner_name": "Beta Partner",
				"partner_guid": "1e0de8ec-bdc3-48cf-8941-bc073d32eacd"
			}
		]
	}
}`

func TestResolveDefaultPersonaWhenIDEmpty(t *testing.T) {
	m, err := Resolve([]byte(validPersonaFile), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.ID != "alpha" {
		t.Errorf("ID = %q, want alpha", m.ID)
	}
	if m.ManifestURL != "https://example.test/alpha/manifest.json" {
		t.Errorf("ManifestURL = %q", m.ManifestURL)
	}
	if m.FallbackErrorMessage != "alpha is unavailable" {
		t.Errorf("FallbackErrorMessage = %q", m.FallbackErrorMessage)
	}
}

func TestResolveByExplicitID(t *testing.T) {
	m, err := Resolve([]byte(validPersonaFile), "beta")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.ID != "beta" || m.PartnerName != "Beta Partner" || m.PartnerGUID != "1e0de8ec-bdc3-48cf-8941-bc073d32eacd" {
		t.Errorf("unexpected mapping: %+v", m)
	}
}

func TestResolveOptionalErrorMessageMayBeAbsent(t *testing.T) {
	m, err := Resolve([]byte(validPersonaFile), "beta")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.FallbackErrorMessage != "" {
		t.Errorf("FallbackErrorMessage = %q, want empty", m.FallbackErrorMessage)
	}
}

func TestResolveUnknownIDFails(t *testing.T) {
	if _, err := Resolve([]byte(validPersonaFile), "gamma"); err == nil {
		t.Fatal("expected error for unknown persona id")
	}
}

func TestResolveInvalidJSONFails(t *testing.T) {
	if _, err := Resolve([]byte("not json"), ""); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestResolveMissingV1Fails(t *testing.T) {
	if _, err := Resolve([]byte(`{}`), ""); err == nil {
		t.Fatal("expected error when v1 object is absent")
	}
}

func TestResolveMissingDefaultPersonaFailsWhenIDEmpty(t *testing.T) {
	raw := `{"v1":{"personas":[{"id":"alpha","manifest_url":"u","partner_name":"n","partner_guid":"g"}]}}`
	if _, err := Resolve([]byte(raw), ""); err == nil {
		t.Fatal("expected error when default_persona is missing and no id was requested")
	}
}

func TestResolveEmptyPersonasArrayFails(t *testing.T) {
	raw := `{"v1":{"default_persona":"alpha","personas":[]}}`
	if _, err := Resolve([]byte(raw), ""); err == nil {
		t.Fatal("expected error for empty personas array")
	}
}

func TestResolveEntryMissingManifestURLFails(t *testing.T) {
	raw := `{"v1":{"default_persona":"alpha","personas":[{"id":"alpha","partner_name":"n","partner_guid":"g"}]}}`
	if _, err := Resolve([]byte(raw), ""); err == nil {
		t.Fatal("expected error for entry missing manifest_url")
	}
}

func TestResolveEntryMissingPartnerNameFails(t *testing.T) {
	raw := `{"v1":{"default_persona":"alpha","personas":[{"id":"alpha","manifest_url":"u","partner_guid":"g"}]}}`
	if _, err := Resolve([]byte(raw), ""); err == nil {
		t.Fatal("expected error for entry missing partner_name")
	}
}

func TestResolveEntryMissingPartnerGUIDFails(t *testing.T) {
	raw := `{"v1":{"default_persona":"alpha","personas":[{"id":"alpha","manifest_url":"u","partner_name":"n"}]}}`
	if _, err := Resolve([]byte(raw), ""); err == nil {
		t.Fatal("expected error for entry missing partner_guid")
	}
}

func TestResolveMultipleEntriesFindsCorrectID(t *testing.T) {
	raw := `{"v1":{"default_persona":"a","personas":[
		{"id":"a","manifest_url":"ua","partner_name":"na","partner_guid":"ga"},
		{"id":"b","manifest_url":"ub","partner_name":"nb","partner_guid":"gb"},
		{"id":"c","manifest_url":"uc","partner_name":"nc","partner_guid":"gc"}
	]}}`
	m, err := Resolve([]byte(raw), "c")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.ManifestURL != "uc" {
		t.Errorf("ManifestURL = %q, want uc", m.ManifestURL)
	}
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	if _, err := Load(t.TempDir(), "", ""); err == nil {
		t.Fatal("expected error for empty file path")
	}
}

func TestLoadRejectsEscapingPath(t *testing.T) {
	if _, err := Load(t.TempDir(), "../outside.json", ""); err == nil {
		t.Fatal("expected error for a path escaping its root")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir(), "missing.json", ""); err == nil {
		t.Fatal("expected error when the persona file doesn't exist")
	}
}

func TestLoadRejectsEmptyFileContents(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "persona.json"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(root, "persona.json", ""); err == nil {
		t.Fatal("expected error for an empty persona file")
	}
}

func TestLoadReadsAndResolves(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "persona.json"), []byte(validPersonaFile), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(root, "persona.json", "beta")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.ID != "beta" {
		t.Errorf("ID = %q, want beta", m.ID)
	}
}
