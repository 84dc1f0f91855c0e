// Package persona resolves a device's persona file - a JSON document
// mapping persona IDs to per-partner manifest URLs - to a single Mapping
// for the requested (or default) persona ID (§6 "Persona file"). Grounded
// on _examples/original_source/source/adk/persona/persona.c, with the
// richer per-persona partner_name/partner_guid/error_message schema taken
// from spec.md §6, which supersedes the older shape in the retrieved
// persona.c.
package persona

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/nvstream/adk-core/cmn/cos"
)

// Mapping is the resolved mapping for one persona ID.
type Mapping struct {
	ID                   string
	ManifestURL          string
	PartnerName          string
	PartnerGUID          string
	FallbackErrorMessage string
}

type personaFileV1 struct {
	DefaultPersona string         `json:"default_persona"`
	Personas       []personaEntry `json:"personas"`
}

type personaEntry struct {
	ID           string `json:"id"`
	ManifestURL  string `json:"manifest_url"`
	PartnerName  string `json:"partner_name"`
	PartnerGUID  string `json:"partner_guid"`
	ErrorMessage string `json:"error_message"`
}

type personaFile struct {
	V1 personaFileV1 `json:"v1"`
}

// Resolve parses raw persona-file JSON and looks up id, falling back to
// the file's default_persona when id is empty, mirroring
// persona_parse_for_mapping. Any required field missing at any layer -
// v1, default_persona, the personas array, or a matched entry's own
// fields - fails the lookup.
func Resolve(raw []byte, id string) (Mapping, error) {
	var doc personaFile
	if err := jsoniter.Unmarshal(raw, &doc); err != nil {
		return Mapping{}, fmt.Errorf("persona: invalid json syntax: %w", err)
	}

	if doc.V1.DefaultPersona == "" {
		return Mapping{}, fmt.Errorf("persona: default_persona is required but missing or empty")
	}
	if id == "" {
		id = doc.V1.DefaultPersona
	}

	for _, p := range doc.V1.Personas {
		if p.ID != id {
			continue
		}
		if p.ManifestURL == "" {
			return Mapping{}, fmt.Errorf("persona: manifest_url missing for persona id %q", id)
		}
		if p.PartnerName == "" {
			return Mapping{}, fmt.Errorf("persona: partner_name missing for persona id %q", id)
		}
		if p.PartnerGUID == "" {
			return Mapping{}, fmt.Errorf("persona: partner_guid missing for persona id %q", id)
		}
		return Mapping{
			ID:                   id,
			ManifestURL:          p.ManifestURL,
			PartnerName:          p.PartnerName,
			PartnerGUID:          p.PartnerGUID,
			FallbackErrorMessage: p.ErrorMessage,
		}, nil
	}

	return Mapping{}, fmt.Errorf("persona: no persona found for id %q", id)
}

// Load reads file from beneath root (the host's app_root directory) and
// resolves it, mirroring get_persona_mapping's file-then-parse sequence.
func Load(root, file, id string) (Mapping, error) {
	if file == "" {
		return Mapping{}, fmt.Errorf("persona: no persona file provided")
	}
	if !cos.IsUnderRoot(file) {
		return Mapping{}, fmt.Errorf("persona: persona file %q escapes its root", file)
	}
	raw, err := os.ReadFile(filepath.Join(root, file))
	if err != nil {
		return Mapping{}, fmt.Errorf("persona: reading %s: %w", file, err)
	}
	if len(raw) == 0 {
		return Mapping{}, fmt.Errorf("persona: persona file %q is empty", file)
	}
	return Resolve(raw, id)
}
