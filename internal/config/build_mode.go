package config

import (
	"git.home.luguber.info/inful/pxbuild/internal/foundation/normalization"
	"gopkg.in/yaml.v3"
)

// BuildMode selects every downstream configuration choice of a build pass.
// It is a closed enumeration; switches over it are exhaustive.
type BuildMode string

const (
	ModeDevelopment BuildMode = "development"
	ModeProduction  BuildMode = "production"
)

var buildModeNormalizer = normalization.NewNormalizer(map[string]BuildMode{
	"development": ModeDevelopment,
	"dev":         ModeDevelopment,
	"production":  ModeProduction,
	"prod":        ModeProduction,
}, ModeDevelopment)

// ParseBuildMode accepts the canonical names and the dev/prod short forms.
func ParseBuildMode(raw string) (BuildMode, error) {
	return buildModeNormalizer.Parse(raw)
}

// Valid reports whether m is one of the declared modes.
func (m BuildMode) Valid() bool {
	return buildModeNormalizer.Known(m)
}

func (m BuildMode) String() string { return string(m) }

// UnmarshalYAML normalizes aliases and rejects unknown modes at load time.
func (m *BuildMode) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == "" {
		*m = ""
		return nil
	}
	parsed, err := ParseBuildMode(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
