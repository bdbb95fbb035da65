// Package artifact defines the build artifact and the process-wide cache slot
// that holds the most recent successful one.
package artifact

import (
	"encoding/json"
	"fmt"
	"time"

	"git.home.luguber.info/inful/pxbuild/internal/config"
)

// SourceMap is a version 3 source map. Maps decoded by ParseSourceMap keep
// their original encoding, which JSON returns unchanged; the fields are a
// read-only view of it.
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`

	raw json.RawMessage
}

// ParseSourceMap decodes a source map emitted by the bundler.
func ParseSourceMap(data []byte) (*SourceMap, error) {
	var m SourceMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode source map: %w", err)
	}
	if m.Version != 3 {
		return nil, fmt.Errorf("unsupported source map version %d", m.Version)
	}
	m.raw = append(json.RawMessage(nil), data...)
	return &m, nil
}

// JSON serializes the map for persistence. A parsed map is returned exactly
// as it was decoded.
func (m *SourceMap) JSON() (string, error) {
	if m.raw != nil {
		return string(m.raw), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode source map: %w", err)
	}
	return string(data), nil
}

// Artifact is the emitted bundle plus its optional source map. It is treated
// as one unit and never mutated after publication.
type Artifact struct {
	Code      string
	SourceMap *SourceMap // nil when the pass had source maps disabled

	BuildID  string
	Mode     config.BuildMode
	Revision string
	BuiltAt  time.Time
}

// HasSourceMap reports whether the artifact carries a map.
func (a *Artifact) HasSourceMap() bool {
	return a != nil && a.SourceMap != nil
}

// Metadata is the JSON-friendly description of an artifact without its payload.
type Metadata struct {
	BuildID   string    `json:"build_id"`
	Mode      string    `json:"mode"`
	Revision  string    `json:"revision,omitempty"`
	BuiltAt   time.Time `json:"built_at"`
	CodeBytes int       `json:"code_bytes"`
	SourceMap bool      `json:"source_map"`
}

// Meta returns the artifact's metadata.
func (a *Artifact) Meta() Metadata {
	return Metadata{
		BuildID:   a.BuildID,
		Mode:      string(a.Mode),
		Revision:  a.Revision,
		BuiltAt:   a.BuiltAt,
		CodeBytes: len(a.Code),
		SourceMap: a.HasSourceMap(),
	}
}
