// Package model decodes and validates the mrvxdef model file described in
// SPEC_FULL.md §7. Decoding uses gopkg.in/yaml.v3, the same library sqldef's
// database/database.go uses for its own YAML-shaped config.
package model

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mrvx-tools/mrvxdef/mrverrors"
)

// Structure names the MRV structure variant a model file converts its tables to.
// All tables in one model share the same structure (SPEC_FULL.md §5b).
type Structure string

const (
	Max    Structure = "max"
	TopK   Structure = "topk"
	NTopK  Structure = "ntopk"
	Serial Structure = "serial"
)

func (s Structure) Valid() bool {
	switch s {
	case Max, TopK, NTopK, Serial:
		return true
	default:
		return false
	}
}

// TableSpec is one entry of the model file's `tables` sequence.
type TableSpec struct {
	Name    string   `yaml:"name"`
	MRV     []string `yaml:"mrv"`
	Payload []string `yaml:"payload"`
	Order   []string `yaml:"order"`
	// K overrides the top-level K for this table. Zero means "use the
	// model-level default". It is the top-k width for TopK and NTopK, and for
	// every structure insert_T creates max(initialNodes, k) shard rows per
	// inserted row.
	K int `yaml:"k"`
}

// Model is the decoded, validated model file.
type Model struct {
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Schema   string `yaml:"schema"`

	MaxNodes     int       `yaml:"maxNodes"`
	InitialNodes int       `yaml:"initialNodes"`
	Structure    Structure `yaml:"structure"`
	K            int       `yaml:"k"`

	Tables []TableSpec `yaml:"tables"`
}

// Load reads and validates the model file at path. overrideInitialNodes, when
// non-nil, is the optional second CLI positional argument; it is clamped to
// MaxNodes (spec.md §6, §9).
func Load(path string, overrideInitialNodes *int) (*Model, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(mrverrors.ConfigurationError, "reading model file %q: %v", path, err)
	}

	var m Model
	if err := yaml.Unmarshal(buf, &m); err != nil {
		return nil, errors.Wrapf(mrverrors.ConfigurationError, "parsing model file %q: %v", path, err)
	}

	if m.K == 0 {
		m.K = 5
	}

	if overrideInitialNodes != nil {
		m.InitialNodes = *overrideInitialNodes
	}
	if m.InitialNodes > m.MaxNodes {
		m.InitialNodes = m.MaxNodes
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) validate() error {
	if m.Database == "" {
		return errors.Wrap(mrverrors.ConfigurationError, "\"database\" is required")
	}
	if m.Schema == "" {
		return errors.Wrap(mrverrors.ConfigurationError, "\"schema\" is required")
	}
	if !m.Structure.Valid() {
		return errors.Wrapf(mrverrors.ConfigurationError, "\"structure\" must be one of max, topk, ntopk, serial, got %q", m.Structure)
	}
	if m.MaxNodes < 1 {
		return errors.Wrapf(mrverrors.ConfigurationError, "\"maxNodes\" must be >= 1, got %d", m.MaxNodes)
	}
	if m.InitialNodes < 0 || m.InitialNodes > m.MaxNodes {
		return errors.Wrapf(mrverrors.PoolExhausted, "\"initialNodes\" (%d) must be between 0 and maxNodes (%d)", m.InitialNodes, m.MaxNodes)
	}
	if len(m.Tables) == 0 {
		return errors.Wrap(mrverrors.ConfigurationError, "\"tables\" must not be empty")
	}
	for _, t := range m.Tables {
		if t.Name == "" {
			return errors.Wrap(mrverrors.ConfigurationError, "every table entry needs a \"name\"")
		}
		if len(t.MRV) == 0 {
			return errors.Wrapf(mrverrors.ConfigurationError, "table %q: \"mrv\" must name at least one column", t.Name)
		}
	}
	return nil
}

// KFor returns the effective top-k width for a table: its own override, or the
// model-level default (SPEC_FULL.md §5c).
func (m *Model) KFor(t TableSpec) int {
	if t.K > 0 {
		return t.K
	}
	return m.K
}
