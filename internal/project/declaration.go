// Package project reads the REMAP.toml declaration that names a workspace's archive
// and mapping file, and detects inventories when none is declared.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"remap/internal/archive"
	"remap/internal/config"
	"remap/internal/mappingfile"
	"remap/internal/paths"
)

// DeclarationFile is the default filename for project declarations
const DeclarationFile = "REMAP.toml"

// Archive kinds accepted in REMAP.toml
const (
	KindInventory = "inventory"
	KindSCIP      = "scip"
)

// Declaration represents the root structure of REMAP.toml
type Declaration struct {
	// Version is the schema version
	Version int `toml:"version"`

	// Archive names the class inventory loaded by default
	Archive ArchiveDeclaration `toml:"archive"`

	// Mappings names the default mapping file for import and export
	Mappings MappingsDeclaration `toml:"mappings,omitempty"`

	// Bulk adds exclusions to the configured bulk rename settings
	Bulk BulkDeclaration `toml:"bulk,omitempty"`
}

// ArchiveDeclaration locates the archive inventory
type ArchiveDeclaration struct {
	// Path is relative to the directory holding REMAP.toml
	Path string `toml:"path"`

	// Kind is "inventory" (JSON/YAML) or "scip"; inferred from the path when empty
	Kind string `toml:"kind,omitempty"`
}

// MappingsDeclaration locates the default mapping file
type MappingsDeclaration struct {
	Path   string `toml:"path,omitempty"`
	Format string `toml:"format,omitempty"`
}

// BulkDeclaration carries project-specific bulk rename settings
type BulkDeclaration struct {
	Exclude     []string `toml:"exclude,omitempty"`
	KeepMembers []string `toml:"keep_members,omitempty"`
}

// ParseDeclaration parses a REMAP.toml file from the given path
func ParseDeclaration(filePath string) (*Declaration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", DeclarationFile, err)
	}

	var decl Declaration
	if err := toml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", DeclarationFile, err)
	}

	if decl.Version < 1 {
		decl.Version = 1
	}
	if err := decl.Validate(); err != nil {
		return nil, err
	}
	return &decl, nil
}

// LoadDeclaration loads <root>/REMAP.toml. A missing file is not an error: it
// returns nil, nil.
func LoadDeclaration(root string) (*Declaration, error) {
	filePath := filepath.Join(root, DeclarationFile)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, nil
	}
	return ParseDeclaration(filePath)
}

// WriteDeclaration writes a Declaration to the given path
func WriteDeclaration(filePath string, decl *Declaration) error {
	data, err := toml.Marshal(decl)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", DeclarationFile, err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", DeclarationFile, err)
	}
	return nil
}

// Validate checks the declaration for missing or unknown values
func (d *Declaration) Validate() error {
	if d.Version != 1 {
		return fmt.Errorf("%s: unsupported version %d", DeclarationFile, d.Version)
	}
	if d.Archive.Path == "" {
		return fmt.Errorf("%s: archive declaration missing required 'path' field", DeclarationFile)
	}
	switch d.Archive.Kind {
	case "", KindInventory, KindSCIP:
	default:
		return fmt.Errorf("%s: unknown archive kind %q", DeclarationFile, d.Archive.Kind)
	}
	if d.Mappings.Format != "" {
		if _, err := mappingfile.ParseFormat(d.Mappings.Format); err != nil {
			return fmt.Errorf("%s: %w", DeclarationFile, err)
		}
	}
	return nil
}

// ArchiveKind returns the declared kind, inferring scip from a .scip path
func (d *Declaration) ArchiveKind() string {
	if d.Archive.Kind != "" {
		return d.Archive.Kind
	}
	return KindForPath(d.Archive.Path)
}

// Reader opens the declared archive; relative paths resolve against root
func (d *Declaration) Reader(root string) archive.Reader {
	return NewReader(paths.Resolve(root, d.Archive.Path), d.ArchiveKind())
}

// MappingsPath returns the declared mapping file resolved against root, or ""
func (d *Declaration) MappingsPath(root string) string {
	return paths.Resolve(root, d.Mappings.Path)
}

// ApplyTo merges the declaration's settings into cfg. Exclusions and kept members
// are appended to the configured ones; a declared mapping format replaces the
// configured default.
func (d *Declaration) ApplyTo(cfg *config.Config) {
	cfg.Bulk.Exclude = appendUnique(cfg.Bulk.Exclude, d.Bulk.Exclude)
	cfg.Bulk.KeepMembers = appendUnique(cfg.Bulk.KeepMembers, d.Bulk.KeepMembers)
	if d.Mappings.Format != "" {
		format, _ := mappingfile.ParseFormat(d.Mappings.Format)
		cfg.MappingFile.Format = string(format)
	}
}

// NewReader returns the archive reader for kind
func NewReader(path, kind string) archive.Reader {
	if kind == KindSCIP {
		return archive.NewSCIPReader(path)
	}
	return archive.NewInventoryFile(path)
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}
