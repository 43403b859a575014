package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"remap/internal/compression"
	"remap/internal/errors"
)

// InventoryVersion is the schema version of inventory files
const InventoryVersion = 1

// inventoryDocument is the on-disk inventory layout
type inventoryDocument struct {
	Version int         `json:"version" yaml:"version"`
	Classes []ClassInfo `json:"classes" yaml:"classes"`
}

// InventoryFile reads and writes class inventories as JSON or YAML, chosen by the
// file extension (.json, .yaml, .yml), optionally compressed (.gz, .zst).
// It is both the reader used on load and the writer used on export.
type InventoryFile struct {
	Path string
}

// NewInventoryFile creates an inventory reader/writer for path
func NewInventoryFile(path string) *InventoryFile {
	return &InventoryFile{Path: path}
}

func (f *InventoryFile) isYAML() bool {
	switch strings.ToLower(filepath.Ext(compression.TrimExt(f.Path))) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// ReadClasses implements Reader
func (f *InventoryFile) ReadClasses(ctx context.Context) ([]ClassInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := compression.ReadFile(f.Path)
	if err != nil {
		return nil, errors.Wrap(errors.ArchiveLoadFailed, fmt.Sprintf("cannot read inventory %s", f.Path), err)
	}

	var doc inventoryDocument
	if f.isYAML() {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ArchiveLoadFailed, fmt.Sprintf("cannot parse inventory %s", f.Path), err)
	}
	if doc.Version != 0 && doc.Version != InventoryVersion {
		return nil, errors.Newf(errors.ArchiveLoadFailed, "inventory %s has unsupported version %d", f.Path, doc.Version)
	}
	return doc.Classes, nil
}

// WriteArchive implements Writer
func (f *InventoryFile) WriteArchive(ctx context.Context, classes []ClassInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := inventoryDocument{Version: InventoryVersion, Classes: classes}

	var data []byte
	var err error
	if f.isYAML() {
		data, err = yaml.Marshal(&doc)
	} else {
		data, err = json.MarshalIndent(&doc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding inventory: %w", err)
	}
	if err := compression.WriteFile(f.Path, data, 0644); err != nil {
		return fmt.Errorf("writing inventory %s: %w", f.Path, err)
	}
	return nil
}
