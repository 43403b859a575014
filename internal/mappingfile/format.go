package mappingfile

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"remap/internal/compression"
	"remap/internal/errors"
	"remap/internal/mapping"
)

// Format names a mapping file syntax
type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatVersion is written into every mapping file
const FormatVersion = 1

const textHeader = "# remap mappings v1"

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "txt", "":
		return FormatText, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatTOML:
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unknown mapping format %q", s)
	}
}

// FormatForPath infers the format from the file extension, ignoring a compression
// suffix. Unknown extensions fall back to def.
func FormatForPath(path string, def Format) Format {
	switch strings.ToLower(filepath.Ext(compression.TrimExt(path))) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".txt", ".mappings", ".map":
		return FormatText
	default:
		return def
	}
}

// document is the grouped layout used by the YAML and TOML formats
type document struct {
	Version int          `yaml:"version" toml:"version"`
	Classes []classEntry `yaml:"classes" toml:"classes"`
}

type classEntry struct {
	Original string        `yaml:"original" toml:"original"`
	Current  string        `yaml:"current,omitempty" toml:"current,omitempty"`
	Fields   []memberEntry `yaml:"fields,omitempty" toml:"fields,omitempty"`
	Methods  []memberEntry `yaml:"methods,omitempty" toml:"methods,omitempty"`
}

type memberEntry struct {
	Original string `yaml:"original" toml:"original"`
	Desc     string `yaml:"desc" toml:"desc"`
	Current  string `yaml:"current" toml:"current"`
}

// Encode serialises entries in the given format
func Encode(format Format, entries []Entry) ([]byte, error) {
	switch format {
	case FormatText:
		return encodeText(entries), nil
	case FormatYAML:
		return yaml.Marshal(group(entries))
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(group(entries)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown mapping format %q", format)
	}
}

// Decode parses data in the given format. Syntax errors are MAPPING_FORMAT_INVALID.
func Decode(format Format, data []byte) ([]Entry, error) {
	switch format {
	case FormatText:
		return decodeText(data)
	case FormatYAML:
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(errors.MappingFormatInvalid, "invalid YAML mapping file", err)
		}
		return ungroup(doc)
	case FormatTOML:
		var doc document
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, errors.Wrap(errors.MappingFormatInvalid, "invalid TOML mapping file", err)
		}
		return ungroup(doc)
	default:
		return nil, errors.Newf(errors.MappingFormatInvalid, "unknown mapping format %q", format)
	}
}

// ReadFile decodes the mapping file at path; .gz and .zst files are decompressed
func ReadFile(path string, format Format) ([]Entry, error) {
	data, err := compression.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}
	return Decode(format, data)
}

// WriteFile encodes entries to path; .gz and .zst files are compressed
func WriteFile(path string, format Format, entries []Entry) error {
	data, err := Encode(format, entries)
	if err != nil {
		return fmt.Errorf("encoding mapping file: %w", err)
	}
	if err := compression.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing mapping file: %w", err)
	}
	return nil
}

// encodeText writes one tab-separated line per entry:
//
//	class	<original>	<current>
//	field	<owner>	<original>	<desc>	<current>
//	method	<owner>	<original>	<desc>	<current>
func encodeText(entries []Entry) []byte {
	var buf bytes.Buffer
	buf.WriteString(textHeader + "\n")
	for _, e := range entries {
		if e.Kind == mapping.KindClass {
			fmt.Fprintf(&buf, "class\t%s\t%s\n", e.Original, e.Current)
			continue
		}
		fmt.Fprintf(&buf, "%s\t%s\t%s\t%s\t%s\n", e.Kind, e.Owner, e.Original, e.Desc, e.Current)
	}
	return buf.Bytes()
}

func decodeText(data []byte) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cols := strings.Split(text, "\t")
		kind, err := mapping.ParseKind(cols[0])
		if err != nil {
			return nil, errors.Newf(errors.MappingFormatInvalid, "line %d: %v", line, err)
		}
		switch {
		case kind == mapping.KindClass && len(cols) == 3:
			entries = append(entries, Entry{Kind: kind, Original: cols[1], Current: cols[2]})
		case kind != mapping.KindClass && len(cols) == 5:
			entries = append(entries, Entry{Kind: kind, Owner: cols[1], Original: cols[2], Desc: cols[3], Current: cols[4]})
		default:
			return nil, errors.Newf(errors.MappingFormatInvalid, "line %d: %s entry has %d columns", line, kind, len(cols))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.MappingFormatInvalid, "reading mapping file", err)
	}
	return entries, nil
}

// group folds the flat tuple stream into per-class records, keeping entry order
func group(entries []Entry) document {
	doc := document{Version: FormatVersion}
	index := make(map[string]int)
	classFor := func(name string) *classEntry {
		i, ok := index[name]
		if !ok {
			doc.Classes = append(doc.Classes, classEntry{Original: name})
			i = len(doc.Classes) - 1
			index[name] = i
		}
		return &doc.Classes[i]
	}

	for _, e := range entries {
		switch e.Kind {
		case mapping.KindClass:
			classFor(e.Original).Current = e.Current
		case mapping.KindField:
			c := classFor(e.Owner)
			c.Fields = append(c.Fields, memberEntry{Original: e.Original, Desc: e.Desc, Current: e.Current})
		case mapping.KindMethod:
			c := classFor(e.Owner)
			c.Methods = append(c.Methods, memberEntry{Original: e.Original, Desc: e.Desc, Current: e.Current})
		}
	}
	return doc
}

func ungroup(doc document) ([]Entry, error) {
	if doc.Version != 0 && doc.Version != FormatVersion {
		return nil, errors.Newf(errors.MappingFormatInvalid, "unsupported mapping file version %d", doc.Version)
	}
	var entries []Entry
	for _, c := range doc.Classes {
		if c.Original == "" {
			return nil, errors.New(errors.MappingFormatInvalid, "class record without an original name")
		}
		if c.Current != "" {
			entries = append(entries, Entry{Kind: mapping.KindClass, Original: c.Original, Current: c.Current})
		}
		for _, f := range c.Fields {
			entries = append(entries, Entry{Kind: mapping.KindField, Owner: c.Original, Original: f.Original, Desc: f.Desc, Current: f.Current})
		}
		for _, m := range c.Methods {
			entries = append(entries, Entry{Kind: mapping.KindMethod, Owner: c.Original, Original: m.Original, Desc: m.Desc, Current: m.Current})
		}
	}
	return entries, nil
}
