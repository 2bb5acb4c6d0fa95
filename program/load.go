package program

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a program file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from a file extension. Unknown extensions are
// treated as YAML, which also accepts JSON documents.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads a program file.
func Load(path string) (Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return Program{}, err
	}
	defer f.Close()

	p, err := Decode(f, FormatOf(path))
	if err != nil {
		return Program{}, fmt.Errorf("load %s: %w", path, err)
	}
	return p, nil
}

// Decode reads a program in the given format from r.
func Decode(r io.Reader, format Format) (Program, error) {
	var p Program
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&p); err != nil {
			return Program{}, err
		}
	case FormatYAML, "":
		if err := yaml.NewDecoder(r).Decode(&p); err != nil && err != io.EOF {
			return Program{}, err
		}
	default:
		return Program{}, fmt.Errorf("unknown format %q", format)
	}
	return p, nil
}

// Encode writes p to w in the given format.
func Encode(w io.Writer, p Program, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// Save writes p to path, choosing the format by extension.
func Save(path string, p Program) error {
	var buf bytes.Buffer
	if err := Encode(&buf, p, FormatOf(path)); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
