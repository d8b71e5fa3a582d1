// Package script loads the declarative dialogue the sequencer interprets.
package script

import (
	"bytes"
	_ "embed"
	"errors"
	"io"
	"os"

	"github.com/rendis/conclave/pkg/schema"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultScript []byte

// DefaultSource returns the raw embedded default script.
func DefaultSource() []byte {
	return bytes.Clone(defaultScript)
}

// Default parses the embedded default script.
func Default() (*schema.Script, error) {
	return Parse(defaultScript)
}

// MustDefault is Default for package-level initialization; it panics on a
// malformed embedded script, which is a build defect.
func MustDefault() *schema.Script {
	s, err := Default()
	if err != nil {
		panic(err)
	}
	return s
}

// Parse decodes a YAML (or JSON) script. Unknown fields are rejected.
func Parse(data []byte) (*schema.Script, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a single script document from r.
func Decode(r io.Reader) (*schema.Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s schema.Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, schema.NewError(schema.ErrCodeValidation, "script is empty")
		}
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "parse script: %s", err.Error()).WithCause(err)
	}
	return &s, nil
}

// LoadFile reads and parses a script from disk.
func LoadFile(path string) (*schema.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "script %s not found", path).WithCause(err)
		}
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "read script %s", path).WithCause(err)
	}
	return Parse(data)
}

// Load returns the script at path, or the embedded default when path is empty.
func Load(path string) (*schema.Script, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Marshal encodes a script back to YAML.
func Marshal(s *schema.Script) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
