package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jacentio/cfgtree/tree"
)

// Format is a document syntax.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
	HCL  Format = "hcl"
)

// ParseFormat returns the format named by s, which may be a format name or a
// file extension with or without the leading dot.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "yaml", "yml":
		return YAML, nil
	case "json":
		return JSON, nil
	case "hcl":
		return HCL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatOf returns the format implied by the extension of path.
func FormatOf(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, path)
	}
	return ParseFormat(ext)
}

// Decode parses data in format f. An empty document decodes to an empty Map.
func Decode(data []byte, f Format) (tree.Map, error) {
	switch f {
	case YAML, JSON:
		return decodeYAML(data)
	case HCL:
		return decodeHCL(data, "document.hcl")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// DecodeFile reads and parses the file at path, choosing the format from its extension.
func DecodeFile(path string) (tree.Map, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var m tree.Map
	if f == HCL {
		m, err = decodeHCL(data, path)
	} else {
		m, err = Decode(data, f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return m, nil
}

// Encode renders m in format f.
func Encode(m tree.Map, f Format) ([]byte, error) {
	switch f {
	case YAML:
		return EncodeYAML(m)
	case JSON:
		return EncodeJSON(m)
	case HCL:
		return EncodeHCL(m)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}
