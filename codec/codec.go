// Package codec centralizes JSON encoding for run parameters, reports and
// CLI output.
//
// Run parameters stored in the run history record the codec name, so rows
// written with one codec can still be decoded after the default changes.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Indenter is implemented by codecs that can produce indented output.
type Indenter interface {
	MarshalIndent(v any, prefix, indent string) ([]byte, error)
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Pretty encodes v with two-space indentation when c supports it and falls
// back to Marshal otherwise.
func Pretty(c Codec, v any) ([]byte, error) {
	if c == nil {
		c = Default
	}
	if in, ok := c.(Indenter); ok {
		return in.MarshalIndent(v, "", "  ")
	}
	return c.Marshal(v)
}

// MustMarshal is a helper for internal tests/benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
