// Package codec centralizes metadata encoding for persisted store files.
//
// Persisted files record the codec used for their directory section by a
// stable identifier, so files written with an older default still decode.
// Changing the default codec is therefore not a breaking change, but
// removing a codec is.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
	// ID is the stable one-byte identifier written into file footers.
	ID() uint8
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "cbor":
		return CBOR{}, true
	default:
		return nil, false
	}
}

// ByID returns a built-in codec by its stable identifier.
func ByID(id uint8) (Codec, bool) {
	switch id {
	case JSON{}.ID():
		return JSON{}, true
	case CBOR{}.ID():
		return CBOR{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for internal tests.
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

// Default is the codec used for newly written files.
var Default Codec = CBOR{}
