package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// It is kept for directories that need to be inspected with ordinary
// tooling. Byte slices encode as base64 and digests therefore grow by a
// third; prefer CBOR for anything large.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// ID returns the footer identifier of the codec.
func (JSON) ID() uint8 { return 1 }
