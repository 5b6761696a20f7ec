package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"codescape/internal/domain"
)

// JSONCodec handles JSON payload import and snapshot export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse reads an analysis payload from JSON
func (c *JSONCodec) Parse(r io.Reader) (*domain.Payload, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return DecodePayload(raw)
}

// Export writes a snapshot as indented JSON
func (c *JSONCodec) Export(snap *Snapshot, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
