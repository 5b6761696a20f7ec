package codec

import (
	"bytes"
	"fmt"
	"io"

	"codescape/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML payload import and snapshot export. YAML payloads
// are mostly hand-written fixtures.
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse reads an analysis payload from YAML with the same fail-soft rules as
// DecodePayload
func (c *YAMLCodec) Parse(r io.Reader) (*domain.Payload, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	var top any
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	if err := decoder.Decode(&top); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return payloadFrom(top, Fingerprint(raw)), nil
}

// Export writes a snapshot as YAML
func (c *YAMLCodec) Export(snap *Snapshot, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
