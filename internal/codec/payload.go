package codec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"codescape/internal/domain"
)

// SectionPayload names the whole payload in Payload.Malformed when the top
// level is not an object
const SectionPayload = "payload"

// Fingerprint returns the hex BLAKE2b-256 digest of raw payload bytes
func Fingerprint(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// DecodePayload parses JSON payload bytes. Only invalid JSON is an error:
// a non-object document yields an empty payload and non-list sections are
// recorded in Malformed and treated as absent.
//
// A success envelope ({"status": "success", "data": {...}}) is unwrapped.
func DecodePayload(raw []byte) (*domain.Payload, error) {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("failed to parse payload JSON: %w", err)
	}
	return payloadFrom(top, Fingerprint(raw)), nil
}

func payloadFrom(top any, fingerprint string) *domain.Payload {
	p := &domain.Payload{Fingerprint: fingerprint}

	obj, ok := asObject(top)
	if !ok {
		p.Malformed = append(p.Malformed, SectionPayload)
		return p
	}
	if status, _ := obj["status"].(string); status == "success" {
		if data, ok := asObject(obj["data"]); ok {
			obj = data
		}
	}

	p.Functions = entries(p, obj, domain.SectionFunctions)
	p.Variables = entries(p, obj, domain.SectionVariables)
	if list, ok := section(p, obj, domain.SectionModules); ok {
		p.Modules = list
	}
	p.Vulnerabilities = entries(p, obj, domain.SectionVulnerabilities)
	p.Dataflow = entries(p, obj, domain.SectionDataflow)
	return p
}

// section returns a list-shaped section. Absent and null sections are simply
// empty; anything else non-list is malformed.
func section(p *domain.Payload, obj map[string]any, name string) ([]any, bool) {
	raw, present := obj[name]
	if !present || raw == nil {
		return nil, false
	}
	list, ok := raw.([]any)
	if !ok {
		p.Malformed = append(p.Malformed, name)
		return nil, false
	}
	return list, true
}

func entries(p *domain.Payload, obj map[string]any, name string) []domain.Entry {
	list, ok := section(p, obj, name)
	if !ok {
		return nil
	}
	out := make([]domain.Entry, 0, len(list))
	for _, item := range list {
		m, ok := asObject(item)
		if !ok {
			p.NonObjects++
			continue
		}
		out = append(out, domain.Entry(m))
	}
	return out
}

// asObject accepts both JSON and YAML decoded maps
func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}
