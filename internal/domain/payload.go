package domain

import (
	"encoding/json"
	"math"
)

// Payload section names
const (
	SectionFunctions       = "functions"
	SectionVariables       = "variables"
	SectionModules         = "modules"
	SectionVulnerabilities = "vulnerabilities"
	SectionDataflow        = "dataflow"
)

// Entry is one loosely typed record from an analysis payload section
type Entry map[string]any

// Payload is an analysis result with every section already checked to be
// list-shaped. Sections that were present but not lists are named in
// Malformed and left nil.
type Payload struct {
	Functions       []Entry
	Variables       []Entry
	Modules         []any
	Vulnerabilities []Entry
	Dataflow        []Entry

	Fingerprint string
	Malformed   []string
	// NonObjects counts section items that were not objects
	NonObjects int
}

// String returns the value at key if it is a non-empty string
func (e Entry) String(key string) (string, bool) {
	s, ok := e[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Float returns the value at key if it is a finite number. NaN and the
// infinities YAML can express are rejected.
func (e Entry) Float(key string) (float64, bool) {
	var f float64
	switch v := e[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		var err error
		if f, err = v.Float64(); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Entries returns the value at key as a list of entries. Non-list values
// yield nil; list items that are not objects are skipped.
func (e Entry) Entries(key string) []Entry {
	raw, ok := e[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		switch m := item.(type) {
		case map[string]any:
			out = append(out, Entry(m))
		case Entry:
			out = append(out, m)
		}
	}
	return out
}
