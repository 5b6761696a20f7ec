package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"codescape/internal/domain"
)

const samplePayload = `{
  "functions": [
    {"id": "main", "name": "main", "children": [{"id": "call_1"}]}
  ],
  "variables": [{"id": "counter", "x": 3, "y": 4, "z": 5}],
  "modules": ["os", "sys"],
  "vulnerabilities": "not a list",
  "dataflow": [{"from": "main", "to": "counter"}, 42]
}`

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload([]byte(samplePayload))
	require.NoError(t, err)

	assert.Len(t, p.Functions, 1)
	assert.Len(t, p.Variables, 1)
	assert.Equal(t, []any{"os", "sys"}, p.Modules)
	assert.Nil(t, p.Vulnerabilities)
	assert.Len(t, p.Dataflow, 1)
	assert.Equal(t, 1, p.NonObjects)
	assert.Equal(t, []string{domain.SectionVulnerabilities}, p.Malformed)
	assert.Len(t, p.Fingerprint, 64)

	x, ok := p.Variables[0].Float("x")
	assert.True(t, ok)
	assert.Equal(t, 3.0, x)
}

func TestDecodePayload_InvalidJSON(t *testing.T) {
	_, err := DecodePayload([]byte(`{"functions": [`))
	assert.Error(t, err)

	_, err = DecodePayload(nil)
	assert.Error(t, err)
}

func TestDecodePayload_NonObject(t *testing.T) {
	p, err := DecodePayload([]byte(`[1, 2, 3]`))
	require.NoError(t, err)
	assert.Equal(t, []string{SectionPayload}, p.Malformed)

	g, report := domain.Build(p)
	assert.True(t, g.Empty())
	assert.Equal(t, []string{SectionPayload}, report.SkippedSections)
}

func TestDecodePayload_NullAndMissingSections(t *testing.T) {
	p, err := DecodePayload([]byte(`{"functions": null}`))
	require.NoError(t, err)
	assert.Empty(t, p.Malformed)
	assert.Nil(t, p.Functions)
}

func TestDecodePayload_Envelope(t *testing.T) {
	p, err := DecodePayload([]byte(`{"status": "success", "data": {"modules": ["os"]}}`))
	require.NoError(t, err)
	assert.Equal(t, []any{"os"}, p.Modules)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte(samplePayload))
	b := Fingerprint([]byte(samplePayload))
	c := Fingerprint([]byte(samplePayload + " "))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestYAMLCodec_Parse(t *testing.T) {
	src := `
functions:
  - id: main
    children:
      - id: helper
        nodeType: function
variables:
  - id: counter
    x: 1
modules: [os]
dataflow: {bad: shape}
`
	p, err := NewYAMLCodec().Parse(strings.NewReader(src))
	require.NoError(t, err)

	require.Len(t, p.Functions, 1)
	assert.Len(t, p.Functions[0].Entries("children"), 1)
	assert.Equal(t, []string{domain.SectionDataflow}, p.Malformed)

	g, _ := domain.Build(p)
	assert.True(t, g.Has("helper"))
	assert.True(t, g.Has("module_0"))

	counter, _ := g.Node("counter")
	assert.Equal(t, 1.0, counter.Position.X)
}

func TestYAMLCodec_ParseEmpty(t *testing.T) {
	p, err := NewYAMLCodec().Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, []string{SectionPayload}, p.Malformed)
}

func sampleSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	p, err := DecodePayload([]byte(samplePayload))
	require.NoError(t, err)
	g, _ := domain.Build(p)

	positions := map[string]domain.Vec3{"main": {X: 1, Y: 2, Z: 3}}
	return NewSnapshot(g, positions, map[string]bool{"main": true})
}

func TestYAMLCodec_NonFiniteHintsSeedFinitePositions(t *testing.T) {
	p, err := NewYAMLCodec().Parse(strings.NewReader("variables:\n  - {id: a, x: .inf, y: .nan}\n  - {id: c}\n"))
	require.NoError(t, err)

	g, _ := domain.Build(p)
	require.Len(t, g.Nodes, 2)
	for _, n := range g.Nodes {
		assert.True(t, n.Position.Finite(), "%s at %+v", n.ID, n.Position)
	}
}

func TestNewSnapshot(t *testing.T) {
	snap := sampleSnapshot(t)

	require.NotEmpty(t, snap.Nodes)
	for i := 1; i < len(snap.Nodes); i++ {
		assert.Less(t, snap.Nodes[i-1].ID, snap.Nodes[i].ID)
	}

	var main SnapshotNode
	for _, n := range snap.Nodes {
		if n.ID == "main" {
			main = n
		}
	}
	assert.Equal(t, 1.0, main.X)
	assert.Equal(t, 3.0, main.Z)
	assert.True(t, main.Fixed)
	assert.NotEmpty(t, snap.Fingerprint)

	assert.Empty(t, NewSnapshot(nil, nil, nil).Nodes)
}

func TestExporters(t *testing.T) {
	snap := sampleSnapshot(t)

	t.Run("json", func(t *testing.T) {
		exp, err := ExporterFor("json")
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, exp.Export(snap, &buf))
		assert.Contains(t, buf.String(), `"node_type": "function"`)
	})

	t.Run("yaml", func(t *testing.T) {
		exp, err := ExporterFor("yaml")
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, exp.Export(snap, &buf))

		var back Snapshot
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
		assert.Equal(t, len(snap.Nodes), len(back.Nodes))
		assert.Equal(t, snap.Fingerprint, back.Fingerprint)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := ExporterFor("ansible")
		assert.Error(t, err)
	})
}

func TestImporterFor(t *testing.T) {
	assert.Equal(t, "yaml", ImporterFor(".yml").Format())
	assert.Equal(t, "json", ImporterFor(".json").Format())
	assert.Equal(t, "json", ImporterFor("").Format())
}
