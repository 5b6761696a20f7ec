package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescape/internal/analysis"
	"codescape/internal/domain"
	"codescape/internal/frame"
	"codescape/internal/layout"
	"codescape/internal/repository/sqlite"
)

const samplePayload = `{
	"functions": [{"id": "main", "children": [{"id": "helper"}]}],
	"variables": [{"id": "cfg"}],
	"dataflow": [{"from": "cfg", "to": "main"}]
}`

type fakeAnalyzer struct {
	payload *domain.Payload
	err     error
	calls   []analysis.Request
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req analysis.Request) (*domain.Payload, error) {
	f.calls = append(f.calls, req)
	return f.payload, f.err
}

type harness struct {
	svc    *SessionService
	events chan Event
	now    time.Time
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	bus := NewEventBus()
	events := make(chan Event, 4096)
	bus.Subscribe(events)
	if opts.Params == (layout.Params{}) {
		opts.Params = layout.DefaultParams()
	}
	svc := NewSessionService(bus, opts)
	t.Cleanup(svc.Close)
	return &harness{svc: svc, events: events, now: time.Unix(1000, 0)}
}

func (h *harness) frames(n int) {
	for i := 0; i < n; i++ {
		h.now = h.now.Add(16 * time.Millisecond)
		h.svc.Frame(h.now)
	}
}

// drain returns the buffered events of the given type
func (h *harness) drain(types ...EventType) []Event {
	want := map[EventType]bool{}
	for _, t := range types {
		want[t] = true
	}
	var out []Event
	for {
		select {
		case ev := <-h.events:
			if len(want) == 0 || want[ev.Type] {
				out = append(out, ev)
			}
		default:
			return out
		}
	}
}

func (h *harness) load(t *testing.T) *GenerationInfo {
	t.Helper()
	info, err := h.svc.LoadRaw(context.Background(), []byte(samplePayload), SourceUpload)
	require.NoError(t, err)
	return info
}

func TestEventBus_PublishAndUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	a := make(chan Event, 1)
	b := make(chan Event, 1)
	bus.Subscribe(a)
	bus.Subscribe(b)

	bus.Publish(Event{Type: EventGraphLoaded})
	assert.Equal(t, EventGraphLoaded, (<-a).Type)
	assert.Equal(t, EventGraphLoaded, (<-b).Type)

	bus.Unsubscribe(b)
	bus.Publish(Event{Type: EventCameraMoved})
	bus.Publish(Event{Type: EventCameraMoved}) // a is full; skipped without blocking
	assert.Equal(t, EventCameraMoved, (<-a).Type)
	assert.Empty(t, b)
}

func TestSession_LoadPublishesGraph(t *testing.T) {
	h := newHarness(t, Options{})

	info := h.load(t)
	assert.Equal(t, 1, info.Seq)
	assert.Equal(t, SourceUpload, info.Source)
	assert.Equal(t, 3, info.Stats.TotalNodes)
	assert.Equal(t, 2, info.Stats.TotalEdges)
	assert.NotEmpty(t, info.Fingerprint)

	loaded := h.drain(EventGraphLoaded)
	require.Len(t, loaded, 1)
	assert.Equal(t, *info, loaded[0].Payload)

	v, err := h.svc.View()
	require.NoError(t, err)
	assert.Len(t, v.Nodes, 3)
	assert.Len(t, v.Edges, 2)
	assert.Equal(t, info.ID, v.Generation.ID)

	second := h.load(t)
	assert.Equal(t, 2, second.Seq)
	assert.NotEqual(t, info.ID, second.ID)
}

func TestSession_NoGraph(t *testing.T) {
	h := newHarness(t, Options{})

	_, err := h.svc.View()
	assert.ErrorIs(t, err, ErrNoGraph)
	_, err = h.svc.Positions()
	assert.ErrorIs(t, err, ErrNoGraph)
	assert.ErrorIs(t, h.svc.Submit(frame.Interaction{Kind: frame.Unhover}), ErrNoGraph)
	assert.ErrorIs(t, h.svc.Export(&bytes.Buffer{}, "json"), ErrNoGraph)
	assert.False(t, h.svc.Frame(time.Now()))
	assert.Nil(t, h.svc.Status().Generation)
}

func TestSession_LoadRawRejectsInvalidJSON(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.svc.LoadRaw(context.Background(), []byte("{not json"), SourceUpload)
	assert.Error(t, err)
	assert.Empty(t, h.drain(EventGraphLoaded))
}

func TestSession_MalformedSectionStillLoads(t *testing.T) {
	h := newHarness(t, Options{})
	info, err := h.svc.LoadRaw(context.Background(), []byte(`{"functions": {"id": "x"}, "variables": [{"id": "v"}]}`), SourceUpload)
	require.NoError(t, err)
	assert.Equal(t, []string{"functions"}, info.Report.SkippedSections)
	assert.Equal(t, 1, info.Stats.TotalNodes)
}

func TestSession_FramesPublishLayout(t *testing.T) {
	h := newHarness(t, Options{})
	h.load(t)
	h.drain()

	h.frames(200)

	positions := h.drain(EventPositionsUpdated)
	require.NotEmpty(t, positions)
	first := positions[0].Payload.(PositionsEvent)
	assert.Len(t, first.Positions, 3)

	st := h.svc.Status()
	assert.True(t, st.Converged)
	assert.Equal(t, 66, st.Ticks)
}

func TestSession_PositionBroadcastsAreThrottled(t *testing.T) {
	h := newHarness(t, Options{PositionsPerSecond: 0.001, Burst: 1})
	h.load(t)
	h.drain()

	h.frames(200)

	counts := map[EventType]int{}
	for _, ev := range h.drain() {
		counts[ev.Type]++
	}
	assert.Equal(t, 1, counts[EventPositionsUpdated])
	assert.Equal(t, 1, counts[EventEdgesUpdated], "edges follow positions")
	assert.Equal(t, 1, counts[EventLayoutConverged])
}

func TestSession_ConvergedCarriesFinalPositions(t *testing.T) {
	h := newHarness(t, Options{PositionsPerSecond: 0.001, Burst: 1})
	h.load(t)
	h.drain()

	h.frames(200)

	converged := h.drain(EventLayoutConverged)
	require.Len(t, converged, 1)
	payload := converged[0].Payload.(PositionsEvent)
	assert.Len(t, payload.Positions, 3)

	final, err := h.svc.Positions()
	require.NoError(t, err)
	assert.Equal(t, final, payload.Positions)
}

func TestSession_PrewarmedLayoutStillPublished(t *testing.T) {
	h := newHarness(t, Options{Frame: frame.Options{PrewarmTicks: 100}})
	h.load(t)
	require.True(t, h.svc.Status().Converged)
	h.drain()

	h.frames(10)

	counts := map[EventType]int{}
	var converged PositionsEvent
	for _, ev := range h.drain() {
		counts[ev.Type]++
		if ev.Type == EventLayoutConverged {
			converged = ev.Payload.(PositionsEvent)
		}
	}
	assert.Equal(t, 1, counts[EventPositionsUpdated])
	assert.Equal(t, 1, counts[EventEdgesUpdated])
	require.Equal(t, 1, counts[EventLayoutConverged])
	assert.Len(t, converged.Positions, 3)
}

func TestSession_FilterSurvivesReload(t *testing.T) {
	h := newHarness(t, Options{})
	h.load(t)

	require.NoError(t, h.svc.Submit(frame.Interaction{
		Kind:  frame.SetEnabledTypes,
		Types: []domain.NodeType{domain.NodeTypeFunction},
	}))
	h.frames(1)

	filters := h.drain(EventFilterChanged)
	require.Len(t, filters, 1)

	h.load(t)
	v, err := h.svc.View()
	require.NoError(t, err)
	assert.Equal(t, []domain.NodeType{domain.NodeTypeFunction}, v.Enabled)
	require.Len(t, v.Nodes, 1)
	assert.Equal(t, "main", v.Nodes[0].ID)
	assert.Empty(t, v.Edges)
}

func TestSession_SelectionEvents(t *testing.T) {
	h := newHarness(t, Options{})
	h.load(t)
	h.drain()

	require.NoError(t, h.svc.Submit(frame.Interaction{Kind: frame.Click, NodeID: "main"}))
	h.frames(1)

	sel := h.drain(EventSelectionChanged)
	require.Len(t, sel, 1)
	payload := sel[0].Payload.(SelectionEvent)
	assert.Equal(t, "main", payload.Focus)
	assert.Equal(t, []string{"cfg", "helper", "main"}, payload.Highlight)

	v, err := h.svc.View()
	require.NoError(t, err)
	for _, n := range v.Nodes {
		assert.True(t, n.Highlighted, n.ID)
	}
}

func TestSession_HandleMessage(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	info, err := h.svc.HandleMessage(ctx, []byte(`{"command": "loading"}`))
	assert.NoError(t, err)
	assert.Nil(t, info)

	msg := `{"command": "analysis", "data": ` + samplePayload + `}`
	info, err = h.svc.HandleMessage(ctx, []byte(msg))
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, SourceMessage, info.Source)
	assert.Equal(t, 3, info.Stats.TotalNodes)

	info, err = h.svc.HandleMessage(ctx, []byte(`{"command": "error", "message": "parser crashed"}`))
	assert.NoError(t, err)
	assert.Nil(t, info)
	errs := h.drain(EventAnalysisError)
	require.Len(t, errs, 1)
	assert.Equal(t, AnalysisError{Message: "parser crashed"}, errs[0].Payload)
	assert.Equal(t, "parser crashed", h.svc.Status().LastError)

	_, err = h.svc.HandleMessage(ctx, []byte(`{"data": {}}`))
	assert.ErrorIs(t, err, analysis.ErrMissingCommand)
}

func TestSession_Analyze(t *testing.T) {
	payload := &domain.Payload{Variables: []domain.Entry{{"id": "v"}}}

	t.Run("success loads the result under the project scope", func(t *testing.T) {
		fake := &fakeAnalyzer{payload: payload}
		h := newHarness(t, Options{Analyzer: fake})

		info, err := h.svc.Analyze(context.Background(), analysis.Request{ProjectDir: "/src/app"})
		require.NoError(t, err)
		assert.Equal(t, "/src/app", info.Scope)
		assert.Equal(t, SourceAnalysis, info.Source)
		assert.Len(t, fake.calls, 1)
		assert.Len(t, h.drain(EventAnalysisStarted), 1)
	})

	t.Run("needs entrypoint publishes the options", func(t *testing.T) {
		fake := &fakeAnalyzer{err: &analysis.NeedsEntrypointError{
			Message: "pick an entrypoint",
			Options: []string{"main.py", "cli.py"},
		}}
		h := newHarness(t, Options{Analyzer: fake})

		_, err := h.svc.Analyze(context.Background(), analysis.Request{ProjectDir: "/src/app"})
		assert.ErrorIs(t, err, analysis.ErrNeedsEntrypoint)

		errs := h.drain(EventAnalysisError)
		require.Len(t, errs, 1)
		assert.Equal(t, []string{"main.py", "cli.py"}, errs[0].Payload.(AnalysisError).Options)
	})

	t.Run("transport failure keeps the previous graph", func(t *testing.T) {
		fake := &fakeAnalyzer{payload: payload}
		h := newHarness(t, Options{Analyzer: fake})
		_, err := h.svc.Analyze(context.Background(), analysis.Request{ProjectDir: "/src/app"})
		require.NoError(t, err)

		fake.err = &analysis.TransportError{StatusCode: 502, Message: "bad gateway"}
		_, err = h.svc.Analyze(context.Background(), analysis.Request{ProjectDir: "/src/app"})
		var te *analysis.TransportError
		assert.True(t, errors.As(err, &te))

		v, err := h.svc.View()
		require.NoError(t, err)
		assert.Len(t, v.Nodes, 1)
	})

	t.Run("no analyzer", func(t *testing.T) {
		h := newHarness(t, Options{})
		_, err := h.svc.Analyze(context.Background(), analysis.Request{ProjectDir: "/x"})
		assert.ErrorIs(t, err, ErrNoAnalyzer)
	})
}

func TestSession_PinsPersistAcrossGenerations(t *testing.T) {
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	h := newHarness(t, Options{Repository: repo, Scope: "/proj"})
	h.load(t)

	at := domain.Vec3{X: 12, Y: -3, Z: 4}
	require.NoError(t, h.svc.Submit(frame.Interaction{Kind: frame.Pin, NodeID: "cfg", Position: &at}))
	h.frames(1)

	stored, err := repo.Pins(ctx, "/proj")
	require.NoError(t, err)
	assert.Equal(t, at, stored["cfg"])
	assert.Len(t, h.drain(EventPinChanged), 1)

	// a new generation restores the pin before its first frame
	h.load(t)
	h.frames(100)
	positions, err := h.svc.Positions()
	require.NoError(t, err)
	assert.Equal(t, at, positions["cfg"])

	pins, err := h.svc.Pins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Pin{{NodeID: "cfg", Position: at}}, pins)

	require.NoError(t, h.svc.Unpin(ctx, "cfg"))
	h.frames(1)
	stored, err = repo.Pins(ctx, "/proj")
	require.NoError(t, err)
	assert.Empty(t, stored)

	gens, err := h.svc.Generations(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, gens, 2)
}

// slowPins blocks the first pin write until released
type slowPins struct {
	*sqlite.Repository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowPins) SavePin(ctx context.Context, scope, nodeID string, pos domain.Vec3) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.Repository.SavePin(ctx, scope, nodeID, pos)
}

func TestSession_ReloadDuringSlowPinWrite(t *testing.T) {
	base, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { base.Close() })
	repo := &slowPins{Repository: base, entered: make(chan struct{}), release: make(chan struct{})}

	h := newHarness(t, Options{Repository: repo})
	h.load(t)

	at := domain.Vec3{X: 1, Y: 2, Z: 3}
	require.NoError(t, h.svc.Submit(frame.Interaction{Kind: frame.Pin, NodeID: "cfg", Position: &at}))

	frameDone := make(chan struct{})
	go func() {
		defer close(frameDone)
		h.svc.Frame(time.Unix(2000, 0))
	}()
	<-repo.entered

	loaded := make(chan error, 1)
	go func() {
		_, err := h.svc.LoadRaw(context.Background(), []byte(samplePayload), SourceUpload)
		loaded <- err
	}()

	// the new generation is readable while the old frame is still writing
	require.Eventually(t, func() bool {
		st := h.svc.Status()
		return st.Generation != nil && st.Generation.Seq == 2
	}, 2*time.Second, time.Millisecond)
	_, err = h.svc.View()
	require.NoError(t, err)
	select {
	case <-loaded:
		t.Fatal("load returned before the old generation stopped")
	default:
	}

	close(repo.release)
	<-frameDone
	require.NoError(t, <-loaded)

	stored, err := base.Pins(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, at, stored["cfg"])
}

func TestSession_UnpinOutsideGraph(t *testing.T) {
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	ctx := context.Background()

	h := newHarness(t, Options{Repository: repo})
	require.NoError(t, repo.SavePin(ctx, "", "gone", domain.Vec3{X: 1}))

	assert.NoError(t, h.svc.Unpin(ctx, "gone"))
	assert.ErrorIs(t, h.svc.Unpin(ctx, "gone"), ErrUnknownNode)

	bare := newHarness(t, Options{})
	assert.ErrorIs(t, bare.svc.Unpin(ctx, "gone"), ErrUnknownNode)
}

func TestSession_Export(t *testing.T) {
	h := newHarness(t, Options{})
	h.load(t)
	h.frames(5)

	var buf bytes.Buffer
	require.NoError(t, h.svc.Export(&buf, "json"))

	var snap struct {
		Session string `json:"session"`
		Nodes   []struct {
			ID string `json:"id"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &snap))
	assert.Equal(t, h.svc.ID(), snap.Session)
	assert.Len(t, snap.Nodes, 3)

	buf.Reset()
	require.NoError(t, h.svc.Export(&buf, "yaml"))
	assert.Contains(t, buf.String(), "main")

	assert.Error(t, h.svc.Export(&buf, "xml"))
}

func TestSession_RunStartsLoops(t *testing.T) {
	h := newHarness(t, Options{Frame: frame.Options{FrameRate: 240}})
	h.load(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.svc.Status().Converged
	}, 5*time.Second, 10*time.Millisecond)

	// a generation loaded while running starts on its own
	h.load(t)
	require.Eventually(t, func() bool {
		st := h.svc.Status()
		return st.Generation.Seq == 2 && st.Ticks > 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
