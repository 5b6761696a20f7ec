package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"codescape/internal/analysis"
	"codescape/internal/camera"
	"codescape/internal/codec"
	"codescape/internal/domain"
	"codescape/internal/frame"
	"codescape/internal/layout"
	"codescape/internal/metrics"
	"codescape/internal/repository"
	"codescape/internal/view"
)

var tracer = otel.Tracer("codescape.service")

var (
	// ErrNoGraph is returned by operations that need a loaded graph
	ErrNoGraph = errors.New("no graph loaded")
	// ErrNoAnalyzer is returned by Analyze when no analysis service is configured
	ErrNoAnalyzer = errors.New("analysis service not configured")
	// ErrUnknownNode is returned when a node id is neither in the graph nor pinned
	ErrUnknownNode = errors.New("unknown node")
)

// Payload sources
const (
	SourceAnalysis = "analysis"
	SourceMessage  = "message"
	SourceFile     = "file"
	SourceUpload   = "upload"
)

// Analyzer runs code analysis for a project
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*domain.Payload, error)
}

// Options configures a SessionService
type Options struct {
	Params layout.Params
	Frame  frame.Options
	// Scope names the project for payloads that do not carry one
	Scope string

	PositionsPerSecond float64
	Burst              int

	// Repository and Analyzer are optional
	Repository repository.Repository
	Analyzer   Analyzer
	Logger     *slog.Logger
}

// GenerationInfo describes the loaded generation
type GenerationInfo struct {
	ID          string             `json:"id"`
	Seq         int                `json:"seq"`
	Scope       string             `json:"scope,omitempty"`
	Source      string             `json:"source"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	Stats       domain.Stats       `json:"stats"`
	Report      domain.BuildReport `json:"report"`
	LoadedAt    time.Time          `json:"loaded_at"`
}

type generation struct {
	info  GenerationInfo
	graph *domain.Graph
	coord *frame.Coordinator
}

// SessionService owns the current graph generation
type SessionService struct {
	id     string
	bus    *EventBus
	opts   Options
	logger *slog.Logger

	// mu serializes generation swaps
	mu        sync.Mutex
	runCtx    context.Context
	gen       *generation
	seq       int
	lastError string
}

// NewSessionService creates a session with no graph loaded
func NewSessionService(bus *EventBus, opts Options) *SessionService {
	if bus == nil {
		bus = NewEventBus()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PositionsPerSecond <= 0 {
		opts.PositionsPerSecond = 30
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	id := uuid.NewString()
	return &SessionService{
		id:     id,
		bus:    bus,
		opts:   opts,
		logger: logger.With("component", "session", "session", id[:8]),
	}
}

// ID returns the session id
func (s *SessionService) ID() string { return s.id }

// Run starts the frame loop of the current and every later generation and
// blocks until ctx is done. The current coordinator is stopped on return.
func (s *SessionService) Run(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	if s.gen != nil {
		if err := s.gen.coord.Start(ctx); err != nil {
			s.logger.Warn("failed to start frame loop", "error", err)
		}
	}
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	s.runCtx = nil
	s.mu.Unlock()
	s.Close()
	return nil
}

// Close stops the current frame loop
func (s *SessionService) Close() {
	if gen := s.current(); gen != nil {
		gen.coord.Stop()
	}
}

// Load builds a new generation from p and makes it current
func (s *SessionService) Load(ctx context.Context, p *domain.Payload, source, scope string) (*GenerationInfo, error) {
	if p == nil {
		p = &domain.Payload{}
	}
	if scope == "" {
		scope = s.opts.Scope
	}

	_, span := tracer.Start(ctx, "GraphModel.Build")
	g, report := domain.Build(p)
	span.SetAttributes(
		attribute.String("source", source),
		attribute.Int("nodes", len(g.Nodes)),
		attribute.Int("edges", len(g.Edges)),
		attribute.Int("skipped_entries", report.SkippedEntries),
	)
	span.End()

	if !report.Clean() {
		s.logger.Warn("payload partially skipped",
			"source", source,
			"sections", report.SkippedSections,
			"entries", report.SkippedEntries,
			"duplicates", report.DuplicateIDs,
			"dangling_edges", report.DroppedEdges)
	}

	var pins map[string]domain.Vec3
	if repo := s.opts.Repository; repo != nil {
		var err error
		if pins, err = repo.Pins(ctx, scope); err != nil {
			s.logger.Warn("failed to load pins", "scope", scope, "error", err)
		}
		rec := &repository.Generation{
			Scope:       scope,
			Source:      source,
			Fingerprint: g.Fingerprint,
			Nodes:       len(g.Nodes),
			Edges:       len(g.Edges),
			Report:      report,
		}
		if err := repo.RecordGeneration(ctx, rec); err != nil {
			s.logger.Warn("failed to record generation", "error", err)
		}
	}

	s.mu.Lock()
	s.seq++
	info := GenerationInfo{
		ID:          uuid.NewString(),
		Seq:         s.seq,
		Scope:       scope,
		Source:      source,
		Fingerprint: g.Fingerprint,
		Stats:       g.Stats(),
		Report:      report,
		LoadedAt:    time.Now(),
	}

	fopts := s.opts.Frame
	fopts.Pins = pins
	fopts.Logger = s.logger
	var previous *frame.Coordinator
	if s.gen != nil {
		// the type filter survives reloads
		fopts.EnabledTypes = s.gen.coord.State().Enabled
		previous = s.gen.coord
	}

	obs := newSessionObserver(s.bus, s.logger, s.opts.Repository, info.ID, scope, s.opts.PositionsPerSecond, s.opts.Burst)
	coord := frame.New(g, s.opts.Params, obs, fopts)
	s.gen = &generation{info: info, graph: g, coord: coord}
	s.lastError = ""
	runCtx := s.runCtx
	s.mu.Unlock()

	// Stop waits out an in-flight frame; it must not hold s.mu
	if previous != nil {
		previous.Stop()
	}
	if runCtx != nil {
		if err := coord.Start(runCtx); err != nil && !errors.Is(err, frame.ErrStopped) {
			s.logger.Warn("failed to start frame loop", "error", err)
		}
	}

	metrics.GraphNodes.Set(float64(len(g.Nodes)))
	metrics.GraphEdges.Set(float64(len(g.Edges)))
	metrics.PayloadsTotal.WithLabelValues(source, "loaded").Inc()

	s.logger.Info("graph loaded",
		"generation", info.Seq,
		"source", source,
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"pins", len(pins))
	s.bus.Publish(Event{Type: EventGraphLoaded, Payload: info})

	return &info, nil
}

// LoadRaw decodes a JSON payload and loads it. Only invalid JSON fails;
// malformed sections are skipped.
func (s *SessionService) LoadRaw(ctx context.Context, raw []byte, source string) (*GenerationInfo, error) {
	p, err := codec.DecodePayload(raw)
	if err != nil {
		metrics.PayloadsTotal.WithLabelValues(source, "invalid").Inc()
		return nil, err
	}
	return s.Load(ctx, p, source, "")
}

// Import parses a payload in the named format and loads it
func (s *SessionService) Import(ctx context.Context, r io.Reader, format, source string) (*GenerationInfo, error) {
	p, err := codec.ImporterFor(format).Parse(r)
	if err != nil {
		metrics.PayloadsTotal.WithLabelValues(source, "invalid").Inc()
		return nil, err
	}
	return s.Load(ctx, p, source, "")
}

// HandleMessage applies one progress message. Messages carrying a payload
// load a new generation and return its info; the rest return nil.
func (s *SessionService) HandleMessage(ctx context.Context, raw []byte) (*GenerationInfo, error) {
	msg, err := analysis.DecodeMessage(raw)
	if err != nil {
		return nil, err
	}

	switch {
	case msg.CarriesPayload():
		p, err := msg.Payload()
		if err != nil {
			metrics.PayloadsTotal.WithLabelValues(SourceMessage, "invalid").Inc()
			return nil, err
		}
		return s.Load(ctx, p, SourceMessage, "")
	case msg.IsError():
		s.reportError(msg.Message, nil)
		return nil, nil
	default:
		s.logger.Debug("progress message", "command", msg.Command)
		return nil, nil
	}
}

// Analyze requests an analysis and loads the result
func (s *SessionService) Analyze(ctx context.Context, req analysis.Request) (*GenerationInfo, error) {
	if s.opts.Analyzer == nil {
		return nil, ErrNoAnalyzer
	}

	s.bus.Publish(Event{Type: EventAnalysisStarted, Payload: req})

	p, err := s.opts.Analyzer.Analyze(ctx, req)
	if err != nil {
		var needs *analysis.NeedsEntrypointError
		if errors.As(err, &needs) {
			s.reportError(needs.Message, needs.Options)
		} else {
			s.reportError(err.Error(), nil)
		}
		return nil, err
	}
	return s.Load(ctx, p, SourceAnalysis, req.ProjectDir)
}

// AnalysisError is the payload of analysis_error events
type AnalysisError struct {
	Message string   `json:"message"`
	Options []string `json:"options,omitempty"`
}

func (s *SessionService) reportError(message string, options []string) {
	s.mu.Lock()
	s.lastError = message
	s.mu.Unlock()

	s.logger.Warn("analysis failed", "message", message)
	s.bus.Publish(Event{Type: EventAnalysisError, Payload: AnalysisError{Message: message, Options: options}})
}

func (s *SessionService) current() *generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Submit queues an interaction for the next frame
func (s *SessionService) Submit(it frame.Interaction) error {
	gen := s.current()
	if gen == nil {
		return ErrNoGraph
	}
	return gen.coord.Submit(it)
}

// ViewNode is a visible node with its live layout state
type ViewNode struct {
	domain.Node
	Fixed       bool `json:"fixed"`
	Pinned      bool `json:"pinned"`
	Highlighted bool `json:"highlighted"`
}

// GraphView is the filtered graph as of the last frame
type GraphView struct {
	Generation GenerationInfo    `json:"generation"`
	Nodes      []ViewNode        `json:"nodes"`
	Edges      []domain.Edge     `json:"edges"`
	Selection  view.Selection    `json:"selection"`
	Highlight  []string          `json:"highlight"`
	Enabled    []domain.NodeType `json:"enabled_types"`
	Camera     camera.Viewpoint  `json:"camera"`
	Alpha      float64           `json:"alpha"`
	Converged  bool              `json:"converged"`
}

// View returns the visible nodes and edges with their current positions
func (s *SessionService) View() (*GraphView, error) {
	gen := s.current()
	if gen == nil {
		return nil, ErrNoGraph
	}

	st := gen.coord.State()
	visible := gen.coord.Visible()

	highlight := make(map[string]bool, len(st.Highlight))
	for _, id := range st.Highlight {
		highlight[id] = true
	}
	pinned := make(map[string]bool, len(st.Pinned))
	for _, id := range st.Pinned {
		pinned[id] = true
	}

	nodes := make([]ViewNode, 0, len(visible.Nodes))
	for _, n := range visible.Nodes {
		if pos, ok := st.Positions[n.ID]; ok {
			n.Position = pos
		}
		nodes = append(nodes, ViewNode{
			Node:        n,
			Fixed:       st.Fixed[n.ID],
			Pinned:      pinned[n.ID],
			Highlighted: highlight[n.ID],
		})
	}

	return &GraphView{
		Generation: gen.info,
		Nodes:      nodes,
		Edges:      visible.Edges,
		Selection:  st.Selection,
		Highlight:  st.Highlight,
		Enabled:    st.Enabled,
		Camera:     st.Camera,
		Alpha:      st.Alpha,
		Converged:  st.Converged,
	}, nil
}

// Positions returns the positions of visible nodes
func (s *SessionService) Positions() (map[string]domain.Vec3, error) {
	gen := s.current()
	if gen == nil {
		return nil, ErrNoGraph
	}
	st := gen.coord.State()
	visible := gen.coord.Visible()

	out := make(map[string]domain.Vec3, len(visible.Nodes))
	for id := range visible.Visible {
		if pos, ok := st.Positions[id]; ok {
			out[id] = pos
		}
	}
	return out, nil
}

// Export writes a layout snapshot of the whole graph in the named format
func (s *SessionService) Export(w io.Writer, format string) error {
	exp, err := codec.ExporterFor(format)
	if err != nil {
		return err
	}
	gen := s.current()
	if gen == nil {
		return ErrNoGraph
	}

	st := gen.coord.State()
	snap := codec.NewSnapshot(gen.graph, st.Positions, st.Fixed)
	snap.Session = s.id
	snap.Converged = st.Converged
	snap.Alpha = st.Alpha
	return exp.Export(snap, w)
}

// Pin is a pinned node position
type Pin struct {
	NodeID   string      `json:"node_id"`
	Position domain.Vec3 `json:"position"`
}

// Pins lists the pins of the current scope sorted by node id. Without a
// repository only the current generation's pins are known.
func (s *SessionService) Pins(ctx context.Context) ([]Pin, error) {
	gen := s.current()
	scope := s.opts.Scope
	if gen != nil {
		scope = gen.info.Scope
	}

	positions := map[string]domain.Vec3{}
	if repo := s.opts.Repository; repo != nil {
		stored, err := repo.Pins(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to list pins: %w", err)
		}
		positions = stored
	}
	if gen != nil {
		st := gen.coord.State()
		for _, id := range st.Pinned {
			positions[id] = st.Positions[id]
		}
	}

	pins := make([]Pin, 0, len(positions))
	for id, pos := range positions {
		pins = append(pins, Pin{NodeID: id, Position: pos})
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i].NodeID < pins[j].NodeID })
	return pins, nil
}

// Unpin releases a pin. Nodes of the current graph are released at the next
// frame; pins of nodes outside it are removed from the store directly.
func (s *SessionService) Unpin(ctx context.Context, nodeID string) error {
	gen := s.current()
	if gen != nil && gen.graph.Has(nodeID) {
		return gen.coord.Submit(frame.Interaction{Kind: frame.Unpin, NodeID: nodeID})
	}

	repo := s.opts.Repository
	if repo == nil {
		return ErrUnknownNode
	}
	scope := s.opts.Scope
	if gen != nil {
		scope = gen.info.Scope
	}
	deleted, err := repo.DeletePin(ctx, scope, nodeID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrUnknownNode
	}
	return nil
}

// Generations returns the recorded load history, newest first
func (s *SessionService) Generations(ctx context.Context, limit int) ([]repository.Generation, error) {
	if s.opts.Repository == nil {
		return []repository.Generation{}, nil
	}
	return s.opts.Repository.Generations(ctx, limit)
}

// Status summarises the session for health checks
type Status struct {
	Session    string          `json:"session"`
	Generation *GenerationInfo `json:"generation,omitempty"`
	Converged  bool            `json:"converged"`
	Ticks      int             `json:"ticks"`
	Panics     int64           `json:"observer_panics"`
	LastError  string          `json:"last_error,omitempty"`
}

// Status returns the current session status
func (s *SessionService) Status() Status {
	s.mu.Lock()
	gen := s.gen
	st := Status{Session: s.id, LastError: s.lastError}
	s.mu.Unlock()

	if gen != nil {
		info := gen.info
		st.Generation = &info
		state := gen.coord.State()
		st.Converged = state.Converged
		st.Ticks = state.Ticks
		st.Panics = gen.coord.Panics()
	}
	return st
}

// Frame advances the current generation by one frame. It is meant for
// headless use and tests; Run drives frames on its own.
func (s *SessionService) Frame(now time.Time) bool {
	gen := s.current()
	if gen == nil {
		return false
	}
	return gen.coord.Frame(now)
}
