// Package analysis talks to the external analysis service and decodes the
// progress messages it relays.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"codescape/internal/codec"
	"codescape/internal/domain"
	"codescape/internal/metrics"
)

var tracer = otel.Tracer("codescape.analysis")

var (
	// ErrNeedsEntrypoint is matched by *NeedsEntrypointError
	ErrNeedsEntrypoint = errors.New("analysis needs an entrypoint")
	// ErrAnalysisFailed is returned when the service reports status "error"
	ErrAnalysisFailed = errors.New("analysis failed")
)

const (
	DefaultTimeout = 2 * time.Minute
	maxBodyBytes   = 64 << 20
)

// Request is the body of POST /analyze
type Request struct {
	ProjectDir string `json:"project_dir" validate:"required"`
	Entrypoint string `json:"entrypoint,omitempty"`
}

// NeedsEntrypointError carries the entrypoint candidates the service offered
type NeedsEntrypointError struct {
	Message string
	Options []string
}

func (e *NeedsEntrypointError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", ErrNeedsEntrypoint, e.Message)
	}
	return ErrNeedsEntrypoint.Error()
}

func (e *NeedsEntrypointError) Is(target error) bool {
	return target == ErrNeedsEntrypoint
}

// TransportError is a failed round trip: the request never completed or the
// service answered with a non-2xx status
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("analysis transport: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("analysis service returned %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("analysis service returned %d", e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// envelope is the service's response shape
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Options []string        `json:"options"`
}

// Options configures a Client
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the analysis service. Concurrent requests for the same
// project and entrypoint share one round trip.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	validate *validator.Validate
	flight   singleflight.Group
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     hc,
		logger:   logger.With("component", "analysis"),
		validate: validator.New(),
	}
}

// Analyze requests an analysis of req.ProjectDir. There is no retry: a
// TransportError is final for this call.
func (c *Client) Analyze(ctx context.Context, req Request) (*domain.Payload, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid analysis request: %w", err)
	}

	key := req.ProjectDir + "\x00" + req.Entrypoint
	ch := c.flight.DoChan(key, func() (any, error) {
		return c.analyze(context.WithoutCancel(ctx), req)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("shared in-flight analysis", "project_dir", req.ProjectDir)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Payload), nil
	}
}

func (c *Client) analyze(ctx context.Context, req Request) (*domain.Payload, error) {
	ctx, span := tracer.Start(ctx, "analysis.Analyze",
		trace.WithAttributes(
			attribute.String("project_dir", req.ProjectDir),
			attribute.String("entrypoint", req.Entrypoint),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() { metrics.AnalysisDuration.Observe(time.Since(start).Seconds()) }()

	payload, err := c.roundTrip(ctx, req)
	if err != nil && !errors.Is(err, ErrNeedsEntrypoint) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		c.logger.Warn("analysis failed", "project_dir", req.ProjectDir, "error", err)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("fingerprint", payload.Fingerprint))
	c.logger.Info("analysis complete",
		"project_dir", req.ProjectDir,
		"functions", len(payload.Functions),
		"variables", len(payload.Variables),
		"duration", time.Since(start),
	)
	return payload, nil
}

func (c *Client) roundTrip(ctx context.Context, req Request) (*domain.Payload, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope
		_ = json.Unmarshal(raw, &env)
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: msg}
	}

	return decodeResponse(raw)
}

// decodeResponse unwraps the status envelope, accepting a bare payload too
func decodeResponse(raw []byte) (*domain.Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return codec.DecodePayload(raw)
	}

	switch env.Status {
	case "success":
		if len(env.Data) == 0 {
			return codec.DecodePayload([]byte("{}"))
		}
		return codec.DecodePayload(env.Data)
	case "needs_entrypoint":
		return nil, &NeedsEntrypointError{Message: env.Message, Options: env.Options}
	case "error":
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return nil, fmt.Errorf("%w: %s", ErrAnalysisFailed, msg)
	}
	return codec.DecodePayload(raw)
}
