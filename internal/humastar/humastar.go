// Package humastar bridges Huma (REST/OpenAPI) with Datastar (SSE/hypermedia).
//
// It provides:
//   - SSE: Huma streaming to the Datastar SSE protocol via [SSE] and [NewSSE]
//   - Signals: Datastar signal parsing via [Signals] and [SignalsInput]
//   - Handler: embeddable base for fragment-rendering SSE handlers via [Handler]
//   - Links: RFC 8288 Link headers via [Links]
//
// Usage:
//
//	type ViewerHandler struct {
//	    humastar.Handler
//	}
//
//	func (h *ViewerHandler) Update(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Replace(h.Render("tile-status", view), "#tile-status")
//	    }), nil
//	}
package humastar

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/kochizu/internal/templates"
)

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

// Handler is an embeddable base for Huma handlers that produce Datastar SSE
// responses from rendered fragments.
type Handler struct {
	Renderer *templates.Renderer
	Logger   *slog.Logger // nil means slog.Default()
}

func (h *Handler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Stream returns a Huma StreamResponse that calls fn with a ready SSE helper.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			fn(NewSSE(humaCtx))
		},
	}
}

// Render renders a named fragment. Failures are logged and yield "".
func (h *Handler) Render(name string, data any) string {
	s, err := h.Renderer.Render(name, data)
	if err != nil {
		h.log().Warn("fragment_render_error", "template", name, "err", err)
		return ""
	}
	return s
}

// RenderList renders items with a named template, or the empty state if none.
func (h *Handler) RenderList(tmpl string, items []any, emptyMsg string) string {
	var buf bytes.Buffer
	if len(items) == 0 {
		if err := h.Renderer.RenderToBuffer(&buf, "empty-state", map[string]string{"Message": emptyMsg}); err != nil {
			h.log().Warn("fragment_render_error", "template", "empty-state", "err", err)
		}
		return buf.String()
	}
	for _, item := range items {
		if err := h.Renderer.RenderToBuffer(&buf, tmpl, item); err != nil {
			h.log().Warn("fragment_render_error", "template", tmpl, "err", err)
		}
	}
	return buf.String()
}

// ---------------------------------------------------------------------------
// SSE
// ---------------------------------------------------------------------------

// SSE wraps a Datastar SSE generator with convenience methods for common
// patterns: error signals, inner/outer element patching.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE creates a Datastar SSE helper from a Huma streaming context.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch sends HTML to replace inner content at a CSS selector.
func (s SSE) Patch(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
	)
}

// Replace replaces outer HTML at a CSS selector.
func (s SSE) Replace(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeOuter(),
	)
}

// Error sends an error signal to the UI.
func (s SSE) Error(msg string) {
	s.MarshalAndPatchSignals(map[string]any{"error": msg})
}

// Signals sends arbitrary signals to the UI.
func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// Signals provides type-safe access to Datastar signal values.
// Datastar sends all signals as a flat JSON object in the request body.
type Signals map[string]any

// ParseSignals parses Datastar signals from a raw request body.
func ParseSignals(body []byte) (Signals, error) {
	var signals Signals
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// String returns a string signal value, or empty string if not found.
func (s Signals) String(key string) string {
	if v, ok := s[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

// Int returns an int signal value, or 0 if not found. Numeric strings, as
// sent by range inputs, are accepted.
func (s Signals) Int(key string) int {
	return int(s.Float(key))
}

// Float returns a float64 signal value, or 0 if not found.
func (s Signals) Float(key string) float64 {
	switch n := s[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		var f float64
		if err := json.Unmarshal([]byte(n), &f); err == nil {
			return f
		}
	}
	return 0
}

// Has returns true if the signal key exists (even if zero-valued).
func (s Signals) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// ---------------------------------------------------------------------------
// Input types
// ---------------------------------------------------------------------------

// SignalsInput is an input struct for handlers that receive Datastar signals.
type SignalsInput struct {
	RawBody []byte
}

// MustParse parses signals or returns a Huma 400 error.
func (i *SignalsInput) MustParse() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return signals, nil
}
