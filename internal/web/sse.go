package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/pocketomega/sunny-agent/internal/stream"
)

// ── SSE Writer ──

// sseWriter wraps an http.ResponseWriter with SSE event writing and
// client disconnect detection.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
}

// newSSEWriter prepares SSE headers and returns a writer.
// Returns nil if streaming is not supported.
func newSSEWriter(w http.ResponseWriter, r *http.Request) *sseWriter {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &sseWriter{w: w, flusher: flusher, ctx: r.Context()}
}

// Send writes an SSE event. Returns false if the client has disconnected.
func (s *sseWriter) Send(event string, data interface{}) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		log.Printf("[SSE] JSON marshal error: %v", err)
		return false
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, string(jsonBytes)); err != nil {
		log.Printf("[SSE] Write error (client disconnected?): %v", err)
		return false
	}
	s.flusher.Flush()
	return true
}

// forwardEvents drains ch onto the SSE writer, translating each
// stream.Event's Type into the matching SSE event name, until the channel
// is closed by the engine goroutine. Used by AgentHandler so the
// fasttrack/react engines' ExecuteStream never needs to know anything
// about HTTP or SSE framing.
func (s *sseWriter) forwardEvents(ch <-chan stream.Event) {
	for ev := range ch {
		s.Send(string(ev.Type), ev)
	}
}

// agentStats holds execution statistics returned in the done event.
type agentStats struct {
	Steps      int   `json:"steps"`
	ToolCalls  int   `json:"tool_calls"`
	ElapsedMs  int64 `json:"elapsed_ms"`
	TokensUsed int   `json:"tokens_used"`
}

type sseDoneEvent struct {
	Solution   string      `json:"solution"`
	Stats      *agentStats `json:"stats,omitempty"`
	Source     string      `json:"source"`
	IsDegraded bool        `json:"is_degraded,omitempty"`
}
