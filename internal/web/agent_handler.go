package web

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pocketomega/sunny-agent/internal/ambient"
	"github.com/pocketomega/sunny-agent/internal/intent"
	"github.com/pocketomega/sunny-agent/internal/router"
	"github.com/pocketomega/sunny-agent/internal/stream"
)

const (
	maxRequestBody  = 1 << 20 // 1MB max request body
	maxMessageRunes = 8000    // max user message length in runes
)

// agentTimeout is the global timeout for one execution call. Configurable
// via AGENT_TIMEOUT_MINUTES (default 10, clamped to [1,30]) — mirrors the
// teacher's own loadAgentTimeout idiom.
var agentTimeout = loadAgentTimeout()

func loadAgentTimeout() time.Duration {
	const defaultMinutes = 10
	v := os.Getenv("AGENT_TIMEOUT_MINUTES")
	if v == "" {
		return time.Duration(defaultMinutes) * time.Minute
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 30 {
		log.Printf("[Config] WARNING: invalid AGENT_TIMEOUT_MINUTES=%q (must be 1-30), using default %d", v, defaultMinutes)
		return time.Duration(defaultMinutes) * time.Minute
	}
	return time.Duration(n) * time.Minute
}

// AgentHandler bridges one HTTP request to the ExecutionRouter and streams
// its stream.Events back to the client over SSE.
type AgentHandler struct {
	router *router.Router
}

// NewAgentHandler creates an AgentHandler bound to rt.
func NewAgentHandler(rt *router.Router) *AgentHandler {
	return &AgentHandler{router: rt}
}

// agentRequest is the JSON-or-form shape accepted from the frontend. Route
// classification (complexity, confidence, history) is an upstream concern —
// this handler only has to forward whatever the caller supplied.
type agentRequest struct {
	Message   string
	SessionID string
	Deep      bool
}

func parseAgentRequest(r *http.Request) agentRequest {
	return agentRequest{
		Message:   strings.TrimSpace(r.FormValue("message")),
		SessionID: strings.TrimSpace(r.FormValue("session_id")),
		Deep:      r.FormValue("deep") == "true" || r.FormValue("deep") == "1",
	}
}

// HandleAgent processes one execution request using SSE streaming.
func (h *AgentHandler) HandleAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	req := parseAgentRequest(r)
	if req.Message == "" {
		http.Error(w, "Empty message", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if len([]rune(req.Message)) > maxMessageRunes {
		http.Error(w, "Message too long", http.StatusRequestEntityTooLarge)
		return
	}

	log.Printf("[Agent] Received: %s", req.Message)
	startTime := time.Now()

	sse := newSSEWriter(w, r)
	if sse == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), agentTimeout)
	defer cancel()
	ctx, _ = ambient.WithSessionID(ctx, req.SessionID)

	sse.Send("status", map[string]string{"message": "正在分析问题..."})

	route := intent.RouteStandard
	if req.Deep {
		route = intent.RouteDeep
	}
	in := intent.Result{
		Route: route, Primary: req.Message, RawInput: req.Message, SessionID: req.SessionID,
	}

	ch := make(chan stream.Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sse.forwardEvents(ch)
	}()

	result, err := h.router.ExecuteStream(ctx, in, stream.ChannelEmitter(ch))
	close(ch)
	<-done

	if err != nil {
		log.Printf("[Agent] execution error: %v", err)
		sse.Send("error", map[string]string{"message": err.Error()})
		return
	}

	reply := strings.TrimSpace(result.Reply)
	if reply == "" {
		reply = "抱歉，未能生成回答。请重试。"
	}

	sse.Send("done", sseDoneEvent{
		Solution: reply,
		Source:   result.Source,
		Stats: &agentStats{
			Steps:      result.Iterations,
			ToolCalls:  len(result.ToolCalls),
			ElapsedMs:  time.Since(startTime).Milliseconds(),
			TokensUsed: result.TokensUsed,
		},
		IsDegraded: result.IsDegraded,
	})
	log.Printf("[Agent] Done: source=%s iterations=%d reply %d chars", result.Source, result.Iterations, len(reply))
}
