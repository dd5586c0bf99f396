package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laredonunes/ecoquest-api/clock"
	"github.com/laredonunes/ecoquest-api/config"
	"github.com/laredonunes/ecoquest-api/engine"
	"github.com/laredonunes/ecoquest-api/httpapi"
	"github.com/laredonunes/ecoquest-api/llm"
	"github.com/laredonunes/ecoquest-api/ratelimit"
	"github.com/laredonunes/ecoquest-api/scenario"
)

// stubCompleter returns one canned reply for every completion call.
type stubCompleter struct {
	reply string
	err   error
}

func (c *stubCompleter) Complete(ctx context.Context, messages []llm.Message, maxTokens int) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

const startReply = `{"scene":"Fumaça no horizonte.","options":["Avançar","Fotografar","Recuar"],"clue":"Fogo sem origem natural","danger":"médio","phase":"descoberta"}`

// openInbound admits everything, for tests that are not about limits.
func openInbound(clk clock.Clock) *ratelimit.Inbound {
	return ratelimit.NewInbound(ratelimit.InboundConfig{
		MaxRequests:  1000,
		Window:       time.Minute,
		Cooldown:     0,
		IdleEviction: time.Hour,
	}, ratelimit.WithInboundClock(clk))
}

func newHandler(t *testing.T, c engine.Completer, inbound *ratelimit.Inbound, opts ...httpapi.Option) http.Handler {
	t.Helper()
	fake := clock.Fake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	if inbound == nil {
		inbound = openInbound(fake)
	}
	eng := engine.New(engine.DefaultConfig(), c, engine.WithClock(fake))
	registry := scenario.NewRegistry(scenario.Builtin()...)
	cfg := config.ServerConfig{Addr: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second}
	opts = append([]httpapi.Option{httpapi.WithClock(fake)}, opts...)
	return httpapi.New(cfg, eng, registry, inbound, opts...).Handler()
}

func doRequest(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestDocsEndpoint(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil)

	rr := doRequest(h, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "ECO QUEST - API de RPG Ambiental", body["nome"])
	assert.Equal(t, "2.0.0", body["versao"])

	cenarios := body["cenarios"].(map[string]any)
	require.Len(t, cenarios, 3)
	floresta := cenarios["floresta"].(map[string]any)
	assert.Equal(t, "Operação Cinzas da Floresta", floresta["titulo"])
	assert.Equal(t, "🔥", floresta["icon"])
	assert.Equal(t, "/api/floresta", floresta["endpoint"])

	gerais := body["endpoints_gerais"].(map[string]any)
	assert.Equal(t, "Health check", gerais["GET /health"])

	exemplo := body["exemplo_uso"].(map[string]any)
	iniciar := exemplo["iniciar"].(map[string]any)
	assert.Equal(t, "start", iniciar["body"].(map[string]any)["action"])
}

func TestHealthEndpoint(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil, httpapi.WithGroqConfigured(true))

	rr := doRequest(h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2025-06-01T12:00:00Z", body["timestamp"])
	assert.Equal(t, true, body["groq_api_configured"])
	assert.Equal(t, float64(3), body["cenarios_disponiveis"])
}

func TestListScenariosEndpoint(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil)

	rr := doRequest(h, http.MethodGet, "/api/cenarios", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(3), body["total"])

	cenarios := body["cenarios"].([]any)
	require.Len(t, cenarios, 3)
	first := cenarios[0].(map[string]any)
	assert.Equal(t, "floresta", first["id"])
	assert.Equal(t, "Operação Cinzas da Floresta", first["titulo"])
	assert.Equal(t, "/api/floresta", first["endpoint"])
}

func TestStartTurn(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil)

	rr := doRequest(h, http.MethodPost, "/api/floresta", `{"action":"start"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "OPERAÇÃO CINZAS DA FLORESTA", body["operation"])
	assert.Equal(t, "CAPÍTULO 1: O CHAMADO DAS CINZAS", body["chapter"])
	assert.Equal(t, "2025-06-01T12:00:00Z", body["timestamp"])
	assert.NotContains(t, body, "player_action")
	assert.NotContains(t, body, "progress")

	narrative := body["narrative"].(map[string]any)
	assert.Equal(t, "Fumaça no horizonte.", narrative["panel_description"])
	assert.Len(t, narrative["inner_voice_options"].([]any), 3)
	assert.Equal(t, "Fogo sem origem natural", narrative["evidence_discovered"])
	assert.Equal(t, "médio", narrative["danger_level"])

	state := body["game_state"].(map[string]any)
	assert.Equal(t, "descoberta", state["phase"])
	assert.Equal(t, float64(25), state["danger_meter"])
	assert.Equal(t, []any{"Fogo sem origem natural"}, state["evidence_collected"])
	assert.Len(t, state["conversation_history"].([]any), 2)
}

func TestContinueTurn(t *testing.T) {
	reply := `{"scene":"Cortes recentes nos troncos.","options":["Seguir","Documentar","Recuar"],"clue":"Marcas de motosserra","danger":"alto","phase":"investigacao_inicial"}`
	h := newHandler(t, &stubCompleter{reply: reply}, nil)

	body := `{
		"action": "continue",
		"player_decision": "Seguir as marcas",
		"game_state": {
			"phase": "descoberta",
			"evidence_collected": ["Fogo sem origem natural"],
			"danger_meter": 25,
			"conversation_history": [
				{"role": "user", "content": "abertura"},
				{"role": "assistant", "content": "{}"}
			]
		}
	}`
	rr := doRequest(h, http.MethodPost, "/api/floresta", body, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	out := decodeBody(t, rr)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "Seguir as marcas", out["player_action"])
	assert.Equal(t, "2 evidências", out["progress"])
	assert.Equal(t, "CAPÍTULO 2: RASTROS NA MATA", out["chapter"])

	narrative := out["narrative"].(map[string]any)
	assert.Equal(t, "Marcas de motosserra", narrative["evidence_discovered"])

	state := out["game_state"].(map[string]any)
	assert.Equal(t, "investigacao_inicial", state["phase"])
	assert.Equal(t, float64(70), state["danger_meter"])
	assert.Equal(t, []any{"Fogo sem origem natural", "Marcas de motosserra"}, state["evidence_collected"])
	assert.Len(t, state["conversation_history"].([]any), 4)
}

func TestTurnWrongContentType(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/floresta", strings.NewReader(`{"action":"start"}`))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "INVALID_CONTENT_TYPE", body["code"])
	assert.Equal(t, "Content-Type deve ser application/json", body["error"])
}

func TestTurnMissingAction(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil)

	rr := doRequest(h, http.MethodPost, "/api/floresta", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "MISSING_ACTION", body["code"])
	assert.Equal(t, []any{"start", "continue"}, body["valid_actions"])
}

func TestTurnInvalidAction(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil)

	rr := doRequest(h, http.MethodPost, "/api/floresta", `{"action":"jump"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "INVALID_ACTION", body["code"])
	assert.Equal(t, "Action 'jump' inválida", body["error"])
	assert.Equal(t, []any{"start", "continue"}, body["valid_actions"])
}

func TestTurnContinueMissingFields(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil)

	rr := doRequest(h, http.MethodPost, "/api/floresta", `{"action":"continue","player_decision":"x"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "MISSING_FIELDS", body["code"])
	assert.Equal(t, "Campos 'player_decision' e 'game_state' são obrigatórios", body["error"])
}

func TestTurnUnknownScenario(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil)

	rr := doRequest(h, http.MethodPost, "/api/deserto", `{"action":"start"}`, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Contains(t, body["endpoints_disponiveis"], "POST /api/floresta")
	assert.Contains(t, body["endpoints_disponiveis"], "GET /health")
}

func TestTurnMethodNotAllowed(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil)

	rr := doRequest(h, http.MethodGet, "/api/floresta", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", decodeBody(t, rr)["code"])

	rr = doRequest(h, http.MethodPost, "/health", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestUnknownPathReturnsJSONNotFound(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil)

	rr := doRequest(h, http.MethodGet, "/nada", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", decodeBody(t, rr)["code"])
}

func TestTurnCooldownDenied(t *testing.T) {
	fake := clock.Fake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	inbound := ratelimit.NewInbound(ratelimit.InboundConfig{
		MaxRequests:  10,
		Window:       time.Minute,
		Cooldown:     3 * time.Second,
		IdleEviction: time.Hour,
	}, ratelimit.WithInboundClock(fake))
	h := newHandler(t, &stubCompleter{reply: startReply}, inbound)

	headers := map[string]string{"X-Player-ID": "p1"}
	rr := doRequest(h, http.MethodPost, "/api/floresta", `{"action":"start"}`, headers)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(h, http.MethodPost, "/api/floresta", `{"action":"start"}`, headers)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "COOLDOWN_ACTIVE", body["code"])
	assert.Equal(t, float64(3), body["retry_after"])
}

func TestTurnWindowDenied(t *testing.T) {
	fake := clock.Fake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	inbound := ratelimit.NewInbound(ratelimit.InboundConfig{
		MaxRequests:  2,
		Window:       time.Minute,
		Cooldown:     0,
		IdleEviction: time.Hour,
	}, ratelimit.WithInboundClock(fake))
	h := newHandler(t, &stubCompleter{reply: startReply}, inbound)

	headers := map[string]string{"X-Player-ID": "p1"}
	for i := 0; i < 2; i++ {
		rr := doRequest(h, http.MethodPost, "/api/floresta", `{"action":"start"}`, headers)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := doRequest(h, http.MethodPost, "/api/floresta", `{"action":"start"}`, headers)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
	assert.Equal(t, float64(60), body["retry_after"])
}

func TestTurnUpstreamFailureIsInternalError(t *testing.T) {
	h := newHandler(t, &stubCompleter{err: errors.New("upstream exploded")}, nil)

	rr := doRequest(h, http.MethodPost, "/api/floresta", `{"action":"start"}`, nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.Equal(t, "Erro interno do servidor", body["error"],
		"upstream details must not leak to players")
}

func TestTurnMalformedBodyIsInternalError(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil)

	rr := doRequest(h, http.MethodPost, "/api/floresta", `{"action":`, nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeBody(t, rr)["code"])
}

func TestCORSHeaders(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil)

	rr := doRequest(h, http.MethodOptions, "/api/floresta", "", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-Player-ID")

	rr = doRequest(h, http.MethodGet, "/", "", nil)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestIdentitySeparatesPlayers(t *testing.T) {
	fake := clock.Fake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	inbound := ratelimit.NewInbound(ratelimit.InboundConfig{
		MaxRequests:  10,
		Window:       time.Minute,
		Cooldown:     3 * time.Second,
		IdleEviction: time.Hour,
	}, ratelimit.WithInboundClock(fake))
	h := newHandler(t, &stubCompleter{reply: startReply}, inbound)

	rr := doRequest(h, http.MethodPost, "/api/floresta", `{"action":"start"}`, map[string]string{"X-Player-ID": "a"})
	require.Equal(t, http.StatusOK, rr.Code)

	// A different player is not blocked by the first one's cooldown.
	rr = doRequest(h, http.MethodPost, "/api/floresta", `{"action":"start"}`, map[string]string{"X-Player-ID": "b"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(h, http.MethodPost, "/api/floresta", `{"action":"start"}`, map[string]string{"X-Player-ID": "a"})
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestIdentityUsesFirstForwardedHop(t *testing.T) {
	fake := clock.Fake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	inbound := ratelimit.NewInbound(ratelimit.InboundConfig{
		MaxRequests:  10,
		Window:       time.Minute,
		Cooldown:     3 * time.Second,
		IdleEviction: time.Hour,
	}, ratelimit.WithInboundClock(fake))
	h := newHandler(t, &stubCompleter{reply: startReply}, inbound)

	rr := doRequest(h, http.MethodPost, "/api/floresta", `{"action":"start"}`,
		map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(h, http.MethodPost, "/api/floresta", `{"action":"start"}`,
		map[string]string{"X-Forwarded-For": "198.51.100.9, 10.0.0.1"})
	require.Equal(t, http.StatusOK, rr.Code, "different originating client must not share the cooldown")

	rr = doRequest(h, http.MethodPost, "/api/floresta", `{"action":"start"}`,
		map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"})
	require.Equal(t, http.StatusTooManyRequests, rr.Code, "same first hop is the same identity")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHandler(t, &stubCompleter{reply: startReply}, nil)

	rr := doRequest(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ecoquest_upstream_latency_seconds")
}
