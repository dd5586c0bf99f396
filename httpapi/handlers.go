package httpapi

import (
	"encoding/json"
	"fmt"
	"math"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/laredonunes/ecoquest-api/engine"
	"github.com/laredonunes/ecoquest-api/metrics"
	"github.com/laredonunes/ecoquest-api/ratelimit"
)

var validActions = []string{"start", "continue"}

// scenarioInfo is one catalog entry. ID is set in list responses; the
// docs response keys entries by ID instead.
type scenarioInfo struct {
	ID        string `json:"id,omitempty"`
	Titulo    string `json:"titulo"`
	Descricao string `json:"descricao"`
	Icon      string `json:"icon"`
	Endpoint  string `json:"endpoint"`
}

type docsResponse struct {
	Nome            string                  `json:"nome"`
	Versao          string                  `json:"versao"`
	Descricao       string                  `json:"descricao"`
	Cenarios        map[string]scenarioInfo `json:"cenarios"`
	EndpointsGerais map[string]string       `json:"endpoints_gerais"`
	ExemploUso      map[string]any          `json:"exemplo_uso"`
}

type healthResponse struct {
	Status              string `json:"status"`
	Timestamp           string `json:"timestamp"`
	GroqAPIConfigured   bool   `json:"groq_api_configured"`
	CenariosDisponiveis int    `json:"cenarios_disponiveis"`
}

type listResponse struct {
	Status   string         `json:"status"`
	Total    int            `json:"total"`
	Cenarios []scenarioInfo `json:"cenarios"`
}

// errorResponse is the envelope every failed request carries.
type errorResponse struct {
	Status       string   `json:"status"`
	Error        string   `json:"error"`
	Code         string   `json:"code"`
	ValidActions []string `json:"valid_actions,omitempty"`
	RetryAfter   int      `json:"retry_after,omitempty"`
	Endpoints    []string `json:"endpoints_disponiveis,omitempty"`
}

// handleDocs handles GET / and doubles as the JSON 404 for paths no
// other route claims.
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeNotFound(w)
		return
	}
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w)
		return
	}

	cenarios := make(map[string]scenarioInfo, s.registry.Len())
	for _, sc := range s.registry.List() {
		cenarios[sc.ID] = scenarioInfo{
			Titulo:    sc.Title,
			Descricao: sc.Description,
			Icon:      sc.Icon,
			Endpoint:  "/api/" + sc.ID,
		}
	}

	s.writeJSON(w, http.StatusOK, docsResponse{
		Nome:      "ECO QUEST - API de RPG Ambiental",
		Versao:    Version,
		Descricao: "Plataforma de jogos investigativos sobre crimes ambientais",
		Cenarios:  cenarios,
		EndpointsGerais: map[string]string{
			"GET /":             "Esta documentação",
			"GET /health":       "Health check",
			"GET /api/cenarios": "Lista de cenários disponíveis",
		},
		ExemploUso: map[string]any{
			"iniciar": map[string]any{
				"url":    "/api/floresta",
				"method": "POST",
				"body":   map[string]any{"action": "start"},
			},
			"continuar": map[string]any{
				"url":    "/api/floresta",
				"method": "POST",
				"body": map[string]any{
					"action":          "continue",
					"player_decision": "Sua escolha",
					"game_state":      map[string]any{},
				},
			},
		},
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w)
		return
	}

	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:              "healthy",
		Timestamp:           s.clk.Now().Format(time.RFC3339),
		GroqAPIConfigured:   s.groqConfigured,
		CenariosDisponiveis: s.registry.Len(),
	})
}

// handleListScenarios handles GET /api/cenarios.
func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w)
		return
	}

	scenarios := s.registry.List()
	cenarios := make([]scenarioInfo, 0, len(scenarios))
	for _, sc := range scenarios {
		cenarios = append(cenarios, scenarioInfo{
			ID:        sc.ID,
			Titulo:    sc.Title,
			Descricao: sc.Description,
			Icon:      sc.Icon,
			Endpoint:  "/api/" + sc.ID,
		})
	}

	s.writeJSON(w, http.StatusOK, listResponse{
		Status:   "success",
		Total:    len(cenarios),
		Cenarios: cenarios,
	})
}

// handleTurn handles POST /api/{scenario}: validates the request,
// admits it through the inbound limiter, and runs one engine turn.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/")
	sc, ok := s.registry.Get(id)
	if !ok {
		s.writeNotFound(w)
		return
	}
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w)
		return
	}
	if !hasJSONContentType(r) {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Status: "error",
			Error:  "Content-Type deve ser application/json",
			Code:   "INVALID_CONTENT_TYPE",
		})
		return
	}

	var req map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error("Failed to decode turn request", "scenario", sc.ID, "error", err)
		s.writeInternalError(w)
		return
	}

	var action string
	if raw, present := req["action"]; present {
		if err := json.Unmarshal(raw, &action); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{
				Status:       "error",
				Error:        fmt.Sprintf("Action '%s' inválida", strings.Trim(string(raw), `"`)),
				Code:         "INVALID_ACTION",
				ValidActions: validActions,
			})
			return
		}
	}
	if action == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Status:       "error",
			Error:        "Campo 'action' é obrigatório",
			Code:         "MISSING_ACTION",
			ValidActions: validActions,
		})
		return
	}
	if action != "start" && action != "continue" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Status:       "error",
			Error:        fmt.Sprintf("Action '%s' inválida", action),
			Code:         "INVALID_ACTION",
			ValidActions: validActions,
		})
		return
	}

	var decision string
	var session *engine.Session
	if action == "continue" {
		rawDecision, hasDecision := req["player_decision"]
		rawState, hasState := req["game_state"]
		if !hasDecision || !hasState {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{
				Status: "error",
				Error:  "Campos 'player_decision' e 'game_state' são obrigatórios",
				Code:   "MISSING_FIELDS",
			})
			return
		}
		if err := json.Unmarshal(rawDecision, &decision); err != nil {
			s.logger.Error("Failed to decode player decision", "scenario", sc.ID, "error", err)
			s.writeInternalError(w)
			return
		}
		session = &engine.Session{}
		if err := json.Unmarshal(rawState, session); err != nil {
			s.logger.Error("Failed to decode game state", "scenario", sc.ID, "error", err)
			s.writeInternalError(w)
			return
		}
	}

	identity := identityFrom(r)
	s.logger.Info("turn requested", "scenario", sc.ID, "action", action, "identity", identity)

	if dec := s.inbound.Check(identity); !dec.Allowed {
		metrics.RateLimitDenials.WithLabelValues(string(dec.Reason)).Inc()
		msg := "Limite de requisições atingido. Aguarde para continuar"
		if dec.Reason == ratelimit.ReasonCooldown {
			msg = "Aguarde antes de enviar a próxima jogada"
		}
		s.writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Status:     "error",
			Error:      msg,
			Code:       string(dec.Reason),
			RetryAfter: int(math.Ceil(dec.RetryAfter.Seconds())),
		})
		return
	}

	var turn *engine.Turn
	var err error
	if action == "start" {
		turn, err = s.eng.StartTurn(r.Context(), sc, identity)
	} else {
		turn, err = s.eng.ContinueTurn(r.Context(), sc, identity, decision, session)
	}
	if err != nil {
		s.logger.Error("Failed to run turn", "scenario", sc.ID, "action", action, "error", err)
		s.writeInternalError(w)
		return
	}

	s.writeJSON(w, http.StatusOK, turn)
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("Failed to encode response", "error", err)
	}
}

func (s *Server) writeInternalError(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{
		Status: "error",
		Error:  "Erro interno do servidor",
		Code:   "INTERNAL_ERROR",
	})
}

func (s *Server) writeNotFound(w http.ResponseWriter) {
	endpoints := []string{"GET /", "GET /health", "GET /api/cenarios"}
	for _, sc := range s.registry.List() {
		endpoints = append(endpoints, "POST /api/"+sc.ID)
	}
	s.writeJSON(w, http.StatusNotFound, errorResponse{
		Status:    "error",
		Error:     "Endpoint não encontrado",
		Code:      "NOT_FOUND",
		Endpoints: endpoints,
	})
}

func (s *Server) writeMethodNotAllowed(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Status: "error",
		Error:  "Método HTTP não permitido",
		Code:   "METHOD_NOT_ALLOWED",
	})
}

// hasJSONContentType reports whether the request declares a JSON body.
// Parameters like charset are allowed.
func hasJSONContentType(r *http.Request) bool {
	mediatype, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediatype == "application/json"
}

// identityFrom resolves the rate-limiting identity: the explicit
// player header when present, else the client address (first
// X-Forwarded-For hop behind a proxy).
func identityFrom(r *http.Request) string {
	if id := r.Header.Get("X-Player-ID"); id != "" {
		return id
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
