// Package main implements a mock Groq server for offline play and e2e
// testing. It serves OpenAI-compatible /v1/chat/completions responses
// so the API can run full sessions without a real key:
//
//	mock-groq -port 8090
//	GROQ_BASE_URL=http://localhost:8090/v1 GROQ_API_KEY=mock ecoquest-api
//
// Scripted turns come from an optional -scripts directory: "name.json"
// is a single reply for model "name", and numbered files ("name.1.json",
// "name.2.json", ...) play in order with the base file repeating after
// the sequence runs out. When no script matches the requested model the
// server improvises a valid narrative turn, so a session can be played
// indefinitely with no fixtures at all.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// narrativeTurn mirrors the reply shape the game engine parses.
type narrativeTurn struct {
	Scene   string   `json:"scene"`
	Options []string `json:"options"`
	Clue    string   `json:"clue,omitempty"`
	Danger  string   `json:"danger"`
}

type server struct {
	scripts map[string][]string // model → ordered reply contents

	mu       sync.Mutex
	total    int64
	perModel map[string]int
}

func newServer(scripts map[string][]string) *server {
	return &server{
		scripts:  scripts,
		perModel: make(map[string]int),
	}
}

func main() {
	scriptDir := flag.String("scripts", "", "directory of scripted replies (optional)")
	port := flag.Int("port", 8090, "port to listen on")
	flag.Parse()

	if envDir := os.Getenv("MOCK_GROQ_SCRIPTS"); envDir != "" && *scriptDir == "" {
		*scriptDir = envDir
	}

	scripts := map[string][]string{}
	if *scriptDir != "" {
		var err error
		scripts, err = loadScripts(*scriptDir)
		if err != nil {
			log.Fatalf("Failed to load scripts from %s: %v", *scriptDir, err)
		}
		for model, seq := range scripts {
			log.Printf("  model: %s (%d reply(ies))", model, len(seq))
		}
	}
	if len(scripts) == 0 {
		log.Printf("No scripts loaded, improvising every turn")
	}

	s := newServer(scripts)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/stats", s.handleStats)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock Groq server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.total++
	callNum := s.total
	callIndex := s.perModel[req.Model]
	s.perModel[req.Model] = callIndex + 1
	s.mu.Unlock()

	log.Printf("[call %d] model=%s messages=%d", callNum, req.Model, len(req.Messages))

	content := s.replyFor(req.Model, callIndex)

	resp := chatResponse{
		ID:      fmt.Sprintf("chatcmpl-mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{
			{
				Index:        0,
				Message:      chatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{
			PromptTokens:     len(content) / 4, // rough estimate
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// replyFor returns the scripted reply for this call, or an improvised
// turn when the model has no script.
func (s *server) replyFor(model string, callIndex int) string {
	seq, ok := s.scripts[model]
	if !ok {
		return improvise(callIndex)
	}
	if callIndex < len(seq) {
		return seq[callIndex]
	}
	return seq[len(seq)-1] // repeat last reply
}

var improvScenes = []string{
	"Você avança com cautela e registra tudo no caderno de campo.",
	"Um barulho de motor corta o silêncio. Alguém percebeu sua presença.",
	"As marcas no chão contam uma história que ninguém queria deixar escrita.",
	"No rádio, a central confirma: a denúncia anônima tinha fundamento.",
}

var improvDangers = []string{"baixo", "médio", "alto"}

// improvise builds a deterministic narrative turn. Every third turn
// carries a numbered clue so the evidence list and danger meter keep
// moving during a long mock session.
func improvise(callIndex int) string {
	turn := narrativeTurn{
		Scene: improvScenes[callIndex%len(improvScenes)],
		Options: []string{
			"Investigar mais de perto",
			"Documentar e recuar",
			"Chamar reforços",
		},
		Danger: improvDangers[callIndex%len(improvDangers)],
	}
	if callIndex%3 == 2 {
		turn.Clue = fmt.Sprintf("Vestígio nº %d registrado na cena", callIndex+1)
	}

	data, _ := json.Marshal(turn)
	return string(data)
}

// handleStats returns call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	callsByModel := make(map[string]int, len(s.perModel))
	for model, n := range s.perModel {
		callsByModel[model] = n
	}
	total := s.total
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":    total,
		"calls_by_model": callsByModel,
	})
}

// numberedFileRe matches files like "llama.1.json", "llama.2.json".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// loadScripts reads JSON files from dir into per-model reply sequences:
// numbered files in numeric order, then the base file as the repeating
// tail.
func loadScripts(dir string) (map[string][]string, error) {
	base := make(map[string]string)
	numbered := make(map[string]map[int]string)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("invalid JSON in %s", path)
		}

		if m := numberedFileRe.FindStringSubmatch(info.Name()); m != nil {
			idx, _ := strconv.Atoi(m[2])
			if numbered[m[1]] == nil {
				numbered[m[1]] = make(map[int]string)
			}
			numbered[m[1]][idx] = string(data)
			return nil
		}

		base[strings.TrimSuffix(info.Name(), ".json")] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}

	scripts := make(map[string][]string)
	for model, byIndex := range numbered {
		indices := make([]int, 0, len(byIndex))
		for idx := range byIndex {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			scripts[model] = append(scripts[model], byIndex[idx])
		}
	}
	for model, content := range base {
		scripts[model] = append(scripts[model], content)
	}
	return scripts, nil
}
