// Package main implements a mock extraction service for local
// development and e2e testing. It serves OpenAI-compatible
// /v1/chat/completions responses from a fixture file, so recipeingest
// can be exercised without a real model: fast, deterministic, and
// offline-capable.
//
// Usage:
//
//	mock-extractor -fixture /path/to/response.json -port 11434
//
// The fixture file's content is returned verbatim as the assistant
// message. Without -fixture, a small built-in recipe is served. The
// -fail flag forces every completion call to return the given HTTP
// status, for exercising the service's error mapping by hand.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync/atomic"
	"time"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
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

// defaultFixture is served when no fixture file is given.
const defaultFixture = `{"recipeName":"Mock Pancakes","servings":"4","ingredients":[` +
	`{"name":"flour","quantity":2,"unit":"cups","notes":null,"category":"baking"},` +
	`{"name":"milk","quantity":1.5,"unit":"cups","notes":null,"category":"dairy"},` +
	`{"name":"eggs","quantity":2,"unit":null,"notes":"beaten","category":"dairy"}]}`

type server struct {
	fixture    string
	failStatus int
	calls      atomic.Int64
}

func main() {
	fixturePath := flag.String("fixture", "", "fixture file returned as the assistant message")
	port := flag.Int("port", 11434, "port to listen on")
	failStatus := flag.Int("fail", 0, "force every completion call to fail with this HTTP status")
	flag.Parse()

	fixture := defaultFixture
	if *fixturePath != "" {
		data, err := os.ReadFile(*fixturePath)
		if err != nil {
			log.Fatalf("Failed to read fixture %s: %v", *fixturePath, err)
		}
		fixture = string(data)
		log.Printf("Loaded fixture from %s (%d bytes)", *fixturePath, len(data))
	}

	s := &server{fixture: fixture, failStatus: *failStatus}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/stats", s.handleStats)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock extraction service listening on %s", addr)
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

	callNum := s.calls.Add(1)
	log.Printf("[call %d] model=%s messages=%d", callNum, req.Model, len(req.Messages))

	if s.failStatus != 0 {
		log.Printf("[call %d] forced failure status=%d", callNum, s.failStatus)
		http.Error(w, "simulated failure", s.failStatus)
		return
	}

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{
			{
				Index: 0,
				Message: chatMessage{
					Role:    "assistant",
					Content: s.fixture,
				},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{
			PromptTokens:     len(s.fixture) / 4, // rough estimate
			CompletionTokens: len(s.fixture) / 4,
			TotalTokens:      len(s.fixture) / 2,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{"calls": s.calls.Load()})
}
