package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"quizzly-service/internal/domain"
)

const fencedReply = "```json\n{\"questions\": [{\"question\": \"2+2?\", \"choice_A\": \"4\", \"choice_B\": \"3\", \"choice_C\": \"5\", \"choice_D\": \"6\", \"answer\": \"a\"}]}\n```"

func TestParseQuestionsStripsFences(t *testing.T) {
	questions, err := ParseQuestions(fencedReply)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(questions) != 1 || questions[0].Answer != "A" || questions[0].ChoiceA != "4" {
		t.Fatalf("unexpected questions %+v", questions)
	}
}

func TestParseQuestionsAcceptsBareList(t *testing.T) {
	questions, err := ParseQuestions(`[{"question":"q","choice_A":"a","choice_B":"b","choice_C":"c","choice_D":"d","answer":"D"}]`)
	if err != nil || len(questions) != 1 {
		t.Fatalf("expected one question, got %v %v", questions, err)
	}
}

func TestParseQuestionsRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":      "here are your questions",
		"empty list":    `{"questions": []}`,
		"bad letter":    `{"questions": [{"question":"q","choice_A":"a","choice_B":"b","choice_C":"c","choice_D":"d","answer":"E"}]}`,
		"missing field": `{"questions": [{"question":"q","choice_A":"a","choice_B":"b","choice_C":"c","answer":"A"}]}`,
	}
	for name, text := range cases {
		if _, err := ParseQuestions(text); !errors.Is(err, domain.ErrUpstreamFailure) {
			t.Fatalf("%s: expected upstream failure, got %v", name, err)
		}
	}
}

func TestGeminiGenerate(t *testing.T) {
	var gotPath, gotKey, gotPrompt, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("x-goog-api-key")
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotPrompt = req.Contents[0].Parts[0].Text
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": fencedReply}}}},
			},
		})
	}))
	defer server.Close()

	logger, _ := logtest.NewNullLogger()
	g := NewGemini(GeminiConfig{APIKey: "k1", BaseURL: server.URL, Model: "test-model"}, logger)
	questions, err := g.Generate(context.Background(), "Math", "Addition", 1, 3)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	if gotPath != "/models/test-model:generateContent" || gotKey != "k1" || gotQuery != "" {
		t.Fatalf("unexpected request path=%s key=%s query=%s", gotPath, gotKey, gotQuery)
	}
	if !strings.Contains(gotPrompt, "topic Addition") || !strings.Contains(gotPrompt, "level 3") {
		t.Fatalf("prompt missing inputs: %s", gotPrompt)
	}
}

func TestGeminiUpstreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	logger, _ := logtest.NewNullLogger()
	g := NewGemini(GeminiConfig{APIKey: "k1", BaseURL: server.URL}, logger)
	if _, err := g.Generate(context.Background(), "Math", "Addition", 1, 3); !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestGeminiTransportErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	logger, hook := logtest.NewNullLogger()
	g := NewGemini(GeminiConfig{APIKey: "very-secret-key", BaseURL: baseURL}, logger)
	_, err := g.Generate(context.Background(), "Math", "Addition", 1, 3)
	if !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	if strings.Contains(err.Error(), "very-secret-key") || strings.Contains(err.Error(), baseURL) {
		t.Fatalf("error leaks request details: %q", err.Error())
	}
	if entry := hook.LastEntry(); entry == nil || entry.Message != "question generation request failed" {
		t.Fatalf("expected transport failure to be logged, got %+v", entry)
	}
}

func TestSampleGeneratesValidQuestions(t *testing.T) {
	questions, err := NewSample().Generate(context.Background(), "Math", "Sums", 6, 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(questions) != 6 {
		t.Fatalf("expected 6 questions, got %d", len(questions))
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			t.Fatalf("question %d invalid: %v", i, err)
		}
	}
}
