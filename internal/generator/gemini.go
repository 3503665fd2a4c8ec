package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"quizzly-service/internal/domain"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 120 * time.Second
)

// maxResponseBytes bounds how much of an upstream reply is read.
const maxResponseBytes = 4 << 20

// GeminiConfig configures the Gemini generateContent client.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Gemini generates question banks with Google's generateContent endpoint.
type Gemini struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	log     logrus.FieldLogger
}

func NewGemini(cfg GeminiConfig, log logrus.FieldLogger) *Gemini {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Gemini{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		log:     log,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate asks the model for count questions and parses its reply.
func (g *Gemini) Generate(ctx context.Context, subject, topic string, count, difficulty int) ([]domain.Question, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: Prompt(subject, topic, count, difficulty)}}}},
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	started := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		// Transport errors can echo the request; keep them out of client-facing messages.
		g.log.WithError(err).WithField("model", g.model).Warn("question generation request failed")
		return nil, domain.Upstreamf("question generation request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		g.log.WithError(err).WithField("model", g.model).Warn("read question generation response failed")
		return nil, domain.Upstreamf("read question generation response failed")
	}
	g.log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"model":    g.model,
		"count":    count,
		"duration": time.Since(started).String(),
	}).Debug("question generation response")

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Upstreamf("question generation returned status %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, domain.Upstreamf("decode question generation response: %v", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return nil, domain.ErrGenerationFailed
	}
	return ParseQuestions(decoded.Candidates[0].Content.Parts[0].Text)
}

// Prompt builds the instruction sent to the model.
func Prompt(subject, topic string, count, difficulty int) string {
	return fmt.Sprintf(`You are a teaching assistant tasked with creating %[1]d multiple choice questions on the subject %[2]s and topic %[3]s with 4 choices (A,B,C,D) in the format:
{"questions": [
  {"question": "What is the output of print(type([]))?", "choice_A": "<class 'list'>", "choice_B": "<class 'dict'>", "choice_C": "<class 'tuple'>", "choice_D": "<class 'set'>", "answer": "A"},
  {"question": "Which keyword is used to create a function in Python?", "choice_A": "func", "choice_B": "def", "choice_C": "function", "choice_D": "lambda", "answer": "B"}
]}
Keep the difficulty at level %[4]d, where level 1 should be answerable by a class 1 student and level 10 by a class 10 student.
Generate exactly %[1]d questions on the topic %[3]s only, strictly in the JSON format shown above. Only include the JSON, nothing else.`,
		count, subject, topic, difficulty)
}

// ParseQuestions extracts the question list from model text, tolerating
// markdown code fences around the JSON.
func ParseQuestions(text string) ([]domain.Question, error) {
	cleaned := stripFences(text)

	var wrapped struct {
		Questions []domain.Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err != nil {
		// Some replies drop the wrapper object and return the bare list.
		var bare []domain.Question
		if errList := json.Unmarshal([]byte(cleaned), &bare); errList != nil {
			return nil, domain.Upstreamf("malformed question generation output: %v", err)
		}
		wrapped.Questions = bare
	}
	if len(wrapped.Questions) == 0 {
		return nil, domain.ErrGenerationFailed
	}

	out := make([]domain.Question, 0, len(wrapped.Questions))
	for i, q := range wrapped.Questions {
		q.Answer = strings.ToUpper(strings.TrimSpace(q.Answer))
		if err := q.Validate(); err != nil {
			return nil, domain.Upstreamf("generated question %d is malformed: %v", i, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
