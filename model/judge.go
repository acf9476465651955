package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/pkoukk/tiktoken-go"
)

// Judge is the scoring backend: structured grading instructions in, raw text
// out. The text should be JSON matching the grading schema but the caller
// must not assume it is.
type Judge interface {
	Invoke(ctx context.Context, system, prompt string) (string, error)
}

// defaultAttemptTimeout caps a single backend call so a hung judge cannot
// stall a grading batch forever.
const defaultAttemptTimeout = 60 * time.Second

// NewJudge selects the scoring backend from JUDGE_TYPE: "ollama" for a local
// model, anything else for the OpenAI API.
func NewJudge() (Judge, error) {
	switch os.Getenv("JUDGE_TYPE") {
	case "ollama":
		slog.Info("using local Ollama judge", "model", os.Getenv("OLLAMA_JUDGE_MODEL"))
		return NewOllamaJudge(os.Getenv("OLLAMA_JUDGE_URL"), os.Getenv("OLLAMA_JUDGE_MODEL")), nil
	default:
		judge, err := NewOpenAIJudge()
		if err != nil {
			return nil, fmt.Errorf("configure openai judge: %w", err)
		}
		slog.Info("using OpenAI judge", "model", judge.model)
		return judge, nil
	}
}

// OpenAIJudge scores answers through the OpenAI chat completions API.
type OpenAIJudge struct {
	client      *openai.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int
	timeout     time.Duration
}

func NewOpenAIJudge() (*OpenAIJudge, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	model := os.Getenv("JUDGE_MODEL")
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIJudge{
		client:      openai.NewClient(key),
		model:       model,
		temperature: envFloat32("JUDGE_TEMPERATURE", 0.05),
		topP:        envFloat32("JUDGE_TOP_P", 0.9),
		maxTokens:   envInt("JUDGE_MAX_TOKENS", 2048),
		timeout:     envDuration("JUDGE_TIMEOUT", defaultAttemptTimeout),
	}, nil
}

func (j *OpenAIJudge) Invoke(ctx context.Context, system, prompt string) (string, error) {
	start := time.Now()
	defer func() {
		slog.Debug("judge call finished", "took", time.Since(start))
	}()

	if count, err := CountTokens(system + prompt); err == nil {
		slog.Debug("judge prompt size", "tokens", count)
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       j.model,
		Temperature: j.temperature,
		TopP:        j.topP,
		MaxTokens:   j.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("judge request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("judge returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// OllamaJudge scores answers through a local Ollama generate endpoint.
// Handles both single-shot and streamed response bodies.
type OllamaJudge struct {
	url     string
	model   string
	timeout time.Duration
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewOllamaJudge(url, model string) *OllamaJudge {
	return &OllamaJudge{
		url:     url,
		model:   model,
		timeout: envDuration("JUDGE_TIMEOUT", defaultAttemptTimeout),
	}
}

func (j *OllamaJudge) Invoke(ctx context.Context, system, prompt string) (string, error) {
	reqBody, err := json.Marshal(ollamaGenerateRequest{
		Model:  j.model,
		System: system,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, "POST", j.url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(body, &genResp); err == nil && genResp.Response != "" {
		return genResp.Response, nil
	}

	// Streamed response: collect the fragments.
	var output bytes.Buffer
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk ollamaGenerateResponse
		if err := decoder.Decode(&chunk); err != nil {
			break
		}
		output.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	return output.String(), nil
}

// CountTokens measures prompt size with a tokenizer compatible with the
// judge models.
func CountTokens(data string) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	tokens := enc.Encode(data, nil, nil)
	return len(tokens), nil
}

func envFloat32(key string, def float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
