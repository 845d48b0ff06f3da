package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const healthPollInterval = 2 * time.Second

// LlamaServer talks to a llama.cpp llama-server instance over HTTP.
type LlamaServer struct {
	baseURL    string
	httpClient *http.Client
}

// NewLlamaServer creates a backend client for the server at baseURL.
func NewLlamaServer(baseURL string, requestTimeout time.Duration) *LlamaServer {
	return &LlamaServer{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Load polls the server health endpoint until the model is loaded. The server
// answers 503 while the model is still loading.
func (s *LlamaServer) Load(ctx context.Context) error {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := s.httpClient.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()

			if resp.StatusCode == http.StatusOK {
				return nil
			}

			if resp.StatusCode != http.StatusServiceUnavailable {
				return fmt.Errorf("model health check failed with status %d", resp.StatusCode)
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("model did not become ready: %w", ctx.Err())
		case <-time.After(healthPollInterval):
		}
	}
}

type completionRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream"`
}

type completionResponse struct {
	Content string `json:"content"`
}

// Generate runs one completion call.
func (s *LlamaServer) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	reqBody := completionRequest{
		Prompt:      prompt,
		NPredict:    opts.MaxTokens,
		Temperature: opts.Temperature,
		Stop:        opts.Stop,
		Stream:      false,
	}

	respBody, err := s.makeRequest(ctx, "/completion", reqBody)
	if err != nil {
		return "", err
	}

	var response completionResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse completion response: %w", err)
	}

	return response.Content, nil
}

type tokenizeRequest struct {
	Content string `json:"content"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

// Tokenize converts text to model tokens.
func (s *LlamaServer) Tokenize(ctx context.Context, text string) ([]int, error) {
	respBody, err := s.makeRequest(ctx, "/tokenize", tokenizeRequest{Content: text})
	if err != nil {
		return nil, err
	}

	var response tokenizeResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse tokenize response: %w", err)
	}

	return response.Tokens, nil
}

type detokenizeRequest struct {
	Tokens []int `json:"tokens"`
}

type detokenizeResponse struct {
	Content string `json:"content"`
}

// Detokenize converts model tokens back to text.
func (s *LlamaServer) Detokenize(ctx context.Context, tokens []int) (string, error) {
	respBody, err := s.makeRequest(ctx, "/detokenize", detokenizeRequest{Tokens: tokens})
	if err != nil {
		return "", err
	}

	var response detokenizeResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse detokenize response: %w", err)
	}

	return response.Content, nil
}

// makeRequest makes an HTTP POST request to the llama server
func (s *LlamaServer) makeRequest(ctx context.Context, endpoint string, reqBody interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
