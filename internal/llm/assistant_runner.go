package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollInterval    = 2 * time.Second
	defaultMaxPollAttempts = 30
)

// AssistantRunner speaks the OpenAI assistants v2 API: it creates a thread
// with the user message, starts a run, polls the run until it reaches a
// terminal state and then reads the assistant's reply from the thread.
//
// Polling is bounded: at most maxPollAttempts polls at pollInterval apart,
// after which the run is treated as timed out and ErrRunTimeout is returned.
type AssistantRunner struct {
	apiKey          string
	baseURL         string
	assistantID     string
	httpClient      *http.Client
	logger          *zap.Logger
	pollInterval    time.Duration
	maxPollAttempts int
}

// NewAssistantRunner constructs a runner bound to a specific assistant id.
func NewAssistantRunner(cfg Config, assistantID string, logger *zap.Logger) *AssistantRunner {
	return &AssistantRunner{
		apiKey:          cfg.APIKey,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		assistantID:     assistantID,
		httpClient:      &http.Client{Timeout: cfg.timeout()},
		logger:          logger,
		pollInterval:    defaultPollInterval,
		maxPollAttempts: defaultMaxPollAttempts,
	}
}

type assistantThread struct {
	ID string `json:"id"`
}

type assistantRun struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Message string `json:"message"`
	} `json:"last_error"`
}

type assistantMessageList struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

func (r *AssistantRunner) Complete(ctx context.Context, req Request) (string, error) {
	content := r.messageContent(req)

	var thread assistantThread
	err := r.doJSON(ctx, http.MethodPost, "/threads", map[string]interface{}{
		"messages": []map[string]interface{}{
			{"role": "user", "content": content},
		},
	}, &thread)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}

	runBody := map[string]interface{}{"assistant_id": r.assistantID}
	if req.System != "" {
		runBody["instructions"] = req.System
	}
	var run assistantRun
	if err := r.doJSON(ctx, http.MethodPost, "/threads/"+thread.ID+"/runs", runBody, &run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	if err := r.waitForRun(ctx, thread.ID, &run); err != nil {
		return "", err
	}

	var messages assistantMessageList
	if err := r.doJSON(ctx, http.MethodGet, "/threads/"+thread.ID+"/messages?order=desc&limit=10", nil, &messages); err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	for _, msg := range messages.Data {
		if msg.Role != "assistant" {
			continue
		}
		for _, part := range msg.Content {
			if part.Type == "text" && part.Text.Value != "" {
				return part.Text.Value, nil
			}
		}
	}
	return "", fmt.Errorf("assistant run %s produced no text reply", run.ID)
}

// waitForRun polls the run at a fixed interval until it reaches a terminal
// state or the attempt budget is exhausted.
func (r *AssistantRunner) waitForRun(ctx context.Context, threadID string, run *assistantRun) error {
	for attempt := 0; attempt < r.maxPollAttempts; attempt++ {
		switch run.Status {
		case "completed":
			return nil
		case "failed", "cancelled", "expired":
			detail := run.Status
			if run.LastError != nil && run.LastError.Message != "" {
				detail = detail + ": " + run.LastError.Message
			}
			return fmt.Errorf("%w (%s)", ErrRunFailed, detail)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.pollInterval):
		}

		if err := r.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+run.ID, nil, run); err != nil {
			return fmt.Errorf("poll run: %w", err)
		}
	}
	r.logger.Warn("assistant run exceeded polling budget",
		zap.String("runId", run.ID),
		zap.String("lastStatus", run.Status),
		zap.Int("attempts", r.maxPollAttempts))
	return fmt.Errorf("%w after %d attempts", ErrRunTimeout, r.maxPollAttempts)
}

func (r *AssistantRunner) messageContent(req Request) interface{} {
	if req.ImageBase64 == "" {
		return req.Prompt
	}
	return []map[string]interface{}{
		{"type": "text", "text": req.Prompt},
		{"type": "image_url", "image_url": map[string]string{
			"url": "data:image/jpeg;base64," + req.ImageBase64,
		}},
	}
}

func (r *AssistantRunner) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("OpenAI-Beta", "assistants=v2")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(string(respBody), 256))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
