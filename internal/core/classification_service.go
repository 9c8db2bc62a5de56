package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"

	"stashly-backend-go/internal/llm"
)

// DefaultCategory is used when no folder hints are supplied and the model
// cannot be consulted.
const DefaultCategory = "General"

const classifierSystemPrompt = "You are a content-classification assistant. " +
	"Respond with a single JSON object with exactly these fields: " +
	`"title" (string), "description" (string), "tags" (array of strings), ` +
	`"suggestedFolders" (array of strings), "category" (string). ` +
	"Do not include any text outside the JSON object."

// ClassificationResult is produced fresh per request and never persisted.
type ClassificationResult struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Tags             []string `json:"tags"`
	SuggestedFolders []string `json:"suggestedFolders"`
	Category         string   `json:"category"`
}

// ContentMetadata is caller-supplied context about the content being filed.
type ContentMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// AnalyzeInput describes one classification request.
type AnalyzeInput struct {
	Type        string
	URL         string
	Metadata    ContentMetadata
	ImageBase64 string
	// FolderHints are the caller's existing or preferred folders; the model
	// is nudged toward suggesting among them.
	FolderHints []string
}

type classificationService struct {
	client llm.Client // nil when no model is configured
	logger *zap.Logger
}

// NewClassificationService builds the classifier. A nil client is valid and
// pins every answer to the deterministic fallback.
func NewClassificationService(client llm.Client, logger *zap.Logger) ClassificationService {
	return &classificationService{client: client, logger: logger}
}

// Analyze builds a prompt from the request, invokes the model and parses its
// JSON answer. Any failure — no client, call error, unparsable output —
// degrades to the deterministic fallback; this method never errors.
func (s *classificationService) Analyze(ctx context.Context, input AnalyzeInput) ClassificationResult {
	hints := cleanFolderHints(input.FolderHints)

	if s.client == nil {
		return s.fallback(input, hints)
	}

	raw, err := s.client.Complete(ctx, llm.Request{
		System:      classifierSystemPrompt,
		Prompt:      buildClassifierPrompt(input, hints),
		ImageBase64: input.ImageBase64,
	})
	if err != nil {
		s.logger.Warn("model call failed; using fallback classification", zap.Error(err))
		return s.fallback(input, hints)
	}

	result, err := parseClassification(raw)
	if err != nil {
		s.logger.Warn("model answer was not parsable; using fallback classification",
			zap.Error(err),
			zap.String("answer", truncateAnswer(raw)))
		return s.fallback(input, hints)
	}
	return normalizeResult(result)
}

func buildClassifierPrompt(input AnalyzeInput, hints []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Classify the following %s content.\n", input.Type)
	if input.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", input.URL)
	}
	if input.Metadata.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", input.Metadata.Title)
	}
	if input.Metadata.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", input.Metadata.Description)
	}
	if len(input.Metadata.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(input.Metadata.Keywords, ", "))
	}
	if len(hints) > 0 {
		fmt.Fprintf(&b, "The user's existing folders are: %s. Prefer suggesting among them when one fits.\n",
			strings.Join(hints, ", "))
	}
	b.WriteString("Suggest a concise title, a one-sentence description, topical tags, folders to file this under, and a single category.")
	return b.String()
}

// parseClassification decodes the model's JSON answer, stripping code fences
// and attempting a JSON repair pass before giving up.
func parseClassification(raw string) (ClassificationResult, error) {
	var result ClassificationResult
	cleaned := stripCodeFences(raw)
	if cleaned == "" {
		return result, fmt.Errorf("empty model answer")
	}
	if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
		return result, nil
	}
	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return result, fmt.Errorf("repair model answer: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return result, fmt.Errorf("decode repaired model answer: %w", err)
	}
	return result, nil
}

func stripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}

// fallback is the deterministic result used whenever the model cannot answer.
func (s *classificationService) fallback(input AnalyzeInput, hints []string) ClassificationResult {
	result := ClassificationResult{
		Title:            input.Metadata.Title,
		Description:      input.Metadata.Description,
		Tags:             input.Metadata.Keywords,
		SuggestedFolders: []string{},
		Category:         DefaultCategory,
	}
	if result.Title == "" {
		result.Title = "Untitled"
	}
	if result.Description == "" {
		result.Description = "Description"
	}
	if len(result.Tags) == 0 {
		result.Tags = []string{"tag1", "tag2"}
	}
	if len(hints) > 0 {
		result.SuggestedFolders = []string{hints[0]}
		result.Category = hints[0]
	}
	return result
}

func normalizeResult(result ClassificationResult) ClassificationResult {
	if result.Tags == nil {
		result.Tags = []string{}
	}
	if result.SuggestedFolders == nil {
		result.SuggestedFolders = []string{}
	}
	if result.Category == "" {
		result.Category = DefaultCategory
	}
	return result
}

func cleanFolderHints(hints []string) []string {
	cleaned := make([]string, 0, len(hints))
	for _, hint := range hints {
		if trimmed := strings.TrimSpace(hint); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

func truncateAnswer(s string) string {
	if len(s) <= 256 {
		return s
	}
	return s[:256] + "..."
}
