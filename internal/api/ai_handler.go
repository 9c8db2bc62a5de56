package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stashly-backend-go/internal/core"
)

// AIHandler handles content classification requests.
type AIHandler struct {
	classifier core.ClassificationService
	logger     *zap.Logger
}

// NewAIHandler creates a new AIHandler.
func NewAIHandler(classifier core.ClassificationService, logger *zap.Logger) *AIHandler {
	return &AIHandler{classifier: classifier, logger: logger}
}

// AnalyzeContent handles POST /ai/analyze. The classifier itself never fails
// (it degrades to a deterministic fallback), so the only error path here is a
// malformed request body.
func (h *AIHandler) AnalyzeContent(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	hints := req.PreferredFolders
	if len(hints) == 0 {
		hints = req.CurrentFolders
	}

	input := core.AnalyzeInput{
		Type:        req.Type,
		URL:         req.URL,
		ImageBase64: req.ImageBase64,
		FolderHints: hints,
	}
	if req.Metadata != nil {
		input.Metadata = core.ContentMetadata{
			Title:       req.Metadata.Title,
			Description: req.Metadata.Description,
			Keywords:    req.Metadata.Keywords,
		}
	}

	c.JSON(http.StatusOK, h.classifier.Analyze(c.Request.Context(), input))
}
