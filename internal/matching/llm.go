package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"scholarswipe/internal/common/config"
	"scholarswipe/internal/common/errors"
	commonhttp "scholarswipe/internal/common/http"
	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/models"
)

// LLMClient talks to an OpenAI-style chat-completions endpoint. One attempt
// per call; retrying is the caller's decision and the orchestrator's policy
// is to fall back instead.
type LLMClient struct {
	cfg    config.LLMConfig
	client *commonhttp.Client
	logger logger.Logger
}

func NewLLMClient(cfg config.LLMConfig, log logger.Logger) *LLMClient {
	return &LLMClient{
		cfg: cfg,
		// No transport-level timeout; the per-call context bounds the request.
		client: commonhttp.NewClient(0),
		logger: log.WithFields(map[string]interface{}{"component": "llm-client"}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat request and returns the raw assistant text.
func (c *LLMClient) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.Timeout)*time.Millisecond)
	defer cancel()

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", errors.NewLLMParseFailedError(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.NewLLMTimeoutError()
		}
		return "", errors.NewLLMParseFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewLLMParseFailedError(fmt.Sprintf("status %d", resp.StatusCode))
	}

	var apiResponse chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", errors.NewLLMParseFailedError("decode: " + err.Error())
	}

	if len(apiResponse.Choices) == 0 || strings.TrimSpace(apiResponse.Choices[0].Message.Content) == "" {
		return "", errors.NewLLMParseFailedError("empty completion")
	}

	return apiResponse.Choices[0].Message.Content, nil
}

// ==========================
// LLM Estimator
// ==========================

const scoreResponseSchema = `{
	"type": "object",
	"required": ["win_probability"],
	"properties": {
		"win_probability": {"type": "number", "minimum": 0, "maximum": 1},
		"match_score": {"type": "number"},
		"reasons": {"type": "array", "items": {"type": "string"}}
	}
}`

// LLMEstimator delegates probability estimation to a text-generation
// service. Non-deterministic across calls, so callers must cache results
// per session to avoid score flicker on re-render.
type LLMEstimator struct {
	client *LLMClient
	logger logger.Logger
}

func NewLLMEstimator(client *LLMClient, log logger.Logger) *LLMEstimator {
	return &LLMEstimator{
		client: client,
		logger: log.WithFields(map[string]interface{}{"strategy": StrategyLLM}),
	}
}

func (e *LLMEstimator) Name() string { return StrategyLLM }

func (e *LLMEstimator) Estimate(ctx context.Context, profile *models.StudentProfile, scholarship *models.Scholarship) (float64, error) {
	raw, err := e.client.Complete(ctx, scoreSystemPrompt, buildScorePrompt(profile, scholarship))
	if err != nil {
		return 0, err
	}

	cleaned := extractJSON(raw)

	schemaLoader := gojsonschema.NewStringLoader(scoreResponseSchema)
	docLoader := gojsonschema.NewStringLoader(cleaned)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return 0, errors.NewLLMParseFailedError(err.Error())
	}
	if !result.Valid() {
		return 0, errors.NewLLMParseFailedError(fmt.Sprintf("schema violations: %v", result.Errors()))
	}

	var parsed struct {
		WinProbability float64 `json:"win_probability"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return 0, errors.NewLLMParseFailedError(err.Error())
	}

	probability := clampProbability(parsed.WinProbability)

	e.logger.Debug("llm estimate parsed", map[string]interface{}{
		"scholarshipId": scholarship.ID,
		"probability":   probability,
	})

	return probability, nil
}

// ==========================
// LLM Reason Generator
// ==========================

// LLMReasoner asks the model for exactly three short reasons. Malformed
// output is discarded in favor of the generic fallback; the generator
// never returns an empty list and never returns an error to its caller.
type LLMReasoner struct {
	client *LLMClient
	logger logger.Logger
}

func NewLLMReasoner(client *LLMClient, log logger.Logger) *LLMReasoner {
	return &LLMReasoner{
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "llm-reasoner"}),
	}
}

func (r *LLMReasoner) Reasons(ctx context.Context, profile *models.StudentProfile, scholarship *models.Scholarship, probability float64) ([]string, error) {
	raw, err := r.client.Complete(ctx, reasonSystemPrompt, buildReasonPrompt(profile, scholarship, probability))
	if err != nil {
		r.logger.Warn("reason generation failed, using fallback", map[string]interface{}{
			"scholarshipId": scholarship.ID,
			"error":         err.Error(),
		})
		return []string{genericReason}, nil
	}

	var reasons []string
	if err := json.Unmarshal([]byte(extractJSON(raw)), &reasons); err != nil {
		r.logger.Warn("reason response not a JSON array, using fallback", map[string]interface{}{
			"scholarshipId": scholarship.ID,
		})
		return []string{genericReason}, nil
	}

	sanitized, ok := sanitizeReasons(reasons)
	if !ok || len(sanitized) != maxReasons {
		r.logger.Warn("reason response failed validation, using fallback", map[string]interface{}{
			"scholarshipId": scholarship.ID,
			"rawCount":      len(reasons),
		})
		return []string{genericReason}, nil
	}

	return sanitized, nil
}

// extractJSON tolerates responses wrapped in markdown code fences.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
