package server

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"scholarswipe/internal/common/errors"
	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/models"
	"scholarswipe/internal/search"
)

// Service interfaces the handlers depend on; the concrete implementations
// live in the domain packages.
type MatchService interface {
	Score(ctx context.Context, userID string, scholarshipIDs []string) ([]models.MatchResult, error)
}

type SessionService interface {
	Restore(ctx context.Context, userID string) (*models.SessionSnapshot, error)
	Swipe(ctx context.Context, userID, scholarshipID string, action models.SwipeAction) (*models.SessionSnapshot, error)
	Reset(ctx context.Context, userID string) error
}

type SearchService interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

type FeedbackService interface {
	SubmitFeedback(ctx context.Context, feedback *models.Feedback) error
}

// HealthChecker reports per-dependency status for /healthz.
type HealthChecker interface {
	Check(ctx context.Context) map[string]string
}

type handlers struct {
	deps   Deps
	logger logger.Logger
}

func newHandlers(deps Deps, log logger.Logger) *handlers {
	return &handlers{deps: deps, logger: log}
}

// writeError logs the full error and sends the client-safe mapping.
func (h *handlers) writeError(c fiber.Ctx, err error) error {
	stdErr := errors.Normalize(err)

	h.logger.Error("request failed", map[string]interface{}{
		"path":   c.Path(),
		"code":   string(stdErr.Code),
		"error":  stdErr.Message,
		"detail": stdErr.Details,
	})

	return c.Status(stdErr.HTTPStatus()).JSON(fiber.Map{
		"error": stdErr.PublicMessage(),
		"code":  stdErr.Code,
	})
}

// ==========================
// Matches
// ==========================

type matchRequest struct {
	UserID         string   `json:"userId"`
	ScholarshipIDs []string `json:"scholarshipIds"`
}

type matchResponse struct {
	Matches []models.MatchResult `json:"matches"`
}

func (h *handlers) Matches(c fiber.Ctx) error {
	var req matchRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return h.writeError(c, errors.NewInvalidRequestError("invalid request body"))
	}

	results, err := h.deps.Matches.Score(c.Context(), req.UserID, req.ScholarshipIDs)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(matchResponse{Matches: results})
}

// ==========================
// Swipes
// ==========================

type swipeRequest struct {
	UserID        string `json:"userId"`
	ScholarshipID string `json:"scholarship_id"`
	Action        string `json:"action"`
}

func (h *handlers) Swipe(c fiber.Ctx) error {
	var req swipeRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return h.writeError(c, errors.NewInvalidRequestError("invalid request body"))
	}
	if req.UserID == "" || req.ScholarshipID == "" {
		return h.writeError(c, errors.NewInvalidRequestError("userId and scholarship_id are required"))
	}
	if !models.ValidSwipeAction(req.Action) {
		return h.writeError(c, errors.NewInvalidRequestError("action must be saved, passed, or liked"))
	}

	snapshot, err := h.deps.Sessions.Swipe(c.Context(), req.UserID, req.ScholarshipID, models.SwipeAction(req.Action))
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(snapshot)
}

// ==========================
// Sessions
// ==========================

func (h *handlers) GetSession(c fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return h.writeError(c, errors.NewInvalidRequestError("userId is required"))
	}

	snapshot, err := h.deps.Sessions.Restore(c.Context(), userID)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(snapshot)
}

func (h *handlers) DeleteSession(c fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return h.writeError(c, errors.NewInvalidRequestError("userId is required"))
	}

	if err := h.deps.Sessions.Reset(c.Context(), userID); err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(fiber.Map{"status": "reset"})
}

// ==========================
// Search
// ==========================

func (h *handlers) Search(c fiber.Ctx) error {
	q := search.Query{
		Text: c.Query("q", ""),
		From: queryInt(c, "from", 0),
		Size: queryInt(c, "size", 0),
	}
	if tags := c.Query("tags", ""); tags != "" {
		q.Tags = strings.Split(tags, ",")
	}
	if min := c.Query("minAmount", ""); min != "" {
		q.MinAmount, _ = strconv.ParseFloat(min, 64)
	}
	if max := c.Query("maxAmount", ""); max != "" {
		q.MaxAmount, _ = strconv.ParseFloat(max, 64)
	}

	result, err := h.deps.Search.Search(c.Context(), q)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"scholarships": result.Scholarships,
		"total":        result.TotalHits,
		"took":         result.Took,
	})
}

func queryInt(c fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// ==========================
// Feedback
// ==========================

type feedbackRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (h *handlers) Feedback(c fiber.Ctx) error {
	var req feedbackRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return h.writeError(c, errors.NewInvalidRequestError("invalid request body"))
	}
	if strings.TrimSpace(req.Message) == "" {
		return h.writeError(c, errors.NewInvalidRequestError("message is required"))
	}

	feedback := models.Feedback{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	}
	if err := h.deps.Feedback.SubmitFeedback(c.Context(), &feedback); err != nil {
		return h.writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": feedback.ID})
}

// ==========================
// Health
// ==========================

func (h *handlers) Healthz(c fiber.Ctx) error {
	checks := map[string]string{}
	if h.deps.Health != nil {
		checks = h.deps.Health.Check(c.Context())
	}

	status := "ok"
	code := fiber.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
			break
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}
