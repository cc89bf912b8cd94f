// AngelaMos | 2026
// handler.go

package generation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/careerpilot/ledger-service/internal/core"
	"github.com/careerpilot/ledger-service/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/analysis", h.Analyze)
		r.Post("/optimize", h.Optimize)
	})
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	userID := middleware.GetUserID(r.Context())

	result, err := h.service.AnalyzeFit(
		r.Context(),
		userID,
		req.ResumeText,
		req.JobText,
	)
	if err != nil {
		writeGenerationError(w, err)
		return
	}

	core.OK(w, AnalyzeResponse{
		FitScore:         result.Analysis.FitScore,
		MissingSkills:    result.Analysis.MissingSkills,
		Summary:          result.Analysis.Summary,
		Charged:          result.Charged,
		RemainingCredits: result.Balance,
	})
}

func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	userID := middleware.GetUserID(r.Context())

	result, err := h.service.OptimizeContent(
		r.Context(),
		userID,
		req.ResumeText,
		req.JobText,
	)
	if err != nil {
		writeGenerationError(w, err)
		return
	}

	core.OK(w, OptimizeResponse{
		Content:          result.Content,
		Charged:          result.Charged,
		RemainingCredits: result.Balance,
	})
}

func writeGenerationError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}
	core.InternalServerError(w, err)
}
