// AngelaMos | 2026
// handler.go

package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

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
	adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/billing", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/balance", h.GetBalance)
		r.Post("/deduct", h.Deduct)
		r.Post("/watch-ad", h.WatchAd)
		r.Post("/verify-payment", h.VerifyPayment)
		r.Post("/unlock-template", h.UnlockTemplate)
		r.Get("/transactions", h.ListTransactions)

		// Manual top-ups bypass gateway verification; admin only.
		r.With(adminOnly).Post("/credit", h.Credit)
	})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	balance, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	core.OK(w, BalanceResponse{Balance: balance})
}

func (h *Handler) Deduct(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req DeductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	balance, err := h.service.DeductForUsage(
		r.Context(),
		userID,
		req.Cost,
		req.ServiceName,
	)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	core.OK(w, BalanceResponse{Balance: balance})
}

func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	// Admins may top up another user's account; default is their own.
	if req.UserID != "" {
		userID = req.UserID
	}

	description := req.Description
	if description == "" {
		description = "Credit top-up"
	}

	result, err := h.service.CreditForPurchase(
		r.Context(),
		userID,
		req.Amount,
		description,
		nil,
		nil,
	)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	core.OK(w, CreditResponse{Balance: result.Balance, Added: result.Added})
}

func (h *Handler) WatchAd(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req WatchAdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	result, err := h.service.RewardAdWatch(r.Context(), userID, req.Type)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	core.OK(w, AdRewardResponse{
		Balance:     result.Balance,
		Added:       result.TotalAwarded,
		Streak:      result.Streak,
		StreakBonus: result.StreakBonus,
	})
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	result, err := h.service.VerifyAndCreditPayment(
		r.Context(),
		userID,
		req.Reference,
	)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	core.OK(w, CreditResponse{
		Balance:          result.Balance,
		Added:            result.Added,
		AlreadyProcessed: result.AlreadyProcessed,
	})
}

func (h *Handler) UnlockTemplate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UnlockTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	result, err := h.service.UnlockTemplate(
		r.Context(),
		userID,
		req.TemplateID,
		req.Cost,
	)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	core.OK(w, UnlockTemplateResponse{
		Balance:           result.Balance,
		UnlockedTemplates: result.UnlockedTemplates,
		AlreadyUnlocked:   result.AlreadyUnlocked,
	})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	params := ListParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
	}
	params.Normalize()

	txs, total, err := h.service.Transactions(r.Context(), userID, params)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToTransactionResponseList(txs),
		params.Page,
		params.PageSize,
		total,
	)
}

// writeLedgerError maps business errors to client responses; anything
// else is an infrastructure fault.
func writeLedgerError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}

	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "account")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	default:
		core.InternalServerError(w, err)
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
