// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/careerpilot/ledger-service/internal/core"
	"github.com/careerpilot/ledger-service/internal/ledger"
	"github.com/careerpilot/ledger-service/internal/settings"
)

// LedgerService is the slice of the entitlement engine the ops surface
// uses: consistency audits and revenue reporting.
type LedgerService interface {
	Reconcile(ctx context.Context, userID string) (ledger.ReconcileResult, error)
	SumByKindInRange(
		ctx context.Context,
		kind ledger.Kind,
		from, to time.Time,
	) (int64, error)
}

type Handler struct {
	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
	dbPing     func(ctx context.Context) error
	redisPing  func(ctx context.Context) error
	ledger     LedgerService
	settings   *settings.Service
}

type HandlerConfig struct {
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	DBPing     func(ctx context.Context) error
	RedisPing  func(ctx context.Context) error
	Ledger     LedgerService
	Settings   *settings.Service
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:    cfg.DBStats,
		redisStats: cfg.RedisStats,
		dbPing:     cfg.DBPing,
		redisPing:  cfg.RedisPing,
		ledger:     cfg.Ledger,
		settings:   cfg.Settings,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)

		r.Get("/ledger/reconcile/{userID}", h.ReconcileUser)
		r.Get("/ledger/revenue", h.RevenueSummary)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbHealthy := true
	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			dbHealthy = false
		}
	}

	redisHealthy := true
	if h.redisPing != nil {
		if err := h.redisPing(ctx); err != nil {
			redisHealthy = false
		}
	}

	response := SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: dbHealthy,
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: redisHealthy,
			Stats:   h.getRedisStats(),
		},
		Runtime: currentRuntimeStats(),
	}

	core.OK(w, response)
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, currentRuntimeStats())
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.settings.Current(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, current)
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	// Partial updates start from the current document so omitted fields
	// keep their values.
	updated, err := h.settings.Current(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.settings.Update(r.Context(), updated); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, updated)
}

// ReconcileUser audits one user's cached balance against the journal sum.
func (h *Handler) ReconcileUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	result, err := h.ledger.Reconcile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "account")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ReconcileResponse{
		UserID:     result.UserID,
		Balance:    result.Balance,
		JournalSum: result.JournalSum,
		Consistent: result.Consistent,
	})
}

// RevenueSummary totals completed transactions of one kind over a date
// range (defaults to the last 30 days).
func (h *Handler) RevenueSummary(w http.ResponseWriter, r *http.Request) {
	kind := ledger.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = ledger.KindPurchase
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			core.BadRequest(w, "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}

	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			core.BadRequest(w, "to must be YYYY-MM-DD")
			return
		}
		to = parsed
	}

	sum, err := h.ledger.SumByKindInRange(r.Context(), kind, from, to)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			core.BadRequest(w, "unknown transaction kind")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, RevenueResponse{
		Kind:  kind,
		From:  from.Format(time.DateOnly),
		To:    to.Format(time.DateOnly),
		Total: sum,
	})
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}

func currentRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

type SystemStatsResponse struct {
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
	Runtime  RuntimeStats   `json:"runtime"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc"`
	MemSys       uint64 `json:"mem_sys"`
	NumGC        uint32 `json:"num_gc"`
}

type ReconcileResponse struct {
	UserID     string `json:"user_id"`
	Balance    int64  `json:"balance"`
	JournalSum int64  `json:"journal_sum"`
	Consistent bool   `json:"consistent"`
}

type RevenueResponse struct {
	Kind  ledger.Kind `json:"kind"`
	From  string      `json:"from"`
	To    string      `json:"to"`
	Total int64       `json:"total"`
}
