// AngelaMos | 2026
// repository.go

package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/careerpilot/ledger-service/internal/core"
)

type Repository interface {
	Get(ctx context.Context) (Settings, error)
	Update(ctx context.Context, s Settings) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context) (Settings, error) {
	query := `SELECT data FROM system_settings WHERE id = TRUE`

	var raw []byte
	err := r.db.GetContext(ctx, &raw, query)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	return s, nil
}

func (r *repository) Update(ctx context.Context, s Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	query := `
		INSERT INTO system_settings (id, data, updated_at)
		VALUES (TRUE, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET data = $1, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, raw); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}

	return nil
}
