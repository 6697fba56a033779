// internal/repository/postgres/settings_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"babylon-billing-service/internal/domain/settings"
	xerrors "babylon-billing-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const settingsRowID = "main"

type SettingsRepository struct {
	db *pgxpool.Pool
}

func NewSettingsRepository(db *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get retrieves the singleton settings row
func (r *SettingsRepository) Get(ctx context.Context) (*settings.GatewaySettings, error) {
	query := `
		SELECT id, asaas_api_key, asaas_environment, webhook_token_hash, updated_at
		FROM app_settings
		WHERE id = $1
	`

	var s settings.GatewaySettings
	err := r.db.QueryRow(ctx, query, settingsRowID).Scan(
		&s.ID, &s.AsaasAPIKey, &s.AsaasEnvironment, &s.WebhookTokenHash, &s.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	return &s, nil
}

// Update persists new gateway credentials
func (r *SettingsRepository) Update(ctx context.Context, s *settings.GatewaySettings) error {
	query := `
		UPDATE app_settings
		SET asaas_api_key = $1, asaas_environment = $2, webhook_token_hash = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.db.Exec(ctx, query, s.AsaasAPIKey, s.AsaasEnvironment, s.WebhookTokenHash, time.Now(), settingsRowID)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
