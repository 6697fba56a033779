// internal/repository/postgres/license_plan_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"babylon-billing-service/internal/domain/billing"
	xerrors "babylon-billing-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type LicensePlanRepository struct {
	db *pgxpool.Pool
}

func NewLicensePlanRepository(db *pgxpool.Pool) *LicensePlanRepository {
	return &LicensePlanRepository{db: db}
}

// FindByID retrieves a plan from the catalog
func (r *LicensePlanRepository) FindByID(ctx context.Context, id string) (*billing.LicensePlan, error) {
	query := `
		SELECT id, name, type, price, features, is_active, created_at, updated_at
		FROM license_plans
		WHERE id = $1
	`

	var plan billing.LicensePlan
	var features []string

	err := r.db.QueryRow(ctx, query, id).Scan(
		&plan.ID, &plan.Name, &plan.Type, &plan.Price,
		pq.Array(&features), &plan.IsActive,
		&plan.CreatedAt, &plan.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find license plan: %w", err)
	}

	plan.Features = features
	return &plan, nil
}

// ListActive retrieves the purchasable plan catalog
func (r *LicensePlanRepository) ListActive(ctx context.Context) ([]billing.LicensePlan, error) {
	query := `
		SELECT id, name, type, price, features, is_active, created_at, updated_at
		FROM license_plans
		WHERE is_active = TRUE
		ORDER BY price ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list license plans: %w", err)
	}
	defer rows.Close()

	plans := []billing.LicensePlan{}
	for rows.Next() {
		var plan billing.LicensePlan
		var features []string

		if err := rows.Scan(
			&plan.ID, &plan.Name, &plan.Type, &plan.Price,
			pq.Array(&features), &plan.IsActive,
			&plan.CreatedAt, &plan.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan license plan: %w", err)
		}

		plan.Features = features
		plans = append(plans, plan)
	}

	return plans, nil
}
