package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CaioWing/Arcade/internal/domain"
)

type PolicyRepo struct {
	pool *pgxpool.Pool
}

func NewPolicyRepo(pool *pgxpool.Pool) *PolicyRepo {
	return &PolicyRepo{pool: pool}
}

func (r *PolicyRepo) Create(ctx context.Context, p *domain.MaintenancePolicy) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO maintenance_policies (name, interval_days, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, p.Name, p.IntervalDays, p.IsActive).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return wrap("insert policy", err)
	}
	return nil
}

func (r *PolicyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MaintenancePolicy, error) {
	p := &domain.MaintenancePolicy{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, interval_days, is_active, created_at
		FROM maintenance_policies WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.IntervalDays, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrap("get policy", err)
	}
	return p, nil
}

func (r *PolicyRepo) List(ctx context.Context) ([]*domain.MaintenancePolicy, error) {
	return r.query(ctx, `
		SELECT id, name, interval_days, is_active, created_at
		FROM maintenance_policies ORDER BY name
	`)
}

func (r *PolicyRepo) ListActive(ctx context.Context) ([]*domain.MaintenancePolicy, error) {
	return r.query(ctx, `
		SELECT id, name, interval_days, is_active, created_at
		FROM maintenance_policies WHERE is_active ORDER BY name
	`)
}

func (r *PolicyRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE maintenance_policies SET is_active = $1 WHERE id = $2
	`, active, id)
	if err != nil {
		return wrap("update policy", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PolicyRepo) query(ctx context.Context, sql string) ([]*domain.MaintenancePolicy, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, wrap("list policies", err)
	}
	defer rows.Close()

	policies := []*domain.MaintenancePolicy{}
	for rows.Next() {
		p := &domain.MaintenancePolicy{}
		if err := rows.Scan(&p.ID, &p.Name, &p.IntervalDays, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate policies", err)
	}
	return policies, nil
}
