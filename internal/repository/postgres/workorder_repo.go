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

const workOrderColumns = `id, device_id, title, description, status, priority,
	created_at, updated_at, completed_at`

type WorkOrderRepo struct {
	pool *pgxpool.Pool
}

func NewWorkOrderRepo(pool *pgxpool.Pool) *WorkOrderRepo {
	return &WorkOrderRepo{pool: pool}
}

func scanWorkOrder(row pgx.Row) (*domain.WorkOrder, error) {
	wo := &domain.WorkOrder{}
	err := row.Scan(
		&wo.ID, &wo.DeviceID, &wo.Title, &wo.Description, &wo.Status, &wo.Priority,
		&wo.CreatedAt, &wo.UpdatedAt, &wo.CompletedAt,
	)
	return wo, err
}

func (r *WorkOrderRepo) Create(ctx context.Context, wo *domain.WorkOrder) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO work_orders (device_id, title, description, status, priority)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, wo.DeviceID, wo.Title, wo.Description, wo.Status, wo.Priority).
		Scan(&wo.ID, &wo.CreatedAt, &wo.UpdatedAt)
	if err != nil {
		return wrap("insert work order", err)
	}
	return nil
}

func (r *WorkOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkOrder, error) {
	wo, err := scanWorkOrder(r.pool.QueryRow(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrap("get work order", err)
	}
	return wo, nil
}

func (r *WorkOrderRepo) List(ctx context.Context, f domain.WorkOrderFilter) ([]*domain.WorkOrder, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}

	where := "WHERE 1=1"
	args := []any{}
	argIdx := 1

	if f.DeviceID != nil {
		where += fmt.Sprintf(" AND device_id = $%d", argIdx)
		args = append(args, *f.DeviceID)
		argIdx++
	}
	if f.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *f.Status)
		argIdx++
	}
	if f.Priority != nil {
		where += fmt.Sprintf(" AND priority = $%d", argIdx)
		args = append(args, *f.Priority)
		argIdx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM work_orders "+where, args...).Scan(&total); err != nil {
		return nil, 0, wrap("count work orders", err)
	}

	orderDir := "DESC"
	if f.SortOrder == "asc" {
		orderDir = "ASC"
	}
	offset := (f.Page - 1) * f.PerPage
	query := fmt.Sprintf(`
		SELECT %s FROM work_orders %s
		ORDER BY created_at %s
		LIMIT $%d OFFSET $%d
	`, workOrderColumns, where, orderDir, argIdx, argIdx+1)
	args = append(args, f.PerPage, offset)

	orders, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *WorkOrderRepo) ListOpen(ctx context.Context, deviceID uuid.UUID, priorities []domain.WorkOrderPriority) ([]*domain.WorkOrder, error) {
	statuses := make([]string, len(domain.OpenWorkOrderStatuses))
	for i, s := range domain.OpenWorkOrderStatuses {
		statuses[i] = string(s)
	}
	if len(priorities) == 0 {
		return r.query(ctx, `
			SELECT `+workOrderColumns+` FROM work_orders
			WHERE device_id = $1 AND status = ANY($2)
		`, deviceID, statuses)
	}

	prio := make([]string, len(priorities))
	for i, p := range priorities {
		prio[i] = string(p)
	}
	return r.query(ctx, `
		SELECT `+workOrderColumns+` FROM work_orders
		WHERE device_id = $1 AND status = ANY($2) AND priority = ANY($3)
	`, deviceID, statuses, prio)
}

func (r *WorkOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WorkOrderStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE work_orders
		SET status = $1,
		    updated_at = NOW(),
		    completed_at = CASE WHEN $1::text = 'Completed' THEN NOW() ELSE completed_at END
		WHERE id = $2
	`, status, id)
	if err != nil {
		return wrap("update work order status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *WorkOrderRepo) query(ctx context.Context, sql string, args ...any) ([]*domain.WorkOrder, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrap("list work orders", err)
	}
	defer rows.Close()

	orders := []*domain.WorkOrder{}
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work order: %w", err)
		}
		orders = append(orders, wo)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate work orders", err)
	}
	return orders, nil
}
