package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CaioWing/Arcade/internal/domain"
)

const deviceColumns = `id, serial_number, category, status, maintenance_status,
	usage_metrics, health, created_at, updated_at`

type DeviceRepo struct {
	pool *pgxpool.Pool
}

func NewDeviceRepo(pool *pgxpool.Pool) *DeviceRepo {
	return &DeviceRepo{pool: pool}
}

func scanDevice(row pgx.Row) (*domain.Device, error) {
	d := &domain.Device{}
	var metricsJSON []byte
	if err := row.Scan(
		&d.ID, &d.SerialNumber, &d.Category, &d.Status, &d.MaintenanceStatus,
		&metricsJSON, &d.Health, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metricsJSON, &d.UsageMetrics); err != nil {
		return nil, fmt.Errorf("unmarshal usage metrics: %w", err)
	}
	return d, nil
}

func (r *DeviceRepo) Create(ctx context.Context, d *domain.Device) error {
	metricsJSON, err := json.Marshal(d.UsageMetrics)
	if err != nil {
		return fmt.Errorf("marshal usage metrics: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO devices (serial_number, category, status, maintenance_status, usage_metrics, health)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, d.SerialNumber, d.Category, d.Status, d.MaintenanceStatus, metricsJSON, d.Health).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return wrap("insert device", err)
	}
	return nil
}

func (r *DeviceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	d, err := scanDevice(r.pool.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrap("get device", err)
	}
	return d, nil
}

func (r *DeviceRepo) List(ctx context.Context, f domain.DeviceFilter) ([]*domain.Device, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}

	where := "WHERE 1=1"
	args := []any{}
	argIdx := 1

	if f.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *f.Status)
		argIdx++
	}
	if f.MaintenanceStatus != nil {
		where += fmt.Sprintf(" AND maintenance_status = $%d", argIdx)
		args = append(args, *f.MaintenanceStatus)
		argIdx++
	}
	if f.Category != nil {
		// Same normalization as domain.CategoryKey.
		where += fmt.Sprintf(" AND lower(regexp_replace(btrim(category), '\\s+', '-', 'g')) = $%d", argIdx)
		args = append(args, domain.CategoryKey(*f.Category))
		argIdx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM devices "+where, args...).Scan(&total); err != nil {
		return nil, 0, wrap("count devices", err)
	}

	orderCol := "created_at"
	switch f.SortBy {
	case "created_at", "updated_at", "category", "status", "maintenance_status", "serial_number", "health":
		orderCol = f.SortBy
	}
	orderDir := "DESC"
	if f.SortOrder == "asc" {
		orderDir = "ASC"
	}

	offset := (f.Page - 1) * f.PerPage
	query := fmt.Sprintf(`
		SELECT %s FROM devices %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, deviceColumns, where, orderCol, orderDir, argIdx, argIdx+1)
	args = append(args, f.PerPage, offset)

	devices, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return devices, total, nil
}

func (r *DeviceRepo) ListAll(ctx context.Context) ([]*domain.Device, error) {
	return r.query(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY serial_number`)
}

func (r *DeviceRepo) query(ctx context.Context, sql string, args ...any) ([]*domain.Device, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrap("list devices", err)
	}
	defer rows.Close()

	devices := []*domain.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate devices", err)
	}
	return devices, nil
}

// Update applies patch in a single statement. Preconditions become part of the
// WHERE clause, so a row that changed underneath the caller is left untouched.
func (r *DeviceRepo) Update(ctx context.Context, id uuid.UUID, patch domain.DevicePatch) (*domain.Device, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{}
	argIdx := 1

	add := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, v)
		argIdx++
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.MaintenanceStatus != nil {
		add("maintenance_status", *patch.MaintenanceStatus)
	}
	if patch.UsageMetrics != nil {
		metricsJSON, err := json.Marshal(patch.UsageMetrics)
		if err != nil {
			return nil, fmt.Errorf("marshal usage metrics: %w", err)
		}
		add("usage_metrics", metricsJSON)
	}
	if patch.Health != nil {
		add("health", *patch.Health)
	}

	where := fmt.Sprintf("id = $%d", argIdx)
	args = append(args, id)
	argIdx++
	if patch.ExpectStatus != nil {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *patch.ExpectStatus)
		argIdx++
	}
	if patch.ExpectMaintenanceStatus != nil {
		where += fmt.Sprintf(" AND maintenance_status = $%d", argIdx)
		args = append(args, *patch.ExpectMaintenanceStatus)
	}

	query := fmt.Sprintf(`UPDATE devices SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), where, deviceColumns)

	d, err := scanDevice(r.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrap("update device", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM devices WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, wrap("check device", err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	return nil, domain.ErrConflict
}

func (r *DeviceRepo) CountByStatus(ctx context.Context) (map[domain.DeviceStatus]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM devices GROUP BY status
	`)
	if err != nil {
		return nil, wrap("count by status", err)
	}
	defer rows.Close()

	counts := make(map[domain.DeviceStatus]int)
	for rows.Next() {
		var status domain.DeviceStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
