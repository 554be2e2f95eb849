package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CaioWing/Arcade/internal/domain"
)

// NotificationRepo hands notifications to the delivery collaborator by
// queueing them in the notifications table.
type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Send(ctx context.Context, n domain.Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (title, message, severity, user_id)
		VALUES ($1, $2, $3, $4)
	`, n.Title, n.Message, n.Severity, n.UserID)
	if err != nil {
		return wrap("insert notification", err)
	}
	return nil
}
