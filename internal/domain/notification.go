package domain

import "context"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type Notification struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	UserID   *string  `json:"user_id,omitempty"`
}

// NotificationSender delivers notifications. Delivery itself is owned by the
// collaborator; callers treat it as fire-and-forget.
type NotificationSender interface {
	Send(ctx context.Context, n Notification) error
}
