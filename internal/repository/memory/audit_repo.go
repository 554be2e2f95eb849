package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CaioWing/Arcade/internal/domain"
)

type AuditRepo struct {
	mu      sync.RWMutex
	entries []*domain.AuditEntry
}

func NewAuditRepo() *AuditRepo {
	return &AuditRepo{}
}

func (r *AuditRepo) Create(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	c := *entry
	r.entries = append(r.entries, &c)
	return nil
}

func (r *AuditRepo) List(_ context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, int, error) {
	r.mu.RLock()
	var result []*domain.AuditEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if f.Actor != nil && e.Actor != *f.Actor {
			continue
		}
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		if f.Resource != nil && e.Resource != *f.Resource {
			continue
		}
		if f.ResourceID != nil && e.ResourceID != *f.ResourceID {
			continue
		}
		if f.Since != nil && e.CreatedAt.Before(*f.Since) {
			continue
		}
		c := *e
		result = append(result, &c)
	}
	r.mu.RUnlock()

	if f.SortOrder == "asc" {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}
	total := len(result)
	return paginate(result, f.Page, f.PerPage), total, nil
}

// NotificationLog records notifications in memory. Demo mode has no delivery channel.
type NotificationLog struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func NewNotificationLog() *NotificationLog {
	return &NotificationLog{}
}

func (l *NotificationLog) Send(_ context.Context, n domain.Notification) error {
	l.mu.Lock()
	l.sent = append(l.sent, n)
	l.mu.Unlock()
	return nil
}

func (l *NotificationLog) Sent() []domain.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Notification(nil), l.sent...)
}
