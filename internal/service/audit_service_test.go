package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/CaioWing/Arcade/internal/domain"
)

func TestAuditService_Log(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, zap.NewNop())

	svc.Log(context.Background(), &domain.AuditEntry{
		Actor:     "admin@arcade.local",
		ActorType: domain.ActorManagement,
		Action:    "device.rent",
		Resource:  "device",
	})

	entries, total, _ := svc.List(context.Background(), domain.AuditFilter{})
	if total != 1 {
		t.Fatalf("expected 1 entry, got %d", total)
	}
	if entries[0].Details == nil {
		t.Fatal("expected empty details map, got nil")
	}
}

func TestAuditService_LogSwallowsErrors(t *testing.T) {
	repo := &mockAuditRepo{err: errors.New("db down")}
	svc := NewAuditService(repo, zap.NewNop())

	// Must not panic or block.
	svc.Log(context.Background(), &domain.AuditEntry{Action: "evaluation.run"})

	if _, total, _ := svc.List(context.Background(), domain.AuditFilter{}); total != 0 {
		t.Fatalf("expected no entries, got %d", total)
	}
}

func TestNotificationService_NilSafe(t *testing.T) {
	var svc *NotificationService
	svc.Notify(context.Background(), domain.Notification{Title: "x"})

	NewNotificationService(nil, zap.NewNop()).Notify(context.Background(), domain.Notification{Title: "x"})
}

func TestNotificationService_SwallowsErrors(t *testing.T) {
	sender := &mockSender{err: errors.New("smtp down")}
	NewNotificationService(sender, zap.NewNop()).Notify(context.Background(), domain.Notification{Title: "x"})

	sender.err = nil
	NewNotificationService(sender, zap.NewNop()).Notify(context.Background(), domain.Notification{Title: "y", Severity: domain.SeverityInfo})
	if got := sender.all(); len(got) != 1 || got[0].Title != "y" {
		t.Fatalf("unexpected notifications %+v", got)
	}
}
