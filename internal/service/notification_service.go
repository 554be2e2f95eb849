package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/CaioWing/Arcade/internal/domain"
)

type NotificationService struct {
	sender domain.NotificationSender
	log    *zap.Logger
}

func NewNotificationService(sender domain.NotificationSender, log *zap.Logger) *NotificationService {
	return &NotificationService{sender: sender, log: log}
}

// Notify hands n to the delivery collaborator. It is fire-and-forget: errors
// are logged but not propagated.
func (s *NotificationService) Notify(ctx context.Context, n domain.Notification) {
	if s == nil || s.sender == nil {
		return
	}
	if err := s.sender.Send(ctx, n); err != nil {
		s.log.Warn("failed to send notification", zap.String("title", n.Title), zap.Error(err))
	}
}
