package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/maatcontabil/portal/internal/user"
)

// AdminLister resolve os destinatários administrativos.
type AdminLister interface {
	ListAdmins(ctx context.Context) ([]user.User, error)
}

// Service grava notificações e publica o aviso em tempo real no Redis.
// A publicação é melhor esforço; a linha no banco é a fonte de verdade.
type Service struct {
	repo   *Repository
	admins AdminLister
	redis  *redis.Client
	logger zerolog.Logger
}

// NewService cria instância do serviço.
func NewService(repo *Repository, admins AdminLister, rdb *redis.Client, logger zerolog.Logger) *Service {
	return &Service{repo: repo, admins: admins, redis: rdb, logger: logger}
}

// NotifyUser grava e publica um aviso para o usuário.
func (s *Service) NotifyUser(ctx context.Context, userID uuid.UUID, title, body string) error {
	n := Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return err
	}
	s.publish(ctx, n)
	return nil
}

// NotifyAdmins entrega o aviso a todos os administradores ativos.
func (s *Service) NotifyAdmins(ctx context.Context, title, body string) error {
	admins, err := s.admins.ListAdmins(ctx)
	if err != nil {
		return err
	}
	for _, admin := range admins {
		if err := s.NotifyUser(ctx, admin.ID, title, body); err != nil {
			s.logger.Warn().Err(err).Str("user_id", admin.ID.String()).Msg("falha ao notificar administrador")
		}
	}
	return nil
}

// List devolve as notificações do usuário.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

// MarkRead marca a notificação como lida.
func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *Service) publish(ctx context.Context, n Notification) {
	if s.redis == nil {
		return
	}
	channel := "notify:user:" + n.UserID.String()
	if err := s.redis.Publish(ctx, channel, n.Title).Err(); err != nil {
		s.logger.Debug().Err(err).Str("channel", channel).Msg("publicação de notificação falhou")
	}
}
