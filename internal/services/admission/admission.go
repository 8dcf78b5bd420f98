// Package admission реализует контроль допуска сессий устройств.
//
// Для каждого пользователя поддерживается не более N одновременных сессий.
// При превышении ёмкости вытесняются старейшие сессии по времени допуска.
// Любая ошибка хранилища трактуется в пользу пользователя: допуск никогда
// не блокируется из-за сбоя инфраструктуры.
package admission

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/device-gatekeeper/internal/metrics"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// SessionRepository описывает операции хранилища сессий.
type SessionRepository interface {
	TouchSession(ctx context.Context, principalUID, sessionID, deviceInfo string) (int, error)
	CreateSession(ctx context.Context, session models.Session) error
	ListSessions(ctx context.Context, principalUID string) ([]*models.Session, error)
	DeleteSessionsByIDs(ctx context.Context, principalUID string, sessionIDs []string) (int, error)
}

// UserProvider возвращает данные пользователя для события вытеснения.
type UserProvider interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// EventPublisher публикует события в очередь. Публикация необязательна:
// её сбой не влияет на результат допуска.
type EventPublisher interface {
	PublishEvictionEvent(ctx context.Context, event models.EvictionEvent) error
}

// Service управляет допуском сессий устройств.
type Service struct {
	sessions  SessionRepository
	users     UserProvider
	publisher EventPublisher
	log       *slog.Logger
	now       func() time.Time
}

// New создаёт сервис допуска. Publisher может быть nil, тогда события
// вытеснения не публикуются.
func New(sessions SessionRepository, users UserProvider, publisher EventPublisher, log *slog.Logger) *Service {
	return &Service{
		sessions:  sessions,
		users:     users,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Admit допускает сессию устройства в пределах ёмкости capacity.
//
// Уже известная сессия обновляется на месте и никогда не вызывает
// вытеснение. Новая сессия сначала освобождает место, удаляя старейшие
// сессии сверх ёмкости, затем вставляется. Между удалением и вставкой нет
// транзакции: при гонке двух допусков счётчик может кратковременно
// превысить ёмкость, следующий допуск его выровняет.
//
// Admit никогда не возвращает ошибку: сбой хранилища логируется, а
// устройство считается допущенным.
func (s *Service) Admit(ctx context.Context, principalUID, sessionID, deviceInfo string, capacity int) {
	if capacity < 1 {
		capacity = 1
	}

	updated, err := s.sessions.TouchSession(ctx, principalUID, sessionID, deviceInfo)
	if err != nil {
		s.log.Error("failed to touch session, admitting anyway", sl.Err(err),
			slog.String("principal_uid", principalUID))
		metrics.AdmissionFailOpenTotal.Inc()
		return
	}
	if updated > 0 {
		metrics.ReadmissionsTotal.Inc()
		return
	}

	existing, err := s.sessions.ListSessions(ctx, principalUID)
	if err != nil {
		s.log.Error("failed to list sessions, admitting anyway", sl.Err(err),
			slog.String("principal_uid", principalUID))
		metrics.AdmissionFailOpenTotal.Inc()
		return
	}

	// После вставки будет len(existing)+1 сессий, лишние вытесняются
	// старейшими вперёд.
	excess := len(existing) + 1 - capacity
	if excess > 0 {
		evicted := existing[:excess]
		ids := make([]string, 0, len(evicted))
		for _, session := range evicted {
			ids = append(ids, session.SessionID)
		}
		if _, err := s.sessions.DeleteSessionsByIDs(ctx, principalUID, ids); err != nil {
			s.log.Error("failed to evict oldest sessions, admitting anyway", sl.Err(err),
				slog.String("principal_uid", principalUID))
			metrics.AdmissionFailOpenTotal.Inc()
		} else {
			metrics.EvictionsTotal.Add(float64(len(evicted)))
			s.publishEvictions(ctx, principalUID, evicted)
		}
	}

	if err := s.sessions.CreateSession(ctx, models.Session{
		PrincipalUID: principalUID,
		SessionID:    sessionID,
		DeviceInfo:   deviceInfo,
	}); err != nil {
		s.log.Error("failed to create session, admitting anyway", sl.Err(err),
			slog.String("principal_uid", principalUID))
		metrics.AdmissionFailOpenTotal.Inc()
		return
	}
	metrics.AdmissionsTotal.Inc()
}

func (s *Service) publishEvictions(ctx context.Context, principalUID string, evicted []*models.Session) {
	if s.publisher == nil {
		return
	}

	var email, username string
	user, err := s.users.GetUser(ctx, principalUID)
	if err != nil {
		s.log.Warn("failed to load user for eviction event", sl.Err(err),
			slog.String("principal_uid", principalUID))
	} else {
		email = user.Email
		username = user.Username
	}

	for _, session := range evicted {
		event := models.EvictionEvent{
			PrincipalUID: principalUID,
			Email:        email,
			Username:     username,
			SessionID:    session.SessionID,
			DeviceInfo:   session.DeviceInfo,
			EvictedAt:    s.now().UTC(),
		}
		if err := s.publisher.PublishEvictionEvent(ctx, event); err != nil {
			s.log.Warn("failed to publish eviction event", sl.Err(err),
				slog.String("session_id", session.SessionID))
		}
	}
}
