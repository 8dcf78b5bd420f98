// Package session реализует проверку действительности и завершение сессий.
package session

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
)

// SessionRepository описывает операции хранилища сессий.
type SessionRepository interface {
	SessionExists(ctx context.Context, principalUID, sessionID string) (bool, error)
	DeleteSession(ctx context.Context, principalUID, sessionID string) (int, error)
}

// Service отвечает за жизненный цикл уже допущенных сессий.
type Service struct {
	sessions SessionRepository
	log      *slog.Logger
}

// New создаёт сервис сессий.
func New(sessions SessionRepository, log *slog.Logger) *Service {
	return &Service{sessions: sessions, log: log}
}

// IsValid сообщает, числится ли сессия среди допущенных.
// Недействительной сессия признаётся только при достоверном отсутствии
// строки: ошибка хранилища трактуется как действительная сессия, чтобы
// сбой инфраструктуры не выбрасывал устройства.
func (s *Service) IsValid(ctx context.Context, principalUID, sessionID string) bool {
	exists, err := s.sessions.SessionExists(ctx, principalUID, sessionID)
	if err != nil {
		s.log.Warn("session check failed, treating session as valid", sl.Err(err),
			slog.String("principal_uid", principalUID))
		return true
	}
	return exists
}

// SignOut удаляет сессию устройства. Удаление необязательное: ошибка
// логируется и не возвращается, выход завершается в любом случае.
func (s *Service) SignOut(ctx context.Context, principalUID, sessionID string) {
	deleted, err := s.sessions.DeleteSession(ctx, principalUID, sessionID)
	if err != nil {
		s.log.Warn("failed to delete session on sign out", sl.Err(err),
			slog.String("principal_uid", principalUID))
		return
	}
	if deleted == 0 {
		s.log.Debug("sign out for unknown session",
			slog.String("principal_uid", principalUID),
			slog.String("session_id", sessionID))
	}
}
