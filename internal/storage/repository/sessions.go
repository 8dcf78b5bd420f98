package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// TouchSession обновляет описание устройства и отметку last_seen_at
// существующей сессии, возвращает количество обновлённых строк.
// Ноль строк означает, что сессия ещё не допущена.
func (s *Storage) TouchSession(ctx context.Context, principalUID, sessionID, deviceInfo string) (int, error) {
	const op = "storage.TouchSession"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE sessions
			  SET device_info = $3, last_seen_at = NOW()
			  WHERE principal_uid = $1 AND session_id = $2`
	result, err := s.DB.ExecContext(ctx, query, principalUID, sessionID, deviceInfo)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// CreateSession вставляет новую строку сессии устройства.
func (s *Storage) CreateSession(ctx context.Context, session models.Session) error {
	const op = "storage.CreateSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO sessions (principal_uid, session_id, device_info, created_at, last_seen_at)
			  VALUES ($1, $2, $3, NOW(), NOW())`
	_, err := s.DB.ExecContext(ctx, query,
		session.PrincipalUID, session.SessionID, session.DeviceInfo)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListSessions возвращает все сессии пользователя, старейшие первыми.
// Совпадения created_at разрешаются порядком вставки (id).
func (s *Storage) ListSessions(ctx context.Context, principalUID string) ([]*models.Session, error) {
	const op = "storage.ListSessions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, principal_uid, session_id, device_info, created_at, last_seen_at
			  FROM sessions
			  WHERE principal_uid = $1
			  ORDER BY created_at ASC, id ASC`
	rows, err := s.DB.QueryContext(ctx, query, principalUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Session
	for rows.Next() {
		var item models.Session
		if err := rows.Scan(&item.ID, &item.PrincipalUID, &item.SessionID,
			&item.DeviceInfo, &item.CreatedAt, &item.LastSeenAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SessionExists проверяет существование сессии устройства.
// Возвращает false без ошибки только при достоверном отсутствии строки.
func (s *Storage) SessionExists(ctx context.Context, principalUID, sessionID string) (bool, error) {
	const op = "storage.SessionExists"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT 1 FROM sessions WHERE principal_uid = $1 AND session_id = $2`
	var one int
	err := s.DB.QueryRowContext(ctx, query, principalUID, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// DeleteSession удаляет сессию устройства, возвращает количество удалённых строк.
func (s *Storage) DeleteSession(ctx context.Context, principalUID, sessionID string) (int, error) {
	const op = "storage.DeleteSession"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM sessions WHERE principal_uid = $1 AND session_id = $2`
	result, err := s.DB.ExecContext(ctx, query, principalUID, sessionID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// DeleteSessionsByIDs удаляет набор сессий пользователя по их session_id.
func (s *Storage) DeleteSessionsByIDs(ctx context.Context, principalUID string, sessionIDs []string) (int, error) {
	const op = "storage.DeleteSessionsByIDs"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	query := `DELETE FROM sessions WHERE principal_uid = $1 AND session_id = ANY($2)`
	result, err := s.DB.ExecContext(ctx, query, principalUID, sessionIDs)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
