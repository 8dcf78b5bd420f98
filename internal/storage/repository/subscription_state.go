package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// GetSubscriptionState возвращает состояние подписки пользователя.
// Отсутствие строки не является ошибкой: возвращается nil, nil.
func (s *Storage) GetSubscriptionState(ctx context.Context, principalUID string) (*models.SubscriptionState, error) {
	const op = "storage.GetSubscriptionState"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT principal_uid, status, plan_type, period_start, period_end, device_slots
			  FROM subscription_states
			  WHERE principal_uid = $1`
	row := s.DB.QueryRowContext(ctx, query, principalUID)

	var result models.SubscriptionState
	var periodEnd sql.NullTime
	err := row.Scan(&result.PrincipalUID, &result.Status, &result.PlanType,
		&result.PeriodStart, &periodEnd, &result.DeviceSlots)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if periodEnd.Valid {
		result.PeriodEnd = &periodEnd.Time
	}
	return &result, nil
}

// UpsertSubscriptionState вставляет либо обновляет состояние подписки
// пользователя. Последняя запись побеждает на уровне строки.
func (s *Storage) UpsertSubscriptionState(ctx context.Context, state models.SubscriptionState) error {
	const op = "storage.UpsertSubscriptionState"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var periodEnd sql.NullTime
	if state.PeriodEnd != nil {
		periodEnd = sql.NullTime{Time: *state.PeriodEnd, Valid: true}
	}

	query := `INSERT INTO subscription_states (principal_uid, status, plan_type, period_start, period_end, device_slots, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, NOW())
			  ON CONFLICT (principal_uid) DO UPDATE
			  SET status = EXCLUDED.status,
			      plan_type = EXCLUDED.plan_type,
			      period_start = EXCLUDED.period_start,
			      period_end = EXCLUDED.period_end,
			      device_slots = EXCLUDED.device_slots,
			      updated_at = NOW()`
	_, err := s.DB.ExecContext(ctx, query,
		state.PrincipalUID, state.Status, state.PlanType,
		state.PeriodStart, periodEnd, state.DeviceSlots)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
