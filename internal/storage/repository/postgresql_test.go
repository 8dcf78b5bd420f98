package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

func TestStorage_Users(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	uid, err := storage.RegisterUser(ctx, models.User{
		Email:        "ivan@example.com",
		Username:     "ivan",
		PasswordHash: "hashedpassword",
		Role:         "user",
	})
	require.NoError(t, err)
	require.NotEmpty(t, uid)

	user, err := storage.GetUser(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "ivan", user.Username)
	assert.Equal(t, "ivan@example.com", user.Email)
	assert.Equal(t, "user", user.Role)
	assert.False(t, user.CreatedAt.IsZero())

	byName, err := storage.GetUserByUsername(ctx, "ivan")
	require.NoError(t, err)
	assert.Equal(t, uid, byName.UID)

	role, err := storage.GetUserRole(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "user", role)

	// Неизвестный пользователь: пустая роль без ошибки
	role, err = storage.GetUserRole(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestStorage_Sessions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)

	uid := factory.CreateUser(t, "petr", "petr@example.com", "hashedpassword", "user")
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	oldest := factory.CreateSession(t, uid, "phone", base)
	middle := factory.CreateSession(t, uid, "laptop", base.Add(time.Minute))
	// Совпадающее created_at: порядок разрешается по id
	newest := factory.CreateSession(t, uid, "tablet", base.Add(time.Minute))

	sessions, err := storage.ListSessions(ctx, uid)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, oldest, sessions[0].SessionID)
	assert.Equal(t, middle, sessions[1].SessionID)
	assert.Equal(t, newest, sessions[2].SessionID)

	exists, err := storage.SessionExists(ctx, uid, oldest)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = storage.SessionExists(ctx, uid, uuid.New().String())
	require.NoError(t, err)
	assert.False(t, exists)

	updated, err := storage.TouchSession(ctx, uid, oldest, "phone v2")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	updated, err = storage.TouchSession(ctx, uid, uuid.New().String(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, updated)

	deleted, err := storage.DeleteSessionsByIDs(ctx, uid, []string{oldest, middle})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	deleted, err = storage.DeleteSessionsByIDs(ctx, uid, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	deleted, err = storage.DeleteSession(ctx, uid, newest)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	deleted, err = storage.DeleteSession(ctx, uid, newest)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	sessions, err = storage.ListSessions(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestStorage_CreateSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)

	uid := factory.CreateUser(t, "anna", "anna@example.com", "hashedpassword", "user")
	sessionID := uuid.New().String()

	err := storage.CreateSession(ctx, models.Session{
		PrincipalUID: uid,
		SessionID:    sessionID,
		DeviceInfo:   "browser tab",
	})
	require.NoError(t, err)

	sessions, err := storage.ListSessions(ctx, uid)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, sessionID, sessions[0].SessionID)
	assert.Equal(t, "browser tab", sessions[0].DeviceInfo)
	assert.False(t, sessions[0].CreatedAt.IsZero())

	// Повторная вставка того же session_id нарушает уникальность
	err = storage.CreateSession(ctx, models.Session{
		PrincipalUID: uid,
		SessionID:    sessionID,
		DeviceInfo:   "browser tab",
	})
	require.Error(t, err)
}

func TestStorage_SubscriptionState(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)

	uid := factory.CreateUser(t, "olga", "olga@example.com", "hashedpassword", "user")

	state, err := storage.GetSubscriptionState(ctx, uid)
	require.NoError(t, err)
	assert.Nil(t, state)

	periodStart := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.Add(7 * 24 * time.Hour)

	err = storage.UpsertSubscriptionState(ctx, models.SubscriptionState{
		PrincipalUID: uid,
		Status:       models.StatusPendingPayment,
		PlanType:     models.PlanMonthly,
		PeriodStart:  periodStart,
		PeriodEnd:    &periodEnd,
		DeviceSlots:  2,
	})
	require.NoError(t, err)

	state, err = storage.GetSubscriptionState(ctx, uid)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, models.StatusPendingPayment, state.Status)
	assert.Equal(t, models.PlanMonthly, state.PlanType)
	assert.Equal(t, 2, state.DeviceSlots)
	require.NotNil(t, state.PeriodEnd)
	assert.True(t, state.PeriodEnd.Equal(periodEnd))

	// Повторная запись обновляет ту же строку, period_end может обнулиться
	err = storage.UpsertSubscriptionState(ctx, models.SubscriptionState{
		PrincipalUID: uid,
		Status:       models.StatusInactive,
		PlanType:     "",
		PeriodStart:  periodStart,
		PeriodEnd:    nil,
		DeviceSlots:  1,
	})
	require.NoError(t, err)

	state, err = storage.GetSubscriptionState(ctx, uid)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, models.StatusInactive, state.Status)
	assert.Nil(t, state.PeriodEnd)
	assert.Equal(t, 1, state.DeviceSlots)
}

func TestStorage_CheckDatabaseReady(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	require.NoError(t, storage.CheckDatabaseReady(context.Background()))
}
