package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/device-gatekeeper/internal/billing"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

type MockUserProvider struct {
	mock.Mock
}

func (m *MockUserProvider) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockStateRepository struct {
	mock.Mock
}

func (m *MockStateRepository) GetSubscriptionState(ctx context.Context, principalUID string) (*models.SubscriptionState, error) {
	args := m.Called(ctx, principalUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionState), args.Error(1)
}

func (m *MockStateRepository) UpsertSubscriptionState(ctx context.Context, state models.SubscriptionState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

type MockBillingProvider struct {
	mock.Mock
}

func (m *MockBillingProvider) FindCustomerByEmail(ctx context.Context, email string) (*billing.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Customer), args.Error(1)
}

func (m *MockBillingProvider) ListActiveSubscriptions(ctx context.Context, customerID string) ([]billing.Subscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Subscription), args.Error(1)
}

type StubSlotCounter struct {
	capacity int
}

func (s *StubSlotCounter) Capacity(ctx context.Context, email string) int {
	return s.capacity
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestService(users *MockUserProvider, states *MockStateRepository, provider *MockBillingProvider, now time.Time) *Service {
	service := New(users, states, provider, &StubSlotCounter{capacity: 1}, nil, newNoopLogger())
	service.now = func() time.Time { return now }
	return service
}

var accountCreated = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testUser() *models.User {
	return &models.User{
		UID:       "user-1",
		Email:     "u@example.com",
		Username:  "user-1",
		CreatedAt: accountCreated,
	}
}

func TestService_Resolve_TrialWindow(t *testing.T) {
	tests := []struct {
		name          string
		now           time.Time
		wantAccess    bool
		wantTrialDays int
		wantStatus    string
	}{
		{
			name:          "one day in, two days remaining",
			now:           accountCreated.Add(24 * time.Hour),
			wantAccess:    true,
			wantTrialDays: 2,
			wantStatus:    models.StatusTrialing,
		},
		{
			name:          "four days in, trial over",
			now:           accountCreated.Add(4 * 24 * time.Hour),
			wantAccess:    false,
			wantTrialDays: 0,
			wantStatus:    models.StatusInactive,
		},
		{
			name:          "one second before trial end still counts as a day",
			now:           accountCreated.Add(3*24*time.Hour - time.Second),
			wantAccess:    true,
			wantTrialDays: 1,
			wantStatus:    models.StatusTrialing,
		},
		{
			name:          "exactly at trial end access denied",
			now:           accountCreated.Add(3 * 24 * time.Hour),
			wantAccess:    false,
			wantTrialDays: 0,
			wantStatus:    models.StatusInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserProvider)
			states := new(MockStateRepository)
			provider := new(MockBillingProvider)

			users.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
			provider.On("FindCustomerByEmail", mock.Anything, "u@example.com").Return(nil, nil).Once()
			states.On("UpsertSubscriptionState", mock.Anything, mock.MatchedBy(func(s models.SubscriptionState) bool {
				return s.Status == tt.wantStatus
			})).Return(nil).Once()

			service := newTestService(users, states, provider, tt.now)
			info, err := service.Resolve(context.Background(), "user-1")

			require.NoError(t, err)
			assert.Equal(t, tt.wantAccess, info.Subscribed)
			assert.Equal(t, tt.wantTrialDays, info.TrialDaysRemaining)
			assert.Equal(t, accountCreated.Add(3*24*time.Hour), info.TrialEnd)
			users.AssertExpectations(t)
			states.AssertExpectations(t)
			provider.AssertExpectations(t)
		})
	}
}

func TestService_Resolve_ActiveSubscription(t *testing.T) {
	now := accountCreated.Add(30 * 24 * time.Hour)
	periodEnd := now.Add(20 * 24 * time.Hour)

	users := new(MockUserProvider)
	states := new(MockStateRepository)
	provider := new(MockBillingProvider)

	users.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
	provider.On("FindCustomerByEmail", mock.Anything, "u@example.com").
		Return(&billing.Customer{ID: "cus_1", Email: "u@example.com"}, nil).Once()
	provider.On("ListActiveSubscriptions", mock.Anything, "cus_1").
		Return([]billing.Subscription{{
			ID:               "sub_1",
			Status:           "active",
			BillingInterval:  billing.IntervalMonth,
			CurrentPeriodEnd: periodEnd,
		}}, nil).Once()
	states.On("UpsertSubscriptionState", mock.Anything, mock.MatchedBy(func(s models.SubscriptionState) bool {
		return s.Status == models.StatusActive && s.PlanType == models.PlanMonthly &&
			s.PeriodEnd != nil && s.PeriodEnd.Equal(periodEnd)
	})).Return(nil).Once()

	service := newTestService(users, states, provider, now)
	info, err := service.Resolve(context.Background(), "user-1")

	require.NoError(t, err)
	assert.True(t, info.Subscribed)
	assert.False(t, info.IsTrial)
	assert.Equal(t, models.PlanMonthly, info.PlanType)
	require.NotNil(t, info.SubscriptionEnd)
	assert.True(t, info.SubscriptionEnd.Equal(periodEnd))
	states.AssertExpectations(t)
}

func TestService_Resolve_GracePeriodNotClobbered(t *testing.T) {
	now := accountCreated.Add(30 * 24 * time.Hour)
	graceEnd := now.Add(5 * 24 * time.Hour)

	users := new(MockUserProvider)
	states := new(MockStateRepository)
	provider := new(MockBillingProvider)

	users.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
	provider.On("FindCustomerByEmail", mock.Anything, "u@example.com").
		Return(&billing.Customer{ID: "cus_1"}, nil).Once()
	provider.On("ListActiveSubscriptions", mock.Anything, "cus_1").
		Return([]billing.Subscription{}, nil).Once()
	states.On("GetSubscriptionState", mock.Anything, "user-1").
		Return(&models.SubscriptionState{
			PrincipalUID: "user-1",
			Status:       models.StatusPendingPayment,
			PlanType:     models.PlanMonthly,
			PeriodEnd:    &graceEnd,
		}, nil).Once()

	service := newTestService(users, states, provider, now)
	info, err := service.Resolve(context.Background(), "user-1")

	require.NoError(t, err)
	assert.True(t, info.Subscribed)
	require.NotNil(t, info.SubscriptionEnd)
	assert.True(t, info.SubscriptionEnd.Equal(graceEnd))
	// Действующий льготный период не перезаписывается.
	states.AssertNotCalled(t, "UpsertSubscriptionState", mock.Anything, mock.Anything)
}

func TestService_Resolve_ExpiredGraceDowngraded(t *testing.T) {
	now := accountCreated.Add(30 * 24 * time.Hour)
	graceEnd := now.Add(-time.Hour)

	users := new(MockUserProvider)
	states := new(MockStateRepository)
	provider := new(MockBillingProvider)

	users.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
	provider.On("FindCustomerByEmail", mock.Anything, "u@example.com").
		Return(&billing.Customer{ID: "cus_1"}, nil).Once()
	provider.On("ListActiveSubscriptions", mock.Anything, "cus_1").
		Return([]billing.Subscription{}, nil).Once()
	states.On("GetSubscriptionState", mock.Anything, "user-1").
		Return(&models.SubscriptionState{
			PrincipalUID: "user-1",
			Status:       models.StatusPendingPayment,
			PlanType:     models.PlanMonthly,
			PeriodEnd:    &graceEnd,
		}, nil).Once()
	states.On("UpsertSubscriptionState", mock.Anything, mock.MatchedBy(func(s models.SubscriptionState) bool {
		return s.Status == models.StatusInactive
	})).Return(nil).Once()

	service := newTestService(users, states, provider, now)
	info, err := service.Resolve(context.Background(), "user-1")

	require.NoError(t, err)
	assert.False(t, info.Subscribed)
	states.AssertExpectations(t)
}

func TestService_Resolve_FailClosed(t *testing.T) {
	now := accountCreated.Add(24 * time.Hour)

	users := new(MockUserProvider)
	states := new(MockStateRepository)
	provider := new(MockBillingProvider)

	users.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
	provider.On("FindCustomerByEmail", mock.Anything, "u@example.com").
		Return(nil, errors.New("provider down")).Once()

	service := newTestService(users, states, provider, now)
	info, err := service.Resolve(context.Background(), "user-1")

	require.Error(t, err)
	assert.Nil(t, info)
}

func TestService_ExtendAccess(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		additionalDays int
		persisted      *models.SubscriptionState
		wantEnd        time.Time
		wantErr        bool
	}{
		{
			name:           "extends from future period end",
			additionalDays: 10,
			persisted: func() *models.SubscriptionState {
				end := now.Add(5 * 24 * time.Hour)
				return &models.SubscriptionState{
					PrincipalUID: "user-1",
					Status:       models.StatusActive,
					PeriodEnd:    &end,
					DeviceSlots:  2,
				}
			}(),
			wantEnd: now.Add(15 * 24 * time.Hour),
		},
		{
			name:           "extends from now when period already over",
			additionalDays: 7,
			persisted: func() *models.SubscriptionState {
				end := now.Add(-24 * time.Hour)
				return &models.SubscriptionState{
					PrincipalUID: "user-1",
					Status:       models.StatusInactive,
					PeriodEnd:    &end,
					DeviceSlots:  1,
				}
			}(),
			wantEnd: now.Add(7 * 24 * time.Hour),
		},
		{
			name:           "extends from now without persisted state",
			additionalDays: 30,
			persisted:      nil,
			wantEnd:        now.Add(30 * 24 * time.Hour),
		},
		{
			name:           "zero days rejected",
			additionalDays: 0,
			wantErr:        true,
		},
		{
			name:           "more than a year rejected",
			additionalDays: 366,
			wantErr:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserProvider)
			states := new(MockStateRepository)
			provider := new(MockBillingProvider)

			if !tt.wantErr {
				states.On("GetSubscriptionState", mock.Anything, "user-1").
					Return(tt.persisted, nil).Once()
				states.On("UpsertSubscriptionState", mock.Anything, mock.MatchedBy(func(s models.SubscriptionState) bool {
					return s.Status == models.StatusTrialing &&
						s.PeriodEnd != nil && s.PeriodEnd.Equal(tt.wantEnd)
				})).Return(nil).Once()
			}

			service := newTestService(users, states, provider, now)
			state, err := service.ExtendAccess(context.Background(), "user-1", tt.additionalDays)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.StatusTrialing, state.Status)
			require.NotNil(t, state.PeriodEnd)
			assert.True(t, state.PeriodEnd.Equal(tt.wantEnd))
			states.AssertExpectations(t)
		})
	}
}
