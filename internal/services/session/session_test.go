package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) SessionExists(ctx context.Context, principalUID, sessionID string) (bool, error) {
	args := m.Called(ctx, principalUID, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepository) DeleteSession(ctx context.Context, principalUID, sessionID string) (int, error) {
	args := m.Called(ctx, principalUID, sessionID)
	return args.Int(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestService_IsValid(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*MockSessionRepository)
		expected   bool
	}{
		{
			name: "existing session is valid",
			setupMocks: func(r *MockSessionRepository) {
				r.On("SessionExists", mock.Anything, "user-1", "s1").Return(true, nil).Once()
			},
			expected: true,
		},
		{
			name: "missing session is invalid",
			setupMocks: func(r *MockSessionRepository) {
				r.On("SessionExists", mock.Anything, "user-1", "s1").Return(false, nil).Once()
			},
			expected: false,
		},
		{
			name: "storage error treated as valid",
			setupMocks: func(r *MockSessionRepository) {
				r.On("SessionExists", mock.Anything, "user-1", "s1").
					Return(false, errors.New("connection refused")).Once()
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockSessionRepository)
			tt.setupMocks(repo)

			service := New(repo, newNoopLogger())
			valid := service.IsValid(context.Background(), "user-1", "s1")

			assert.Equal(t, tt.expected, valid)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_SignOut(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*MockSessionRepository)
	}{
		{
			name: "existing session removed",
			setupMocks: func(r *MockSessionRepository) {
				r.On("DeleteSession", mock.Anything, "user-1", "s1").Return(1, nil).Once()
			},
		},
		{
			name: "unknown session ignored",
			setupMocks: func(r *MockSessionRepository) {
				r.On("DeleteSession", mock.Anything, "user-1", "s1").Return(0, nil).Once()
			},
		},
		{
			name: "storage error swallowed",
			setupMocks: func(r *MockSessionRepository) {
				r.On("DeleteSession", mock.Anything, "user-1", "s1").
					Return(0, errors.New("connection refused")).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockSessionRepository)
			tt.setupMocks(repo)

			service := New(repo, newNoopLogger())
			service.SignOut(context.Background(), "user-1", "s1")

			repo.AssertExpectations(t)
		})
	}
}
