package middlewarectx_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/device-gatekeeper/internal/http/middlewarectx"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

type AdminCheckerMock struct {
	mock.Mock
}

func (m *AdminCheckerMock) IsAdmin(ctx context.Context, userUID string) (bool, error) {
	args := m.Called(ctx, userUID)
	return args.Bool(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestJWTMiddleware(t *testing.T) {
	authMock := new(AuthServiceMock)
	logger := newNoopLogger()

	handlerCalled := false

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		assert.Equal(t, "testuser", r.Context().Value(middlewarectx.User))
		assert.Equal(t, "user", r.Context().Value(middlewarectx.Role))
		assert.Equal(t, "uid-1", r.Context().Value(middlewarectx.UserUID))
		assert.Equal(t, "validtoken", r.Context().Value(middlewarectx.Token))
		w.WriteHeader(http.StatusOK)
	})

	handler := middlewarectx.JWTMiddleware(authMock, logger)(nextHandler)

	tests := []struct {
		name           string
		authHeader     string
		mockUser       *models.User
		mockErr        error
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:           "missing Authorization header",
			authHeader:     "",
			wantStatusCode: http.StatusUnauthorized,
			wantCalled:     false,
		},
		{
			name:           "invalid Authorization header prefix",
			authHeader:     "Basic sometoken",
			wantStatusCode: http.StatusUnauthorized,
			wantCalled:     false,
		},
		{
			name:           "token validation error",
			authHeader:     "Bearer badtoken",
			mockErr:        errors.New("invalid token"),
			wantStatusCode: http.StatusUnauthorized,
			wantCalled:     false,
		},
		{
			name:           "valid token",
			authHeader:     "Bearer validtoken",
			mockUser:       &models.User{Username: "testuser", Role: "user", UID: "uid-1"},
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled = false
			authMock.ExpectedCalls = nil
			authMock.Calls = nil
			if tt.mockUser != nil || tt.mockErr != nil {
				token := tt.authHeader[len("Bearer "):]
				authMock.On("ValidateToken", mock.Anything, token).
					Return(tt.mockUser, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodGet, "/somepath", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, handlerCalled)
			authMock.AssertExpectations(t)
		})
	}
}

func TestAdminMiddleware(t *testing.T) {
	logger := newNoopLogger()

	tests := []struct {
		name           string
		userUID        string
		isAdmin        bool
		checkErr       error
		skipCheck      bool
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:           "admin allowed",
			userUID:        "uid-1",
			isAdmin:        true,
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
		{
			name:           "regular user forbidden",
			userUID:        "uid-1",
			isAdmin:        false,
			wantStatusCode: http.StatusForbidden,
			wantCalled:     false,
		},
		{
			name:           "missing uid unauthorized",
			userUID:        "",
			skipCheck:      true,
			wantStatusCode: http.StatusUnauthorized,
			wantCalled:     false,
		},
		{
			name:           "role lookup error",
			userUID:        "uid-1",
			checkErr:       errors.New("connection refused"),
			wantStatusCode: http.StatusInternalServerError,
			wantCalled:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := new(AdminCheckerMock)
			if !tt.skipCheck {
				checker.On("IsAdmin", mock.Anything, tt.userUID).
					Return(tt.isAdmin, tt.checkErr).Once()
			}

			handlerCalled := false
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				w.WriteHeader(http.StatusOK)
			})
			handler := middlewarectx.AdminMiddleware(checker, logger)(nextHandler)

			req := httptest.NewRequest(http.MethodPost, "/admin/extend", nil)
			if tt.userUID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID))
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, handlerCalled)
			checker.AssertExpectations(t)
		})
	}
}
