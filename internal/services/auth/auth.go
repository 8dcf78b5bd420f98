// Package auth содержит логику регистрации, входа и проверки ролей.
package auth

import (
	"context"
	"errors"

	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/jwt"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/password"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его UID.
	RegisterUser(ctx context.Context, user models.User) (string, error)

	// GetUserByUsername возвращает пользователя по имени или ошибку, если не найден.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserRole возвращает роль пользователя, пустая строка — не найден.
	GetUserRole(ctx context.Context, userUID string) (string, error)
}

// AuthService отвечает за регистрацию, авторизацию и валидацию JWT.
type AuthService struct {
	users    UserRepository
	jwtMaker jwt.Maker
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, jwtMaker jwt.Maker) *AuthService {
	return &AuthService{
		users:    users,
		jwtMaker: jwtMaker,
	}
}

// Register создает нового пользователя с хэшированием пароля и дефолтной
// ролью "user". Дата создания назначается базой и задаёт начало пробного
// периода.
func (s *AuthService) Register(ctx context.Context, email, username, rawPassword string) (string, error) {
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", err
	}
	user := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
		Role:         "user",
	}
	return s.users.RegisterUser(ctx, user)
}

// Login проверяет пароль пользователя и генерирует JWT.
func (s *AuthService) Login(ctx context.Context, username, rawPassword string) (token, role string, err error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return "", "", ErrInvalidCredentials
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", "", ErrInvalidCredentials
	}
	token, err = s.jwtMaker.GenerateToken(user.Username, user.Role, user.UID)
	if err != nil {
		return "", "", err
	}
	return token, user.Role, nil
}

// ValidateToken проверяет JWT и возвращает информацию о пользователе.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*models.User, error) {
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Username: claims.Username,
		Role:     claims.Role,
		UID:      claims.UserUID,
	}, nil
}

// IsAdmin проверяет роль пользователя по базе, а не по токену: отзыв роли
// действует немедленно, не дожидаясь истечения JWT.
func (s *AuthService) IsAdmin(ctx context.Context, userUID string) (bool, error) {
	role, err := s.users.GetUserRole(ctx, userUID)
	if err != nil {
		return false, err
	}
	return role == "admin", nil
}
