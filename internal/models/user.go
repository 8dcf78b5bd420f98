// Package models содержит доменные структуры системы контроля доступа:
// пользователей, сессии устройств, состояние подписки,
// а также вспомогательные типы для приёма данных из JSON-запросов.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
// Поле CreatedAt служит точкой отсчёта пробного периода.
type User struct {
	UID          string    // Уникальный идентификатор пользователя
	Email        string    // Электронная почта
	Username     string    // Имя пользователя (уникальное)
	PasswordHash string    // Хэш пароля пользователя
	Role         string    // Роль пользователя, admin или user
	CreatedAt    time.Time // Дата регистрации, начало пробного периода
}
