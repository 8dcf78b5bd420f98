package models

import "time"

// Session представляет одно допущенное устройство (или вкладку браузера).
// Идентификатор сессии стабильно выводится из auth-токена,
// поэтому одно устройство с одним токеном занимает ровно одну строку.
type Session struct {
	ID           int       // Суррогатный ключ, разрывает совпадения created_at при вытеснении
	PrincipalUID string    // Владелец сессии
	SessionID    string    // Идентификатор сессии, производный от токена
	DeviceInfo   string    // Описание устройства/браузера
	CreatedAt    time.Time // Время допуска
	LastSeenAt   time.Time // Время последнего повторного допуска
}

// DummyAdmitRequest используется для приёма данных запроса на допуск устройства.
type DummyAdmitRequest struct {
	DeviceInfo string `json:"device_info" validate:"required,max=512"` // Описание устройства
}

// EvictionEvent публикуется в очередь событий при вытеснении сессии.
// Устройствам события не доставляются, они узнают о вытеснении опросом.
type EvictionEvent struct {
	PrincipalUID string    `json:"principal_uid"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	SessionID    string    `json:"session_id"`
	DeviceInfo   string    `json:"device_info"`
	EvictedAt    time.Time `json:"evicted_at"`
}
