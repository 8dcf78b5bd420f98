// Package sessionid выводит стабильный идентификатор сессии из auth-токена.
//
// Идентификатор детерминирован: пока устройство держит один и тот же токен,
// все его обращения попадают в одну строку сессии. Новый токен даёт новую сессию.
package sessionid

import (
	"github.com/google/uuid"
)

// namespace фиксирован: один и тот же токен всегда даёт один и тот же id.
var namespace = uuid.MustParse("7e9c41de-2b7f-4f83-9b6a-55f14c1c3a9d")

// FromToken возвращает uuid v5 от токена в фиксированном неймспейсе.
func FromToken(token string) string {
	return uuid.NewSHA1(namespace, []byte(token)).String()
}
