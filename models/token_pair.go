package models

import "time"

// TokenPair — пара токенов, выдаваемая при входе и ротации.
//
// Описание:
//   - AccessToken — короткоживущий JWT с идентичностью и ролью;
//   - RefreshToken — долгоживущий JWT, единственное назначение которого —
//     выпуск новой пары; клиент хранит его у себя, на сервере — только хэш;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}
