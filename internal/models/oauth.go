package models

import "time"

// OAuthSession stashes the provider's temporary request-token pair for one
// in-flight OAuth1 authorization, together with the link token that started
// it. Keyed by the request-token key the provider echoes back on the
// callback. Single use, short lived, swept by the cleanup job.
type OAuthSession struct {
	ID            int       `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestToken  string    `json:"request_token" gorm:"uniqueIndex;not null"`
	RequestSecret string    `json:"-" gorm:"not null"`
	LinkToken     string    `json:"-" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at" gorm:"not null"`
}

// TableName specifies the table name for OAuthSession
func (OAuthSession) TableName() string {
	return "oauth_sessions"
}
