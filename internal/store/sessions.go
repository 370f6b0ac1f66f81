package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/atlwiki/wikilink/internal/models"
)

// SessionStore manages the short-lived OAuth correlation records that
// bridge the entry redirect and the provider callback.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore creates a session store backed by the given database
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create persists a new correlation session
func (s *SessionStore) Create(session *models.OAuthSession) error {
	if err := s.db.Create(session).Error; err != nil {
		return fmt.Errorf("failed to create oauth session: %w", err)
	}
	return nil
}

// Take returns the unexpired session for a request-token key and deletes
// it in the same call, so each session authorizes at most one callback.
// Returns nil if no live session matches.
func (s *SessionStore) Take(requestToken string, now time.Time) (*models.OAuthSession, error) {
	var session models.OAuthSession
	err := s.db.Where("request_token = ? AND expires_at > ?", requestToken, now).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up oauth session: %w", err)
	}

	if err := s.db.Delete(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to consume oauth session: %w", err)
	}
	return &session, nil
}

// DeleteExpired removes sessions past their expiry and returns the number
// of rows removed.
func (s *SessionStore) DeleteExpired(now time.Time) (int64, error) {
	result := s.db.Where("expires_at < ?", now).Delete(&models.OAuthSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired oauth sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
