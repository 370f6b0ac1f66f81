package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlwiki/wikilink/internal/models"
)

func newSession(requestToken string, expiresAt time.Time) *models.OAuthSession {
	return &models.OAuthSession{
		RequestToken:  requestToken,
		RequestSecret: "secret",
		LinkToken:     "link-token",
		CreatedAt:     time.Now().UTC(),
		ExpiresAt:     expiresAt,
	}
}

func TestTakeConsumesSession(t *testing.T) {
	s := NewSessionStore(testDB(t))
	now := time.Now().UTC()
	require.NoError(t, s.Create(newSession("rt-1", now.Add(10*time.Minute))))

	session, err := s.Take("rt-1", now)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "link-token", session.LinkToken)
	assert.Equal(t, "secret", session.RequestSecret)

	// Single use: a second callback with the same request token fails.
	session, err = s.Take("rt-1", now)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestTakeRejectsExpiredSession(t *testing.T) {
	s := NewSessionStore(testDB(t))
	now := time.Now().UTC()
	require.NoError(t, s.Create(newSession("rt-1", now.Add(-time.Minute))))

	session, err := s.Take("rt-1", now)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestDeleteExpired(t *testing.T) {
	s := NewSessionStore(testDB(t))
	now := time.Now().UTC()

	require.NoError(t, s.Create(newSession("rt-old", now.Add(-time.Hour))))
	require.NoError(t, s.Create(newSession("rt-live", now.Add(10*time.Minute))))

	deleted, err := s.DeleteExpired(now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	session, err := s.Take("rt-live", now)
	require.NoError(t, err)
	assert.NotNil(t, session)
}
