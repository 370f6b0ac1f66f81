package verify

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlwiki/wikilink/internal/models"
)

// memStore implements LinkStore in memory for issuer tests
type memStore struct {
	links     map[int64]*models.Link
	getErr    error
	createErr error
}

func newMemStore() *memStore {
	return &memStore{links: make(map[int64]*models.Link)}
}

func (m *memStore) GetByDiscordID(discordID int64) (*models.Link, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	link, ok := m.links[discordID]
	if !ok {
		return nil, nil
	}
	copied := *link
	return &copied, nil
}

func (m *memStore) Create(link *models.Link) error {
	if m.createErr != nil {
		return m.createErr
	}
	copied := *link
	m.links[link.DiscordID] = &copied
	return nil
}

func (m *memStore) Rotate(discordID int64, token string, now time.Time) error {
	link, ok := m.links[discordID]
	if !ok {
		return errors.New("no such link")
	}
	link.Token = token
	link.CreatedAt = now
	link.Verified = false
	return nil
}

func issuerAt(store *memStore, at time.Time) *TokenIssuer {
	issuer := NewTokenIssuer(store)
	issuer.now = func() time.Time { return at }
	return issuer
}

func TestIssueTokenUniquenessAndShape(t *testing.T) {
	store := newMemStore()
	issuer := NewTokenIssuer(store)

	shape := regexp.MustCompile(`^[A-Za-z0-9_-]{43}$`)
	seen := make(map[string]struct{}, 10000)

	for i := int64(0); i < 10000; i++ {
		token, err := issuer.Issue(i)
		require.NoError(t, err)

		assert.Regexp(t, shape, token)
		assert.True(t, WellFormedToken(token))

		_, dup := seen[token]
		require.False(t, dup, "token collision after %d issues", i)
		seen[token] = struct{}{}
	}
}

func TestIssueCreatesRecordOnFirstAttempt(t *testing.T) {
	store := newMemStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	token, err := issuerAt(store, now).Issue(42)
	require.NoError(t, err)

	link := store.links[42]
	require.NotNil(t, link)
	assert.Equal(t, token, link.Token)
	assert.Equal(t, now, link.CreatedAt)
	assert.False(t, link.Verified)
}

func TestIssueRejectsWithinCooldownAndKeepsToken(t *testing.T) {
	store := newMemStore()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first, err := issuerAt(store, start).Issue(42)
	require.NoError(t, err)

	// Well past the link TTL but still inside the cooldown: the issuer
	// still refuses to rotate.
	_, err = issuerAt(store, start.Add(30*time.Minute)).Issue(42)
	assert.ErrorIs(t, err, ErrPendingTooRecent)
	assert.Equal(t, first, store.links[42].Token)
	assert.Equal(t, start, store.links[42].CreatedAt)

	_, err = issuerAt(store, start.Add(ReissueCooldown-time.Second)).Issue(42)
	assert.ErrorIs(t, err, ErrPendingTooRecent)
	assert.Equal(t, first, store.links[42].Token)
}

func TestIssueRotatesAfterCooldown(t *testing.T) {
	store := newMemStore()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first, err := issuerAt(store, start).Issue(42)
	require.NoError(t, err)

	later := start.Add(ReissueCooldown + time.Minute)
	second, err := issuerAt(store, later).Issue(42)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, second, store.links[42].Token)
	assert.Equal(t, later, store.links[42].CreatedAt)
	assert.False(t, store.links[42].Verified)
}

func TestIssueRejectsVerifiedAccount(t *testing.T) {
	store := newMemStore()
	username := "AtlEditor"
	store.links[42] = &models.Link{
		DiscordID:         42,
		MediaWikiUsername: &username,
		Token:             "stale",
		CreatedAt:         time.Now().Add(-48 * time.Hour),
		Verified:          true,
	}

	_, err := NewTokenIssuer(store).Issue(42)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
	assert.Equal(t, "stale", store.links[42].Token)
}

func TestIssuePropagatesStoreErrors(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")

	_, err := NewTokenIssuer(store).Issue(42)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyVerified)
	assert.NotErrorIs(t, err, ErrPendingTooRecent)
}

func TestWellFormedToken(t *testing.T) {
	token, err := generateToken()
	require.NoError(t, err)

	assert.True(t, WellFormedToken(token))
	assert.False(t, WellFormedToken(""))
	assert.False(t, WellFormedToken("short"))
	assert.False(t, WellFormedToken(token+"x"))
	assert.False(t, WellFormedToken(token[:40]+"==!"))
}
