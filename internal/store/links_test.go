package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/atlwiki/wikilink/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Link{}, &models.OAuthSession{}))
	return db
}

func pendingLink(discordID int64, token string, createdAt time.Time) *models.Link {
	return &models.Link{
		DiscordID: discordID,
		Token:     token,
		CreatedAt: createdAt,
		Verified:  false,
	}
}

func TestGetByDiscordIDAbsent(t *testing.T) {
	s := NewLinkStore(testDB(t))

	link, err := s.GetByDiscordID(42)
	require.NoError(t, err)
	assert.Nil(t, link)

	verified, err := s.IsVerified(42)
	require.NoError(t, err)
	assert.False(t, verified)
}

func TestRotateResetsTokenAndClock(t *testing.T) {
	s := NewLinkStore(testDB(t))
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Create(pendingLink(42, "old-token", start)))

	later := start.Add(2 * time.Hour)
	require.NoError(t, s.Rotate(42, "new-token", later))

	link, err := s.GetByDiscordID(42)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "new-token", link.Token)
	assert.WithinDuration(t, later, link.CreatedAt, time.Second)
	assert.False(t, link.Verified)
}

func TestPendingByTokenEnforcesTTL(t *testing.T) {
	s := NewLinkStore(testDB(t))
	now := time.Now().UTC()

	require.NoError(t, s.Create(pendingLink(1, "fresh", now.Add(-5*time.Minute))))
	require.NoError(t, s.Create(pendingLink(2, "stale", now.Add(-15*time.Minute))))

	cutoff := now.Add(-10 * time.Minute)

	link, err := s.PendingByToken("fresh", cutoff)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, int64(1), link.DiscordID)

	// Expired but not yet purged: rejected at point of use.
	link, err = s.PendingByToken("stale", cutoff)
	require.NoError(t, err)
	assert.Nil(t, link)

	link, err = s.PendingByToken("never-issued", cutoff)
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestFinalizeByTokenIsIdempotent(t *testing.T) {
	s := NewLinkStore(testDB(t))
	require.NoError(t, s.Create(pendingLink(42, "tok", time.Now().UTC())))

	require.NoError(t, s.FinalizeByToken("tok", "AtlEditor"))

	// Duplicate callback with the same token reports success.
	require.NoError(t, s.FinalizeByToken("tok", "AtlEditor"))

	link, err := s.GetByDiscordID(42)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.True(t, link.Verified)
	require.NotNil(t, link.MediaWikiUsername)
	assert.Equal(t, "AtlEditor", *link.MediaWikiUsername)

	// A consumed token is no longer pending.
	pending, err := s.PendingByToken("tok", time.Now().UTC().Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestFinalizeByTokenUnknown(t *testing.T) {
	s := NewLinkStore(testDB(t))

	err := s.FinalizeByToken("no-such-token", "AtlEditor")
	assert.ErrorIs(t, err, ErrTokenUnknown)
}

func TestFinalizeMatchesByTokenNotIdentity(t *testing.T) {
	s := NewLinkStore(testDB(t))
	start := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, s.Create(pendingLink(42, "first", start)))
	require.NoError(t, s.Rotate(42, "second", time.Now().UTC()))

	// The rotated-away token must not finalize anything.
	err := s.FinalizeByToken("first", "AtlEditor")
	assert.ErrorIs(t, err, ErrTokenUnknown)

	link, err := s.GetByDiscordID(42)
	require.NoError(t, err)
	assert.False(t, link.Verified)
}

func TestCaseInsensitiveUsernameOperations(t *testing.T) {
	s := NewLinkStore(testDB(t))
	require.NoError(t, s.Create(pendingLink(42, "tok", time.Now().UTC())))
	require.NoError(t, s.FinalizeByToken("tok", "alicewiki"))

	// Lookup ignores case but returns the stored casing.
	discordID, err := s.DiscordIDFor("AliceWiki")
	require.NoError(t, err)
	assert.Equal(t, int64(42), discordID)

	username, err := s.WikiUsernameFor(42)
	require.NoError(t, err)
	assert.Equal(t, "alicewiki", username)

	removed, err := s.RemoveByWikiUsername("ALICEWIKI")
	require.NoError(t, err)
	assert.True(t, removed)

	link, err := s.GetByDiscordID(42)
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestRemoveByWikiUsernameAbsent(t *testing.T) {
	s := NewLinkStore(testDB(t))

	removed, err := s.RemoveByWikiUsername("nobody")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPurgeExpiredDeletesOnlyStaleUnverified(t *testing.T) {
	s := NewLinkStore(testDB(t))
	now := time.Now().UTC()

	require.NoError(t, s.Create(pendingLink(1, "t1", now.Add(-4*time.Hour))))
	require.NoError(t, s.Create(pendingLink(2, "t2", now.Add(-1*time.Hour))))
	require.NoError(t, s.Create(pendingLink(3, "t3", now.Add(-4*time.Hour))))
	require.NoError(t, s.FinalizeByToken("t3", "OldTimer"))

	deleted, err := s.PurgeExpired(now.Add(-3 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	gone, err := s.GetByDiscordID(1)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := s.GetByDiscordID(2)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	verified, err := s.GetByDiscordID(3)
	require.NoError(t, err)
	require.NotNil(t, verified)
	assert.True(t, verified.Verified)
}

func TestListVerified(t *testing.T) {
	s := NewLinkStore(testDB(t))
	now := time.Now().UTC()

	require.NoError(t, s.Create(pendingLink(1, "t1", now)))
	require.NoError(t, s.Create(pendingLink(2, "t2", now)))
	require.NoError(t, s.FinalizeByToken("t2", "AtlEditor"))

	links, err := s.ListVerified()
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, int64(2), links[0].DiscordID)
}

// Full lifecycle at store level: issue, reject reissue, finalize, list,
// unverify by username.
func TestVerificationLifecycle(t *testing.T) {
	s := NewLinkStore(testDB(t))
	now := time.Now().UTC()

	require.NoError(t, s.Create(pendingLink(7, "t1", now)))

	// Second verify within the cooldown leaves t1 untouched (the issuer
	// enforces the cooldown; the stored row must still hold t1).
	link, err := s.GetByDiscordID(7)
	require.NoError(t, err)
	assert.Equal(t, "t1", link.Token)

	// Callback arrives with t1.
	require.NoError(t, s.FinalizeByToken("t1", "AtlEditor"))

	links, err := s.ListVerified()
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.NotNil(t, links[0].MediaWikiUsername)
	assert.Equal(t, "AtlEditor", *links[0].MediaWikiUsername)

	// Admin removes by wiki username, case-insensitively.
	removed, err := s.RemoveByWikiUsername("atleditor")
	require.NoError(t, err)
	assert.True(t, removed)

	links, err = s.ListVerified()
	require.NoError(t, err)
	assert.Empty(t, links)
}
