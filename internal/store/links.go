package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/atlwiki/wikilink/internal/models"
)

// ErrTokenUnknown is returned when a finalization token matches no row at
// all. A token that matches an already-verified row is not an error; see
// FinalizeByToken.
var ErrTokenUnknown = errors.New("token unknown")

// LinkStore is the single shared mutable resource of the whole process.
// Every method is one atomic read-modify-write against the links table;
// concurrent callers are serialized by the database, not by this process.
type LinkStore struct {
	db *gorm.DB
}

// NewLinkStore creates a link store backed by the given database
func NewLinkStore(db *gorm.DB) *LinkStore {
	return &LinkStore{db: db}
}

// GetByDiscordID returns the link record for a Discord account, or nil if
// the account has never attempted verification (or was fully removed).
func (s *LinkStore) GetByDiscordID(discordID int64) (*models.Link, error) {
	var link models.Link
	err := s.db.Where("discord_id = ?", discordID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up link: %w", err)
	}
	return &link, nil
}

// IsVerified reports whether a Discord account holds a verified link
func (s *LinkStore) IsVerified(discordID int64) (bool, error) {
	link, err := s.GetByDiscordID(discordID)
	if err != nil {
		return false, err
	}
	return link != nil && link.Verified, nil
}

// Create inserts a fresh unverified link record
func (s *LinkStore) Create(link *models.Link) error {
	if err := s.db.Create(link).Error; err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

// Rotate replaces the pending token on an existing record and resets its
// issuance clock. Verified is forced back to false.
func (s *LinkStore) Rotate(discordID int64, token string, now time.Time) error {
	err := s.db.Model(&models.Link{}).
		Where("discord_id = ?", discordID).
		Updates(map[string]interface{}{
			"token":      token,
			"created_at": now,
			"verified":   false,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to rotate token: %w", err)
	}
	return nil
}

// PendingByToken returns the unverified record holding the given token,
// provided it was issued at or after notBefore. Expired, consumed and
// never-issued tokens all come back as nil so callers cannot tell them
// apart.
func (s *LinkStore) PendingByToken(token string, notBefore time.Time) (*models.Link, error) {
	var link models.Link
	err := s.db.Where("token = ? AND verified = ? AND created_at >= ?", token, false, notBefore).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up pending token: %w", err)
	}
	return &link, nil
}

// FinalizeByToken marks the record holding token as verified and attaches
// the remote username. Matching is by token, not Discord ID, so a rotated
// token can never be finalized against a stale session. A duplicate
// finalization of an already-verified token succeeds idempotently.
func (s *LinkStore) FinalizeByToken(token, wikiUsername string) error {
	result := s.db.Model(&models.Link{}).
		Where("token = ? AND verified = ?", token, false).
		Updates(map[string]interface{}{
			"verified":           true,
			"mediawiki_username": wikiUsername,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finalize link: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Zero rows: either a concurrent duplicate already finalized this
	// token, or the token does not exist.
	var link models.Link
	err := s.db.Where("token = ? AND verified = ?", token, true).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTokenUnknown
	}
	if err != nil {
		return fmt.Errorf("failed to finalize link: %w", err)
	}
	return nil
}

// RemoveByDiscordID deletes the link record for a Discord account.
// Reports whether a record existed.
func (s *LinkStore) RemoveByDiscordID(discordID int64) (bool, error) {
	result := s.db.Where("discord_id = ?", discordID).Delete(&models.Link{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to remove link: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// RemoveByWikiUsername deletes the link record matching a MediaWiki
// username, compared case-insensitively.
func (s *LinkStore) RemoveByWikiUsername(wikiUsername string) (bool, error) {
	result := s.db.Where("LOWER(mediawiki_username) = LOWER(?)", wikiUsername).Delete(&models.Link{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to remove link: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// WikiUsernameFor returns the stored MediaWiki username (original case)
// for a Discord account, or "" if the account is not verified.
func (s *LinkStore) WikiUsernameFor(discordID int64) (string, error) {
	link, err := s.GetByDiscordID(discordID)
	if err != nil {
		return "", err
	}
	if link == nil || link.MediaWikiUsername == nil {
		return "", nil
	}
	return *link.MediaWikiUsername, nil
}

// DiscordIDFor returns the Discord account linked to a MediaWiki username,
// compared case-insensitively. Zero means no verified link exists.
func (s *LinkStore) DiscordIDFor(wikiUsername string) (int64, error) {
	var link models.Link
	err := s.db.Where("LOWER(mediawiki_username) = LOWER(?)", wikiUsername).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up discord id: %w", err)
	}
	return link.DiscordID, nil
}

// ListVerified returns all verified link records
func (s *LinkStore) ListVerified() ([]models.Link, error) {
	var links []models.Link
	err := s.db.Where("verified = ?", true).Order("created_at").Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list verified links: %w", err)
	}
	return links, nil
}

// PurgeExpired deletes unverified records issued before the cutoff and
// returns the number of rows removed. Verified rows are never touched.
func (s *LinkStore) PurgeExpired(cutoff time.Time) (int64, error) {
	result := s.db.Where("verified = ? AND created_at < ?", false, cutoff).Delete(&models.Link{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge expired links: %w", result.Error)
	}
	return result.RowsAffected, nil
}
