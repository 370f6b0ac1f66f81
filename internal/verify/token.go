package verify

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/atlwiki/wikilink/internal/models"
)

const (
	// LinkTTL is how long a verification link stays usable after issuance.
	LinkTTL = 10 * time.Minute

	// ReissueCooldown is the minimum wait before a new token may replace a
	// pending one. Deliberately longer than LinkTTL: a user whose link has
	// lapsed may have to sit out the rest of the cooldown before getting a
	// fresh one.
	ReissueCooldown = time.Hour

	tokenBytes = 32
)

// Issue rejections. These are expected business states, not failures.
var (
	ErrAlreadyVerified  = errors.New("account is already verified")
	ErrPendingTooRecent = errors.New("a pending verification was issued too recently")
)

// LinkStore is the slice of the link store the token issuer needs
type LinkStore interface {
	GetByDiscordID(discordID int64) (*models.Link, error)
	Create(link *models.Link) error
	Rotate(discordID int64, token string, now time.Time) error
}

// TokenIssuer creates correlation tokens, enforcing one pending token per
// Discord account and the reissuance cooldown.
type TokenIssuer struct {
	store LinkStore
	now   func() time.Time
}

// NewTokenIssuer creates a token issuer backed by the given store
func NewTokenIssuer(store LinkStore) *TokenIssuer {
	return &TokenIssuer{
		store: store,
		now:   time.Now,
	}
}

// Issue returns a fresh correlation token for the given Discord account.
// Rejects with ErrAlreadyVerified or ErrPendingTooRecent; the stored token
// is left untouched on rejection.
func (t *TokenIssuer) Issue(discordID int64) (string, error) {
	link, err := t.store.GetByDiscordID(discordID)
	if err != nil {
		return "", err
	}

	now := t.now().UTC()

	if link == nil {
		token, err := generateToken()
		if err != nil {
			return "", err
		}
		err = t.store.Create(&models.Link{
			DiscordID: discordID,
			Token:     token,
			CreatedAt: now,
			Verified:  false,
		})
		if err != nil {
			return "", err
		}
		return token, nil
	}

	if link.Verified {
		return "", ErrAlreadyVerified
	}

	if now.Sub(link.CreatedAt) < ReissueCooldown {
		return "", ErrPendingTooRecent
	}

	// Stale pending token past the cooldown: rotate in place.
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := t.store.Rotate(discordID, token, now); err != nil {
		return "", err
	}
	return token, nil
}

// WellFormedToken reports whether s has the exact shape of an issued
// token: the unpadded URL-safe encoding of tokenBytes random bytes.
func WellFormedToken(s string) bool {
	if len(s) != base64.RawURLEncoding.EncodedLen(tokenBytes) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
