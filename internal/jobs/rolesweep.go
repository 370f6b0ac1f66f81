package jobs

import (
	"context"
	"log"
	"time"

	"github.com/atlwiki/wikilink/internal/models"
)

// Directory is the live Discord membership view the sweep reads. Members
// are resolved fresh every run; the sweep keeps no memory of who it has
// already processed.
type Directory interface {
	GuildIDs() []string
	Member(guildID string, discordID int64) (hasRole, found bool, err error)
	GrantRole(guildID string, discordID int64) error
}

// AutoconfirmedChecker reports the wiki-side trust tier of an account
type AutoconfirmedChecker interface {
	IsAutoconfirmed(ctx context.Context, username string) (bool, error)
}

// VerifiedLister is the slice of the link store the sweep reads
type VerifiedLister interface {
	ListVerified() ([]models.Link, error)
}

// RoleSweep re-derives role membership from verified records each run:
// any verified member present in a guild without the role, whose wiki
// account is autoconfirmed, gets the role granted. Per-member failures are
// logged and never abort the sweep.
type RoleSweep struct {
	links   VerifiedLister
	dir     Directory
	checker AutoconfirmedChecker
	roleID  string
	timeout time.Duration
}

// NewRoleSweep creates a role-grant sweep
func NewRoleSweep(links VerifiedLister, dir Directory, checker AutoconfirmedChecker, roleID string) *RoleSweep {
	return &RoleSweep{
		links:   links,
		dir:     dir,
		checker: checker,
		roleID:  roleID,
		timeout: 2 * time.Minute,
	}
}

// Run performs one sweep
func (rs *RoleSweep) Run() {
	if rs.roleID == "" {
		return
	}

	links, err := rs.links.ListVerified()
	if err != nil {
		log.Printf("RoleSweep: failed to list verified links: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rs.timeout)
	defer cancel()

	granted := 0
	for _, guildID := range rs.dir.GuildIDs() {
		for _, link := range links {
			if rs.sweepMember(ctx, guildID, link) {
				granted++
			}
		}
	}

	if granted > 0 {
		log.Printf("RoleSweep: granted the wiki role to %d members", granted)
	}
}

func (rs *RoleSweep) sweepMember(ctx context.Context, guildID string, link models.Link) bool {
	if link.MediaWikiUsername == nil {
		return false
	}

	hasRole, found, err := rs.dir.Member(guildID, link.DiscordID)
	if err != nil {
		log.Printf("RoleSweep: failed to resolve member %d in guild %s: %v", link.DiscordID, guildID, err)
		return false
	}
	if !found || hasRole {
		// Not an error; they may have left, or are already done.
		return false
	}

	autoconfirmed, err := rs.checker.IsAutoconfirmed(ctx, *link.MediaWikiUsername)
	if err != nil {
		log.Printf("RoleSweep: autoconfirmed check failed for %q: %v", *link.MediaWikiUsername, err)
		return false
	}
	if !autoconfirmed {
		return false
	}

	if err := rs.dir.GrantRole(guildID, link.DiscordID); err != nil {
		log.Printf("RoleSweep: failed to grant role to %d in guild %s: %v", link.DiscordID, guildID, err)
		return false
	}

	log.Printf("RoleSweep: granted wiki role to %d in guild %s (autoconfirmed)", link.DiscordID, guildID)
	return true
}
