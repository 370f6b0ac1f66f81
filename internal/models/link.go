package models

import "time"

// Link ties one Discord account to one MediaWiki account. While unverified,
// Token is the pending correlation token and CreatedAt is the time it was
// issued (or last reissued). Once Verified flips, Token is stale and must
// never be accepted again.
type Link struct {
	DiscordID         int64     `json:"discord_id" gorm:"column:discord_id;primaryKey;autoIncrement:false"`
	MediaWikiUsername *string   `json:"mediawiki_username" gorm:"column:mediawiki_username"`
	Token             string    `json:"-" gorm:"not null"`
	CreatedAt         time.Time `json:"created_at" gorm:"not null"`
	Verified          bool      `json:"verified" gorm:"default:false"`
}

// TableName specifies the table name for Link
func (Link) TableName() string {
	return "links"
}
