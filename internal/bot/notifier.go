package bot

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/atlwiki/wikilink/internal/verify"
)

// dmNotifier delivers verification messages over the user's DM channel.
// Implements verify.Notifier.
type dmNotifier struct {
	session *discordgo.Session
}

// Probe sends a throwaway message and deletes it again. A 50007 from the
// REST API means the user has DMs from server members disabled.
func (n *dmNotifier) Probe(discordID int64) error {
	channel, err := n.session.UserChannelCreate(strconv.FormatInt(discordID, 10))
	if err != nil {
		return translateDMError(err)
	}

	msg, err := n.session.ChannelMessageSend(channel.ID, "🔍 Testing DM permissions...")
	if err != nil {
		return translateDMError(err)
	}

	// Best effort; a leftover probe message is harmless.
	_ = n.session.ChannelMessageDelete(channel.ID, msg.ID)
	return nil
}

// SendVerification DMs the verification link embed
func (n *dmNotifier) SendVerification(discordID int64, link string) error {
	user, err := n.session.User(strconv.FormatInt(discordID, 10))
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}

	channel, err := n.session.UserChannelCreate(user.ID)
	if err != nil {
		return translateDMError(err)
	}

	_, err = n.session.ChannelMessageSendEmbed(channel.ID, verificationStartEmbed(user, link))
	if err != nil {
		return translateDMError(err)
	}
	return nil
}

func translateDMError(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil &&
		restErr.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser {
		return verify.ErrChannelClosed
	}
	return err
}
