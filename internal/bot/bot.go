package bot

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/atlwiki/wikilink/internal/config"
	"github.com/atlwiki/wikilink/internal/store"
	"github.com/atlwiki/wikilink/internal/verify"
)

// Bot hosts the Discord side of the linker: the command surface, the DM
// notifier the verification machine sends through, and the live membership
// view the role sweep reads.
type Bot struct {
	session  *discordgo.Session
	links    *store.LinkStore
	machine  *verify.Machine
	cfg      config.DiscordConfig
	wikiBase string
	commands map[string]command
}

type handlerFunc func(b *Bot, m *discordgo.MessageCreate, args []string)

// command is one entry of the dispatch table: name, aliases, an admin
// predicate and the handler, all resolved at startup.
type command struct {
	name      string
	aliases   []string
	adminOnly bool
	handler   handlerFunc
}

// New creates the bot and wires the verification machine to it
func New(cfg *config.Config, links *store.LinkStore) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b := &Bot{
		session:  session,
		links:    links,
		cfg:      cfg.Discord,
		wikiBase: cfg.MediaWiki.BaseURL,
	}
	b.machine = verify.NewMachine(
		links,
		verify.NewTokenIssuer(links),
		&dmNotifier{session: session},
		cfg.VerificationBaseURL,
	)
	b.commands = buildCommandTable()

	session.AddHandler(b.onReady)
	session.AddHandler(b.handleMessage)
	session.AddHandler(b.handleWikiLinks)

	return b, nil
}

// Open connects the gateway session
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	return nil
}

// Close shuts the gateway session down
func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("Bot: logged in as %s#%s", r.User.Username, r.User.Discriminator)
}

func buildCommandTable() map[string]command {
	table := []command{
		{name: "verify", aliases: []string{"link", "connect"}, handler: (*Bot).cmdVerify},
		{name: "verified", aliases: []string{"status", "list_verified"}, adminOnly: true, handler: (*Bot).cmdVerified},
		{name: "unverify", aliases: []string{"unlink", "disconnect"}, handler: (*Bot).cmdUnverify},
		{name: "lookup", handler: (*Bot).cmdLookup},
	}

	commands := make(map[string]command)
	for _, c := range table {
		commands[c.name] = c
		for _, alias := range c.aliases {
			commands[alias] = c
		}
	}
	return commands
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !strings.HasPrefix(m.Content, b.cfg.Prefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(m.Content, b.cfg.Prefix))
	if len(fields) == 0 {
		return
	}

	cmd, ok := b.commands[strings.ToLower(fields[0])]
	if !ok {
		return
	}

	if cmd.adminOnly && !b.isAdmin(m.Member) {
		log.Printf("Bot: unauthorized %s attempt by user %s", cmd.name, m.Author.ID)
		b.reply(m, errorEmbed("Permission Denied",
			"You don't have permission to use this command.\n\n"+
				"This command is restricted to wiki administrators.",
			m.Author))
		return
	}

	cmd.handler(b, m, fields[1:])
}

// isAdmin reports whether the member holds any allow-listed role. These
// are bot admin roles, not Discord's administrator permission.
func (b *Bot) isAdmin(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	for _, role := range member.Roles {
		for _, allowed := range b.cfg.AllowedRoleIDs {
			if role == allowed {
				return true
			}
		}
	}
	return false
}

func (b *Bot) reply(m *discordgo.MessageCreate, embed *discordgo.MessageEmbed) {
	if _, err := b.session.ChannelMessageSendEmbedReply(m.ChannelID, embed, m.Reference()); err != nil {
		log.Printf("Bot: failed to send reply in channel %s: %v", m.ChannelID, err)
	}
}

// GuildIDs lists the guilds the bot is currently present in
func (b *Bot) GuildIDs() []string {
	guilds := b.session.State.Guilds
	ids := make([]string, 0, len(guilds))
	for _, g := range guilds {
		ids = append(ids, g.ID)
	}
	return ids
}

// Member reports whether the Discord account is a live member of the guild
// and whether it already holds the wiki author role.
func (b *Bot) Member(guildID string, discordID int64) (hasRole, found bool, err error) {
	userID := strconv.FormatInt(discordID, 10)

	member, stateErr := b.session.State.Member(guildID, userID)
	if stateErr != nil {
		member, err = b.session.GuildMember(guildID, userID)
		if isUnknownMember(err) {
			return false, false, nil
		}
		if err != nil {
			return false, false, err
		}
	}

	for _, role := range member.Roles {
		if role == b.cfg.WikiAuthorRoleID {
			return true, true, nil
		}
	}
	return false, true, nil
}

// GrantRole adds the wiki author role to a guild member
func (b *Bot) GrantRole(guildID string, discordID int64) error {
	return b.session.GuildMemberRoleAdd(guildID, strconv.FormatInt(discordID, 10), b.cfg.WikiAuthorRoleID)
}

// revokeRole removes the wiki author role in every shared guild, best
// effort.
func (b *Bot) revokeRole(discordID int64) {
	if b.cfg.WikiAuthorRoleID == "" {
		return
	}
	userID := strconv.FormatInt(discordID, 10)
	for _, guildID := range b.GuildIDs() {
		if err := b.session.GuildMemberRoleRemove(guildID, userID, b.cfg.WikiAuthorRoleID); err != nil && !isUnknownMember(err) {
			log.Printf("Bot: failed to revoke role from %s in guild %s: %v", userID, guildID, err)
		}
	}
}

func isUnknownMember(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Message != nil &&
		restErr.Message.Code == discordgo.ErrCodeUnknownMember
}
