package bot

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/atlwiki/wikilink/internal/verify"
)

const usersPerPage = 15

// cmdVerify runs one pass of the verification state machine and renders
// its single terminal outcome.
func (b *Bot) cmdVerify(m *discordgo.MessageCreate, args []string) {
	discordID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		log.Printf("Bot: unparsable author id %q: %v", m.Author.ID, err)
		return
	}

	result := b.machine.Run(discordID)

	switch result.Outcome {
	case verify.OutcomeLinkSent:
		b.reply(m, successEmbed("Verification Link Sent!",
			"📬 I've sent you a DM with your verification link.\n\n"+
				"**Next steps:**\n"+
				"1. Check your DMs for the verification link\n"+
				"2. Click the link to verify your MediaWiki account\n"+
				"3. If you meet the [requirements](https://atl.wiki/Atl.wiki:Discord_Linking), you'll automatically receive the wiki editor role\n\n"+
				"⏰ The link expires in 10 minutes.\n"+
				"🔒 **Do not share this link with anyone, including ATL staff.**",
			m.Author))
	case verify.OutcomeAlreadyVerified:
		b.reply(m, successEmbed("Already Verified",
			"Your Discord account is already linked to a MediaWiki account.\n\n"+
				"🔗 To unlink your account at anytime you can use `unverify`.\n"+
				"📝 If you are missing the role and meet the [requirements](https://atl.wiki/Atl.wiki:Discord_Linking), you can unverify and reverify to receive it.",
			m.Author))
	case verify.OutcomeEnableDMs:
		b.reply(m, errorEmbed("DM Permission Required",
			"I need to send you a verification link via DM, but I can't message you.\n\n"+
				"**Please enable DMs from server members:**\n"+
				"1. Right-click this server\n"+
				"2. Go to Privacy Settings\n"+
				"3. Enable 'Allow direct messages from server members'\n"+
				"4. Try the command again",
			m.Author))
	case verify.OutcomePending:
		b.reply(m, pendingEmbed("Verification Pending",
			"You already have a pending verification request.\n\n"+
				"📬 Please check your DMs for the verification link.\n"+
				"⏰ If you can't find it, please wait an hour and try again.\n"+
				"⚠️ If you still have issues, please contact a member of the wiki team.",
			m.Author))
	default:
		b.reply(m, errorEmbed("Verification Error", result.Message, m.Author))
	}
}

// cmdVerified lists verified accounts, paginated
func (b *Bot) cmdVerified(m *discordgo.MessageCreate, args []string) {
	links, err := b.links.ListVerified()
	if err != nil {
		log.Printf("Bot: failed to list verified links: %v", err)
		b.reply(m, errorEmbed("Database Error",
			"Could not retrieve verified users list. Please try again later.",
			m.Author))
		return
	}

	if len(links) == 0 {
		b.reply(m, infoEmbed("Verification Status", "No verified users yet.", m.Author))
		return
	}

	page := 1
	if len(args) > 0 {
		if parsed, err := strconv.Atoi(args[0]); err == nil && parsed > 0 {
			page = parsed
		}
	}

	totalPages := (len(links) + usersPerPage - 1) / usersPerPage
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * usersPerPage
	end := start + usersPerPage
	if end > len(links) {
		end = len(links)
	}

	lines := make([]string, 0, end-start)
	for _, link := range links[start:end] {
		username := ""
		if link.MediaWikiUsername != nil {
			username = *link.MediaWikiUsername
		}
		lines = append(lines, fmt.Sprintf("• <@%d> → **%s**", link.DiscordID, username))
	}

	embed := successEmbed("Verified Users", strings.Join(lines, "\n"), m.Author)
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "📈 Total Verified", Value: fmt.Sprintf("**%d** users", len(links)), Inline: true},
		{Name: "📄 Page", Value: fmt.Sprintf("%d/%d", page, totalPages), Inline: true},
	}
	b.reply(m, embed)
}

// cmdUnverify removes a verification. Without arguments it removes the
// caller's own link; naming a member or a wiki username requires an admin
// role.
func (b *Bot) cmdUnverify(m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		discordID, err := strconv.ParseInt(m.Author.ID, 10, 64)
		if err != nil {
			return
		}
		b.removeByDiscordID(m, discordID, m.Author.Username)
		return
	}

	if !b.isAdmin(m.Member) {
		log.Printf("Bot: unauthorized unverify attempt by user %s", m.Author.ID)
		b.reply(m, errorEmbed("Permission Denied",
			"You don't have permission to unverify other users.\n\n"+
				"This command is restricted to administrators.",
			m.Author))
		return
	}

	if len(m.Mentions) > 0 {
		target := m.Mentions[0]
		discordID, err := strconv.ParseInt(target.ID, 10, 64)
		if err != nil {
			return
		}
		b.removeByDiscordID(m, discordID, target.Username)
		return
	}

	// No mention: treat the argument as a wiki username, which may
	// contain spaces.
	wikiUsername := strings.Join(args, " ")
	b.removeByWikiUsername(m, wikiUsername)
}

func (b *Bot) removeByDiscordID(m *discordgo.MessageCreate, discordID int64, displayName string) {
	removed, err := b.links.RemoveByDiscordID(discordID)
	if err != nil {
		log.Printf("Bot: failed to remove link for %d: %v", discordID, err)
		b.reply(m, errorEmbed("Unverify Error",
			"Could not remove verification. Please try again later.", m.Author))
		return
	}

	if !removed {
		b.reply(m, warningEmbed("User Not Found",
			fmt.Sprintf("**%s** was not verified.", displayName), m.Author))
		return
	}

	b.revokeRole(discordID)
	log.Printf("Bot: user %d unverified by %s", discordID, m.Author.ID)
	b.reply(m, successEmbed("User Unverified",
		fmt.Sprintf("Successfully removed verification for **%s**.\n\n"+
			"🔗 They will need to verify again to regain wiki access.", displayName),
		m.Author))
}

func (b *Bot) removeByWikiUsername(m *discordgo.MessageCreate, wikiUsername string) {
	// Resolve the Discord side first so the role can still be revoked
	// after the row is gone.
	discordID, err := b.links.DiscordIDFor(wikiUsername)
	if err != nil {
		log.Printf("Bot: failed to resolve wiki user %q: %v", wikiUsername, err)
		b.reply(m, errorEmbed("Unverify Error",
			"Could not remove verification. Please try again later.", m.Author))
		return
	}

	removed, err := b.links.RemoveByWikiUsername(wikiUsername)
	if err != nil {
		log.Printf("Bot: failed to remove link for wiki user %q: %v", wikiUsername, err)
		b.reply(m, errorEmbed("Unverify Error",
			"Could not remove verification. Please try again later.", m.Author))
		return
	}

	if !removed {
		b.reply(m, warningEmbed("User Not Found",
			fmt.Sprintf("No verified user matches wiki account **%s**.", wikiUsername), m.Author))
		return
	}

	if discordID != 0 {
		b.revokeRole(discordID)
	}
	log.Printf("Bot: wiki user %q unverified by %s", wikiUsername, m.Author.ID)
	b.reply(m, successEmbed("User Unverified",
		fmt.Sprintf("Successfully removed verification for wiki account **%s**.\n\n"+
			"🔗 They will need to verify again to regain wiki access.", wikiUsername),
		m.Author))
}

// cmdLookup resolves a Discord member to their wiki account or a wiki
// username to the linked Discord member.
func (b *Bot) cmdLookup(m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(m, infoEmbed("Lookup",
			fmt.Sprintf("Usage: `%slookup <@member|wiki_username>`", b.cfg.Prefix), m.Author))
		return
	}

	if len(m.Mentions) > 0 {
		target := m.Mentions[0]
		discordID, err := strconv.ParseInt(target.ID, 10, 64)
		if err != nil {
			return
		}

		wikiUsername, err := b.links.WikiUsernameFor(discordID)
		if err != nil {
			log.Printf("Bot: lookup failed for %d: %v", discordID, err)
			b.reply(m, errorEmbed("Lookup Error",
				"Could not look up that user. Please try again later.", m.Author))
			return
		}
		if wikiUsername == "" {
			b.reply(m, warningEmbed("Not Linked",
				fmt.Sprintf("**%s** is not linked to a MediaWiki account.", target.Username), m.Author))
			return
		}
		b.reply(m, infoEmbed("Lookup",
			fmt.Sprintf("<@%d> is linked to MediaWiki account **%s**.", discordID, wikiUsername), m.Author))
		return
	}

	wikiUsername := strings.Join(args, " ")
	discordID, err := b.links.DiscordIDFor(wikiUsername)
	if err != nil {
		log.Printf("Bot: lookup failed for wiki user %q: %v", wikiUsername, err)
		b.reply(m, errorEmbed("Lookup Error",
			"Could not look up that user. Please try again later.", m.Author))
		return
	}
	if discordID == 0 {
		b.reply(m, warningEmbed("Not Linked",
			fmt.Sprintf("No Discord account is linked to wiki account **%s**.", wikiUsername), m.Author))
		return
	}
	b.reply(m, infoEmbed("Lookup",
		fmt.Sprintf("Wiki account **%s** is linked to <@%d>.", wikiUsername, discordID), m.Author))
}
