package bot

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Embed colors for the different message categories
const (
	colorSuccess = 0x00FF00
	colorError   = 0xFF0000
	colorWarning = 0xFFA500
	colorInfo    = 0x0099FF
	colorPending = 0xFFFF00
)

func baseEmbed(title, description string, color int, requester *discordgo.User) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if requester != nil {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text:    "Requested by " + requester.Username,
			IconURL: requester.AvatarURL(""),
		}
	}
	return embed
}

func successEmbed(title, description string, requester *discordgo.User) *discordgo.MessageEmbed {
	return baseEmbed("✅ "+title, description, colorSuccess, requester)
}

func errorEmbed(title, description string, requester *discordgo.User) *discordgo.MessageEmbed {
	return baseEmbed("❌ "+title, description, colorError, requester)
}

func warningEmbed(title, description string, requester *discordgo.User) *discordgo.MessageEmbed {
	return baseEmbed("⚠️ "+title, description, colorWarning, requester)
}

func infoEmbed(title, description string, requester *discordgo.User) *discordgo.MessageEmbed {
	return baseEmbed("ℹ️ "+title, description, colorInfo, requester)
}

func pendingEmbed(title, description string, requester *discordgo.User) *discordgo.MessageEmbed {
	return baseEmbed("📬 "+title, description, colorPending, requester)
}

// verificationStartEmbed is the DM carrying the verification link
func verificationStartEmbed(requester *discordgo.User, verificationURL string) *discordgo.MessageEmbed {
	embed := baseEmbed(
		"🔗 MediaWiki Verification",
		"**Click the link below to verify your MediaWiki account:**",
		colorInfo,
		nil,
	)
	embed.Fields = []*discordgo.MessageEmbedField{
		{
			Name: "🌐 Verify MediaWiki Account",
			Value: "🔒 **Do not share this link with anyone, including ATL staff.**\n" +
				fmt.Sprintf("```\n%s\n```", verificationURL),
			Inline: false,
		},
		{
			Name: "What happens next:",
			Value: "1. You'll be redirected to the wiki's OAuth page\n" +
				"2. Login with your MediaWiki account\n" +
				"3. Authorize the bot to verify your identity\n" +
				"4. If you meet the [requirements](https://atl.wiki/Atl.wiki:Discord_Linking), you'll automatically receive the wiki editor role\n\n" +
				"**⏰ Link expires in 10 minutes.**\n",
			Inline: false,
		},
		{
			Name:   "🔒 Security Note",
			Value:  "This verification only grants us permission to see your username.",
			Inline: false,
		},
	}
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text:    "Verification for " + requester.Username,
		IconURL: requester.AvatarURL(""),
	}
	return embed
}
