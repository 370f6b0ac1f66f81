package bot

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Wikilink auto-responder: replies to messages containing properly
// formatted [[Article]] links with the matching wiki URLs.

var (
	// Code spans and fenced blocks are stripped before matching, so a
	// wikilink quoted inside backticks never triggers a reply.
	codePattern = regexp.MustCompile("(?s)```.*?```|``.*?``|`[^`\n]*`")

	// Titles may not start with a namespace colon, an underscore or a
	// fragment marker, and may not contain wikitext metacharacters.
	wikiLinkPattern = regexp.MustCompile(`\[\[([^\n\[\]#<|{}_:][^\n\[\]<|{}]*?)\]\]`)
)

// extractWikiLinks returns the article titles wikilinked in content
func extractWikiLinks(content string) []string {
	stripped := codePattern.ReplaceAllString(content, "")
	matches := wikiLinkPattern.FindAllStringSubmatch(stripped, -1)

	titles := make([]string, 0, len(matches))
	for _, match := range matches {
		titles = append(titles, match[1])
	}
	return titles
}

func (b *Bot) handleWikiLinks(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if strings.HasPrefix(m.Content, b.cfg.Prefix) {
		return
	}

	titles := extractWikiLinks(m.Content)
	if len(titles) == 0 {
		return
	}

	host := strings.TrimPrefix(strings.TrimPrefix(b.wikiBase, "https://"), "http://")
	links := make([]string, 0, len(titles))
	for _, title := range titles {
		links = append(links, fmt.Sprintf("[%s/%s](%s/%s)",
			host, title, b.wikiBase, strings.ReplaceAll(title, " ", "_")))
	}

	_, err := b.session.ChannelMessageSendReply(m.ChannelID, strings.Join(links, ", "), m.Reference())
	if err != nil {
		log.Printf("Bot: failed to send wikilink reply in channel %s: %v", m.ChannelID, err)
	}
}
