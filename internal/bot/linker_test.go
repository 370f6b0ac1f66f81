package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractWikiLinks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "single link",
			content: "have you read [[Main Page]] yet?",
			want:    []string{"Main Page"},
		},
		{
			name:    "multiple links keep order",
			content: "[[Alpha]] then [[Beta Gamma]]",
			want:    []string{"Alpha", "Beta Gamma"},
		},
		{
			name:    "no links",
			content: "plain chatter with [brackets] and ]]",
			want:    nil,
		},
		{
			name:    "inline code span ignored",
			content: "type `[[Not A Link]]` to link, like [[Real]]",
			want:    []string{"Real"},
		},
		{
			name:    "fenced block ignored",
			content: "```\n[[Hidden]]\n```\n[[Visible]]",
			want:    []string{"Visible"},
		},
		{
			name:    "double backtick span ignored",
			content: "``[[Hidden]]`` and [[Visible]]",
			want:    []string{"Visible"},
		},
		{
			name:    "namespace colon prefix rejected",
			content: "[[:Category:Stubs]]",
			want:    nil,
		},
		{
			name:    "underscore prefix rejected",
			content: "[[_private]]",
			want:    nil,
		},
		{
			name:    "fragment-only link rejected",
			content: "[[#section]]",
			want:    nil,
		},
		{
			name:    "pipe inside title rejected",
			content: "[[Page|label]]",
			want:    nil,
		},
		{
			name:    "template braces rejected",
			content: "[[{{subst:Page}}]]",
			want:    nil,
		},
		{
			name:    "newline breaks the link",
			content: "[[Broken\nTitle]]",
			want:    nil,
		},
		{
			name:    "empty brackets rejected",
			content: "[[]]",
			want:    nil,
		},
		{
			name:    "nested brackets take the inner title",
			content: "[[[[Inner]]]]",
			want:    []string{"Inner"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractWikiLinks(tt.content)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
