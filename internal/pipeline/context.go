package pipeline

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/zulandar/dinbot/internal/directory"
	"github.com/zulandar/dinbot/internal/models"
)

// secondaryKeyword is the substring that fires the secondary trigger when a
// channel has it enabled.
const secondaryKeyword = "din"

// nicknameRules maps informal spellings to the canonical name the model
// should use. The table is fixed.
var nicknameRules = [][2]string{
	{"din", "Din"},
	{"udin", "Din"},
	{"dindin", "Din"},
}

var channelTokenPattern = regexp.MustCompile(`<#(\d+)>`)

// ShouldProcess reports whether an inbound message enters the pipeline:
// the channel is listening, the bot is mentioned directly, or the channel's
// secondary trigger is enabled and the content contains the keyword.
func ShouldProcess(policy models.ChannelPolicy, event *MessageEvent) bool {
	if policy.IsListening {
		return true
	}
	if event.BotMentioned {
		return true
	}
	if policy.SecondaryTrigger && strings.Contains(strings.ToLower(event.RawContent), secondaryKeyword) {
		return true
	}
	return false
}

// Assembler builds the system turn that precedes the conversation history.
type Assembler struct {
	dir directory.Directory
}

// NewAssembler returns an Assembler backed by the given directory.
func NewAssembler(dir directory.Directory) *Assembler {
	return &Assembler{dir: dir}
}

// BuildSystemTurn renders the persona prompt followed by the entity context
// block for the event. Directory lookups are best effort; a failed lookup
// drops its section rather than failing the turn.
func (a *Assembler) BuildSystemTurn(ctx context.Context, persona string, event *MessageEvent, imageCount int) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n[SYSTEM: ENTITY CONTEXT]\n")
	fmt.Fprintf(&b, "CURRENT AUTHOR: %q (ID: %s). To mention this user in your reply, write <@%s>.\n",
		event.AuthorDisplayName, event.AuthorID, event.AuthorID)

	if len(event.MentionedUsers) > 0 {
		b.WriteString("TAGGED USERS:\n")
		for _, m := range event.MentionedUsers {
			fmt.Fprintf(&b, "- %q (ID: %s) → mention with <@%s>\n", m.DisplayName(), m.UserID, m.UserID)
		}
	}

	a.writeTaggedRoles(ctx, &b, event)
	a.writeReferencedChannels(ctx, &b, event)

	if event.Referenced != nil {
		fmt.Fprintf(&b, "REPLYING TO %q: %s\n", event.Referenced.AuthorName, excerpt(event.Referenced.Content, 300))
	}

	b.WriteString("COMMANDS: To send a message to a different channel, include [[SEND:#channel-name:message body]] anywhere in your reply. " +
		"The target may be a #channel-name, a <#id> token, or a numeric channel ID. " +
		"Escape a literal ':' as '\\:' and a literal ']' as '\\]' inside a directive. " +
		"Directives are removed from your visible reply and executed separately.\n")

	b.WriteString("FRIENDLY NICKNAMES:\n")
	for _, rule := range nicknameRules {
		fmt.Fprintf(&b, "- %q refers to %s\n", rule[0], rule[1])
	}

	if imageCount > 0 {
		fmt.Fprintf(&b, "[IMAGE ATTACHED]: the user attached %d image(s); they are included with the latest message.\n", imageCount)
	}
	return b.String()
}

func (a *Assembler) writeTaggedRoles(ctx context.Context, b *strings.Builder, event *MessageEvent) {
	if len(event.MentionedRoleIDs) == 0 {
		return
	}
	roles, err := a.dir.Roles(ctx, event.GuildID)
	if err != nil {
		log.Printf("pipeline: resolve tagged roles: %v", err)
		return
	}
	names := make(map[string]string, len(roles))
	for _, r := range roles {
		names[r.ID] = r.Name
	}
	wrote := false
	for _, id := range event.MentionedRoleIDs {
		name, ok := names[id]
		if !ok {
			continue
		}
		if !wrote {
			b.WriteString("TAGGED ROLES:\n")
			wrote = true
		}
		fmt.Fprintf(b, "- %q (ID: %s) → mention with <@&%s>\n", name, id, id)
	}
}

func (a *Assembler) writeReferencedChannels(ctx context.Context, b *strings.Builder, event *MessageEvent) {
	matches := channelTokenPattern.FindAllStringSubmatch(event.RawContent, -1)
	if len(matches) == 0 {
		return
	}
	channels, err := a.dir.Channels(ctx, event.GuildID)
	if err != nil {
		log.Printf("pipeline: resolve referenced channels: %v", err)
		return
	}
	names := make(map[string]string, len(channels))
	for _, ch := range channels {
		names[ch.ID] = ch.Name
	}
	seen := make(map[string]bool)
	wrote := false
	for _, m := range matches {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		name, ok := names[id]
		if !ok {
			continue
		}
		if !wrote {
			b.WriteString("REFERENCED CHANNELS:\n")
			wrote = true
		}
		fmt.Fprintf(b, "- #%s → <#%s>\n", name, id)
	}
}

func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
