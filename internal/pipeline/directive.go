package pipeline

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/zulandar/dinbot/internal/directory"
	"github.com/zulandar/dinbot/internal/mentions"
)

const (
	directiveOpen  = "[[SEND:"
	directiveClose = "]]"
)

// Directive is one parsed send instruction embedded in a completion.
type Directive struct {
	// Start and End delimit the directive's span in the source text,
	// including the markers.
	Start int
	End   int

	// Target is the unescaped, trimmed channel reference.
	Target string

	// Body is the unescaped, trimmed message body.
	Body string
}

// ParseDirectives scans text for [[SEND:target:body]] spans. The first
// unescaped ':' after the opener ends the target; the first unescaped ']]'
// ends the body. '\:', '\]' and '\\' unescape inside both fields. Malformed
// openers are left in place and skipped.
func ParseDirectives(text string) []Directive {
	var dirs []Directive
	i := 0
	for {
		rel := strings.Index(text[i:], directiveOpen)
		if rel < 0 {
			return dirs
		}
		start := i + rel
		target, bodyStart, ok := scanField(text, start+len(directiveOpen), false)
		if !ok {
			i = start + len(directiveOpen)
			continue
		}
		body, end, ok := scanField(text, bodyStart, true)
		if !ok {
			i = start + len(directiveOpen)
			continue
		}
		dirs = append(dirs, Directive{
			Start:  start,
			End:    end,
			Target: strings.TrimSpace(target),
			Body:   strings.TrimSpace(body),
		})
		i = end
	}
}

// scanField consumes text from pos until the field's terminator: ':' for the
// target, ']]' for the body. It returns the unescaped field and the index
// just past the terminator.
func scanField(text string, pos int, toClose bool) (string, int, bool) {
	var b strings.Builder
	for j := pos; j < len(text); j++ {
		c := text[j]
		if c == '\\' && j+1 < len(text) {
			switch text[j+1] {
			case ':', ']', '\\':
				b.WriteByte(text[j+1])
				j++
				continue
			}
		}
		if c == ']' && j+1 < len(text) && text[j+1] == ']' {
			if toClose {
				return b.String(), j + 2, true
			}
			// Closed before the target separator, so the opener is malformed.
			return "", 0, false
		}
		if !toClose && c == ':' {
			return b.String(), j + 1, true
		}
		b.WriteByte(c)
	}
	return "", 0, false
}

// StripDirectives removes every parsed span from text. The spans must come
// from ParseDirectives on the same text.
func StripDirectives(text string, dirs []Directive) string {
	if len(dirs) == 0 {
		return text
	}
	var b strings.Builder
	prev := 0
	for _, d := range dirs {
		b.WriteString(text[prev:d.Start])
		prev = d.End
	}
	b.WriteString(text[prev:])
	return b.String()
}

// Outcome records one directive execution attempt. Target keeps the
// reference exactly as the completion wrote it.
type Outcome struct {
	Target string
	Err    error
}

var (
	channelIDToken = regexp.MustCompile(`^<#(\d+)>$`)
	numericID      = regexp.MustCompile(`^\d+$`)
)

// Executor resolves directive targets against the live channel list and
// sends the bodies.
type Executor struct {
	dir   directory.Directory
	cache *mentions.Cache
}

// NewExecutor returns an Executor.
func NewExecutor(dir directory.Directory, cache *mentions.Cache) *Executor {
	return &Executor{dir: dir, cache: cache}
}

// Execute runs the directives in reverse parse order, so a failure late in
// the completion does not abort sends that appear earlier. One outcome is
// returned per directive, in parse order.
func (ex *Executor) Execute(ctx context.Context, event *MessageEvent, dirs []Directive) []Outcome {
	outcomes := make([]Outcome, len(dirs))
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		outcomes[i] = Outcome{Target: d.Target, Err: ex.execute(ctx, event, d)}
	}
	return outcomes
}

func (ex *Executor) execute(ctx context.Context, event *MessageEvent, d Directive) error {
	channelID, err := ex.resolveTarget(ctx, event.GuildID, d.Target)
	if err != nil {
		return err
	}
	body := ex.resolveBody(ctx, event, d.Body)
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("pipeline: empty directive body")
	}
	if err := ex.dir.SendMessage(ctx, channelID, body); err != nil {
		return fmt.Errorf("pipeline: send to %s: %w", d.Target, err)
	}
	return nil
}

// resolveTarget maps a channel reference to a channel ID. A <#id> token or
// bare numeric ID resolves directly; anything else is matched by name,
// case-insensitively, against a freshly fetched channel list.
func (ex *Executor) resolveTarget(ctx context.Context, guildID, ref string) (string, error) {
	if m := channelIDToken.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	if numericID.MatchString(ref) {
		return ref, nil
	}
	name := strings.TrimPrefix(ref, "#")
	channels, err := ex.dir.Channels(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("pipeline: list channels: %w", err)
	}
	for _, ch := range channels {
		if strings.EqualFold(ch.Name, name) {
			return ch.ID, nil
		}
	}
	return "", fmt.Errorf("pipeline: no channel named %q", name)
}

// resolveBody rewrites plain @name and #channel references in the body into
// mention tokens. The guild cache is tried first; when it has no table yet,
// a fallback built from the event's own participants is used instead of
// enumerating the roster inline.
func (ex *Executor) resolveBody(ctx context.Context, event *MessageEvent, body string) string {
	if !strings.ContainsAny(body, "@#") {
		return body
	}
	if resolved, ok := ex.cache.Apply(body, event.GuildID); ok {
		return resolved
	}
	roles, err := ex.dir.Roles(ctx, event.GuildID)
	if err != nil {
		log.Printf("pipeline: fallback roles: %v", err)
		roles = nil
	}
	reps := mentions.Fallback(event.Author(), event.MentionedUsers, roles)
	return mentions.ApplyReplacements(body, reps)
}
