package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zulandar/dinbot/internal/directory"
	"github.com/zulandar/dinbot/internal/mentions"
)

func newTestCache(t *testing.T, dir *directory.MockDirectory) *mentions.Cache {
	t.Helper()
	cache, err := mentions.NewCache(mentions.CacheOpts{Directory: dir})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return cache
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

func TestParseDirectivesSingle(t *testing.T) {
	dirs := ParseDirectives("hello [[SEND:#general:ping]] world")
	if len(dirs) != 1 {
		t.Fatalf("got %d directives", len(dirs))
	}
	if dirs[0].Target != "#general" || dirs[0].Body != "ping" {
		t.Fatalf("directive = %+v", dirs[0])
	}
}

func TestParseDirectivesMultiple(t *testing.T) {
	dirs := ParseDirectives("[[SEND:#a:one]] mid [[SEND:#b:two]]")
	if len(dirs) != 2 {
		t.Fatalf("got %d directives", len(dirs))
	}
	if dirs[0].Target != "#a" || dirs[1].Target != "#b" {
		t.Fatalf("targets = %q, %q", dirs[0].Target, dirs[1].Target)
	}
}

func TestParseDirectivesEscapes(t *testing.T) {
	dirs := ParseDirectives(`[[SEND:#logs:time is 12\:30 and bracket \] here]]`)
	if len(dirs) != 1 {
		t.Fatalf("got %d directives", len(dirs))
	}
	if dirs[0].Body != `time is 12:30 and bracket ] here` {
		t.Fatalf("body = %q", dirs[0].Body)
	}
}

func TestParseDirectivesEscapedBackslash(t *testing.T) {
	dirs := ParseDirectives(`[[SEND:#a:path C\\temp]]`)
	if len(dirs) != 1 {
		t.Fatalf("got %d directives", len(dirs))
	}
	if dirs[0].Body != `path C\temp` {
		t.Fatalf("body = %q", dirs[0].Body)
	}
}

func TestParseDirectivesUnclosed(t *testing.T) {
	text := "before [[SEND:#a:never closed"
	if dirs := ParseDirectives(text); len(dirs) != 0 {
		t.Fatalf("got %d directives from unclosed span", len(dirs))
	}
}

func TestParseDirectivesMissingTargetSeparator(t *testing.T) {
	// No unescaped ':' after the target, so the opener is malformed. A later
	// well-formed directive must still parse.
	text := `[[SEND:nocolon]] then [[SEND:#ok:works]]`
	dirs := ParseDirectives(text)
	if len(dirs) != 1 {
		t.Fatalf("got %d directives", len(dirs))
	}
	if dirs[0].Target != "#ok" {
		t.Fatalf("target = %q", dirs[0].Target)
	}
}

func TestParseDirectivesSingleBracketInBody(t *testing.T) {
	dirs := ParseDirectives("[[SEND:#a:list[0] is fine]]")
	if len(dirs) != 1 {
		t.Fatalf("got %d directives", len(dirs))
	}
	if dirs[0].Body != "list[0] is fine" {
		t.Fatalf("body = %q", dirs[0].Body)
	}
}

// ---------------------------------------------------------------------------
// Stripping
// ---------------------------------------------------------------------------

func TestStripDirectives(t *testing.T) {
	text := "hi [[SEND:#general:ping]] there"
	dirs := ParseDirectives(text)
	got := StripDirectives(text, dirs)
	if got != "hi  there" {
		t.Fatalf("stripped = %q", got)
	}
}

func TestStripDirectivesIdempotent(t *testing.T) {
	text := "a [[SEND:#x:one]] b [[SEND:#y:two]] c"
	once := StripDirectives(text, ParseDirectives(text))
	if again := ParseDirectives(once); len(again) != 0 {
		t.Fatalf("stripped text still parses %d directive(s): %q", len(again), once)
	}
	if StripDirectives(once, nil) != once {
		t.Fatal("second strip changed text")
	}
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

func executorFixture(t *testing.T) (*Executor, *directory.MockDirectory, *MessageEvent) {
	t.Helper()
	dir := directory.NewMock()
	dir.SetGuild("g1",
		[]directory.Role{{ID: "r1", Name: "admin"}},
		[]directory.Channel{{ID: "c-general", Name: "general"}, {ID: "c-logs", Name: "logs"}},
		[]directory.Member{{UserID: "u1", Username: "alice"}},
	)
	event := &MessageEvent{
		GuildID:           "g1",
		ChannelID:         "c-origin",
		AuthorID:          "u1",
		AuthorDisplayName: "alice",
	}
	return NewExecutor(dir, newTestCache(t, dir)), dir, event
}

func TestExecuteResolvesByName(t *testing.T) {
	ex, dir, event := executorFixture(t)
	outcomes := ex.Execute(context.Background(), event, ParseDirectives("[[SEND:#General:hello]]"))
	if len(outcomes) != 1 || outcomes[0].Err != nil {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	if got := dir.SentTo("c-general"); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("sent = %v", got)
	}
}

func TestExecuteResolvesTokenAndNumericID(t *testing.T) {
	ex, dir, event := executorFixture(t)
	text := "[[SEND:<#c-logs>:via token]]"
	outcomes := ex.Execute(context.Background(), event, ParseDirectives(text))
	if outcomes[0].Err != nil {
		t.Fatalf("token outcome = %+v", outcomes[0])
	}
	// Token targets are trusted without a directory round trip.
	if got := dir.SentTo("c-logs"); len(got) != 1 {
		t.Fatalf("sent = %v", got)
	}

	outcomes = ex.Execute(context.Background(), event, ParseDirectives("[[SEND:12345:direct id]]"))
	if outcomes[0].Err != nil {
		t.Fatalf("numeric outcome = %+v", outcomes[0])
	}
	if got := dir.SentTo("12345"); len(got) != 1 {
		t.Fatalf("sent = %v", got)
	}
}

func TestExecuteUnknownChannel(t *testing.T) {
	ex, dir, event := executorFixture(t)
	outcomes := ex.Execute(context.Background(), event, ParseDirectives("[[SEND:#nope:hi]]"))
	if outcomes[0].Err == nil {
		t.Fatal("expected resolution error")
	}
	if outcomes[0].Target != "#nope" {
		t.Fatalf("target = %q", outcomes[0].Target)
	}
	if len(dir.Sent()) != 0 {
		t.Fatalf("unexpected sends: %v", dir.Sent())
	}
}

func TestExecuteReverseOrder(t *testing.T) {
	ex, dir, event := executorFixture(t)
	text := "[[SEND:#general:first]] [[SEND:#logs:second]]"
	ex.Execute(context.Background(), event, ParseDirectives(text))
	sent := dir.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages", len(sent))
	}
	if sent[0].Content != "second" || sent[1].Content != "first" {
		t.Fatalf("delivery order = %q, %q", sent[0].Content, sent[1].Content)
	}
}

func TestExecuteFailureDoesNotBlockOthers(t *testing.T) {
	ex, dir, event := executorFixture(t)
	text := "[[SEND:#missing:one]] [[SEND:#general:two]]"
	outcomes := ex.Execute(context.Background(), event, ParseDirectives(text))
	if outcomes[0].Err == nil || outcomes[1].Err != nil {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	if got := dir.SentTo("c-general"); len(got) != 1 {
		t.Fatalf("sent = %v", got)
	}
}

func TestExecuteEmptyBody(t *testing.T) {
	ex, _, event := executorFixture(t)
	outcomes := ex.Execute(context.Background(), event, ParseDirectives("[[SEND:#general:   ]]"))
	if outcomes[0].Err == nil {
		t.Fatal("expected empty body error")
	}
}

func TestExecuteResolvesBodyMentionsFromCache(t *testing.T) {
	ex, dir, event := executorFixture(t)
	if err := ex.cache.RefreshNow(context.Background(), "g1"); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}
	ex.Execute(context.Background(), event, ParseDirectives("[[SEND:#general:ask @alice about #logs]]"))
	got := dir.SentTo("c-general")
	if len(got) != 1 {
		t.Fatalf("sent = %v", got)
	}
	if !strings.Contains(got[0], "<@u1>") || !strings.Contains(got[0], "<#c-logs>") {
		t.Fatalf("body = %q", got[0])
	}
}

func TestExecuteBodyFallbackWithoutCache(t *testing.T) {
	ex, dir, event := executorFixture(t)
	event.MentionedUsers = []directory.Member{{UserID: "u2", Username: "bob"}}
	// No cache table was built for the guild; the fallback covers only the
	// author, the tagged users, and the roles.
	ex.Execute(context.Background(), event, ParseDirectives("[[SEND:#general:hey @bob and @admin]]"))
	got := dir.SentTo("c-general")
	if len(got) != 1 {
		t.Fatalf("sent = %v", got)
	}
	if !strings.Contains(got[0], "<@u2>") || !strings.Contains(got[0], "<@&r1>") {
		t.Fatalf("body = %q", got[0])
	}
}

func TestExecuteSendFailure(t *testing.T) {
	ex, dir, event := executorFixture(t)
	dir.FailNext("SendMessage", errors.New("forbidden"))
	outcomes := ex.Execute(context.Background(), event, ParseDirectives("[[SEND:#general:hi]]"))
	if outcomes[0].Err == nil || !strings.Contains(outcomes[0].Err.Error(), "forbidden") {
		t.Fatalf("outcome = %+v", outcomes[0])
	}
}
