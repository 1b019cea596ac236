package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/zulandar/dinbot/internal/directory"
	"github.com/zulandar/dinbot/internal/gateway"
	"github.com/zulandar/dinbot/internal/mentions"
	"github.com/zulandar/dinbot/internal/models"
	"github.com/zulandar/dinbot/internal/players"
	"github.com/zulandar/dinbot/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeCompleter struct {
	reply    string
	err      error
	gotModel string
	gotTurns []gateway.Turn
}

func (f *fakeCompleter) Complete(ctx context.Context, model string, turns []gateway.Turn) (string, error) {
	f.gotModel = model
	f.gotTurns = turns
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeLookup struct {
	profile *players.Profile
	err     error
}

func (f *fakeLookup) Lookup(ctx context.Context, fid string) (*players.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type fixture struct {
	p    *Pipeline
	dir  *directory.MockDirectory
	gw   *fakeCompleter
	cs   *store.ConversationStore
	ps   *store.PolicyStore
	look *fakeLookup
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.ConversationTurn{}, &models.GuildPolicy{}, &models.ChannelPolicy{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cs, err := store.NewConversationStore(store.ConversationStoreOpts{DB: db})
	if err != nil {
		t.Fatalf("NewConversationStore: %v", err)
	}
	ps, err := store.NewPolicyStore(store.PolicyStoreOpts{
		DB:                db,
		DefaultChatModel:  "gemini-2.5-flash",
		DefaultImageModel: "gemini-3-pro-image",
	})
	if err != nil {
		t.Fatalf("NewPolicyStore: %v", err)
	}

	dir := directory.NewMock()
	dir.SetGuild("g1",
		nil,
		[]directory.Channel{{ID: "c-general", Name: "general"}, {ID: "c-origin", Name: "origin"}},
		nil,
	)
	cache, err := mentions.NewCache(mentions.CacheOpts{Directory: dir})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	gw := &fakeCompleter{reply: "hello back"}
	look := &fakeLookup{}

	p, err := New(Opts{
		Conversations: cs,
		Policies:      ps,
		Directory:     dir,
		Cache:         cache,
		Gateway:       gw,
		Players:       look,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{p: p, dir: dir, gw: gw, cs: cs, ps: ps, look: look}
}

func (fx *fixture) listen(t *testing.T, channelID string) {
	t.Helper()
	err := fx.ps.PutChannelPolicy(models.ChannelPolicy{
		ChannelID:   channelID,
		GuildID:     "g1",
		IsListening: true,
	})
	if err != nil {
		t.Fatalf("PutChannelPolicy: %v", err)
	}
}

func event(content string) *MessageEvent {
	return &MessageEvent{
		GuildID:           "g1",
		ChannelID:         "c-origin",
		AuthorID:          "u1",
		AuthorDisplayName: "Alice",
		RawContent:        content,
	}
}

// ---------------------------------------------------------------------------
// Trigger gating
// ---------------------------------------------------------------------------

func TestHandleIgnoresUntriggeredMessage(t *testing.T) {
	fx := newFixture(t)
	if err := fx.p.Handle(context.Background(), event("hello")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(fx.dir.Sent()) != 0 {
		t.Fatalf("unexpected sends:\n%s", fx.dir)
	}
	history, err := fx.cs.FetchHistory("c-origin", "", 50)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("persisted %d turns for ignored message", len(history))
	}
}

func TestHandleBotMentionTriggers(t *testing.T) {
	fx := newFixture(t)
	ev := event("hey bot")
	ev.BotMentioned = true
	if err := fx.p.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := fx.dir.SentTo("c-origin"); len(got) != 1 || got[0] != "hello back" {
		t.Fatalf("sent = %v", got)
	}
}

func TestHandleSecondaryTrigger(t *testing.T) {
	fx := newFixture(t)
	err := fx.ps.PutChannelPolicy(models.ChannelPolicy{
		ChannelID:        "c-origin",
		GuildID:          "g1",
		SecondaryTrigger: true,
	})
	if err != nil {
		t.Fatalf("PutChannelPolicy: %v", err)
	}
	if err := fx.p.Handle(context.Background(), event("udin tolong dong")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := fx.dir.SentTo("c-origin"); len(got) != 1 {
		t.Fatalf("sent = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Happy path
// ---------------------------------------------------------------------------

func TestHandlePersistsAttributedTurns(t *testing.T) {
	fx := newFixture(t)
	fx.listen(t, "c-origin")
	if err := fx.p.Handle(context.Background(), event("hi there")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	history, err := fx.cs.FetchHistory("c-origin", "", 50)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d turns", len(history))
	}
	if history[0].Role != models.RoleUser || history[0].Content != "[Alice]: hi there" {
		t.Fatalf("user turn = %+v", history[0])
	}
	if history[1].Role != models.RoleAssistant || history[1].Content != "hello back" {
		t.Fatalf("assistant turn = %+v", history[1])
	}
	if fx.dir.TypingCount("c-origin") == 0 {
		t.Fatal("typing indicator never fired")
	}
}

func TestHandleSendsSystemTurnFirst(t *testing.T) {
	fx := newFixture(t)
	fx.listen(t, "c-origin")
	if err := fx.p.Handle(context.Background(), event("hi")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if fx.gw.gotModel != "gemini-2.5-flash" {
		t.Fatalf("model = %q", fx.gw.gotModel)
	}
	if len(fx.gw.gotTurns) < 2 || fx.gw.gotTurns[0].Role != "system" {
		t.Fatalf("turns = %+v", fx.gw.gotTurns)
	}
	if !strings.Contains(fx.gw.gotTurns[0].Content, store.DefaultSystemPrompt) {
		t.Fatalf("system turn missing default persona: %q", fx.gw.gotTurns[0].Content)
	}
	last := fx.gw.gotTurns[len(fx.gw.gotTurns)-1]
	if last.Role != models.RoleUser || last.Content != "[Alice]: hi" {
		t.Fatalf("last turn = %+v", last)
	}
}

// ---------------------------------------------------------------------------
// Directive round trip
// ---------------------------------------------------------------------------

func TestHandleExecutesDirectiveEndToEnd(t *testing.T) {
	fx := newFixture(t)
	fx.listen(t, "c-origin")
	fx.gw.reply = "hi [[SEND:#general:ping]]"

	if err := fx.p.Handle(context.Background(), event("say hi and ping general")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got := fx.dir.SentTo("c-general"); len(got) != 1 || got[0] != "ping" {
		t.Fatalf("directive delivery = %v", got)
	}
	origin := fx.dir.SentTo("c-origin")
	if len(origin) != 2 || origin[0] != "hi" || origin[1] != terseSendAck {
		t.Fatalf("origin sends = %v", origin)
	}

	history, err := fx.cs.FetchHistory("c-origin", "", 50)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	want := "hi\n[System Report: Message sent to #general]"
	if history[len(history)-1].Content != want {
		t.Fatalf("persisted = %q, want %q", history[len(history)-1].Content, want)
	}
}

func TestHandleDirectiveOnlyReplyStillAcks(t *testing.T) {
	fx := newFixture(t)
	fx.listen(t, "c-origin")
	fx.gw.reply = "[[SEND:#general:forwarded]]"

	if err := fx.p.Handle(context.Background(), event("forward this")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	origin := fx.dir.SentTo("c-origin")
	if len(origin) != 1 || origin[0] != terseSendAck {
		t.Fatalf("origin sends = %v", origin)
	}
	history, err := fx.cs.FetchHistory("c-origin", "", 50)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	want := "[System Report: Message sent to #general]"
	if history[len(history)-1].Content != want {
		t.Fatalf("persisted = %q", history[len(history)-1].Content)
	}
}

func TestHandleDirectiveFailureReported(t *testing.T) {
	fx := newFixture(t)
	fx.listen(t, "c-origin")
	fx.gw.reply = "done [[SEND:#missing:oops]]"

	if err := fx.p.Handle(context.Background(), event("go")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	origin := fx.dir.SentTo("c-origin")
	if len(origin) != 2 {
		t.Fatalf("origin sends = %v", origin)
	}
	if !strings.HasPrefix(origin[1], reportHeading) || !strings.Contains(origin[1], "#missing") {
		t.Fatalf("report = %q", origin[1])
	}
}

// ---------------------------------------------------------------------------
// Degradation
// ---------------------------------------------------------------------------

func TestHandleCompletionFailureApologizes(t *testing.T) {
	fx := newFixture(t)
	fx.listen(t, "c-origin")
	fx.gw.err = errors.New("upstream exploded")

	if err := fx.p.Handle(context.Background(), event("hi")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	origin := fx.dir.SentTo("c-origin")
	if len(origin) != 1 || origin[0] != genericApology {
		t.Fatalf("origin sends = %v", origin)
	}
	history, err := fx.cs.FetchHistory("c-origin", "", 50)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	for _, h := range history {
		if h.Role == models.RoleAssistant {
			t.Fatalf("assistant turn persisted for failed completion: %+v", h)
		}
	}
}

func TestHandleImageCountErrorGuidance(t *testing.T) {
	fx := newFixture(t)
	fx.listen(t, "c-origin")
	fx.gw.err = fmt.Errorf("completion: %w", gateway.ErrImageCount)

	if err := fx.p.Handle(context.Background(), event("hi")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	origin := fx.dir.SentTo("c-origin")
	if len(origin) != 1 || origin[0] != imageCountGuidance {
		t.Fatalf("origin sends = %v", origin)
	}
}

// ---------------------------------------------------------------------------
// Player lookup short circuit
// ---------------------------------------------------------------------------

func TestHandlePlayerLookupShortCircuit(t *testing.T) {
	fx := newFixture(t)
	fx.listen(t, "c-origin")
	fx.look.profile = &players.Profile{
		FID:            42,
		Nickname:       "Saltpeter",
		Kingdom:        172,
		FurnaceDisplay: "FC 1",
	}

	if err := fx.p.Handle(context.Background(), event("cek player 42")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	sent := fx.dir.Sent()
	if len(sent) != 1 || !sent[0].Embed {
		t.Fatalf("sent = %+v", sent)
	}
	if !strings.Contains(sent[0].Content, "Saltpeter") {
		t.Fatalf("embed = %q", sent[0].Content)
	}
	if fx.gw.gotTurns != nil {
		t.Fatal("model was called on the lookup path")
	}
	history, err := fx.cs.FetchHistory("c-origin", "", 50)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("lookup path persisted %d turns", len(history))
	}
}

func TestHandlePlayerLookupNotFound(t *testing.T) {
	fx := newFixture(t)
	fx.listen(t, "c-origin")
	fx.look.err = players.ErrNotFound

	if err := fx.p.Handle(context.Background(), event("player id 999")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	origin := fx.dir.SentTo("c-origin")
	if len(origin) != 1 || !strings.Contains(origin[0], "No player found with ID 999") {
		t.Fatalf("origin sends = %v", origin)
	}
}
