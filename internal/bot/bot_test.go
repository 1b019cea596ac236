package bot

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

// ---------------------------------------------------------------------------
// Event conversion
// ---------------------------------------------------------------------------

func message() *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		GuildID:   "g1",
		ChannelID: "c1",
		Content:   "hello <@bot-1>",
		Author:    &discordgo.User{ID: "u1", Username: "alice", GlobalName: "Alice G"},
		Mentions: []*discordgo.User{
			{ID: "bot-1", Username: "dinbot"},
			{ID: "u2", Username: "bob", GlobalName: "Bobby"},
		},
		MentionRoles: []string{"r1"},
		Attachments: []*discordgo.MessageAttachment{
			{Filename: "notes.txt", ContentType: "text/plain", URL: "https://cdn/notes.txt", Size: 42},
		},
	}}
}

func TestEventFromMessage(t *testing.T) {
	ev := EventFromMessage(message(), "bot-1")
	if ev.GuildID != "g1" || ev.ChannelID != "c1" || ev.AuthorID != "u1" {
		t.Fatalf("event = %+v", ev)
	}
	if !ev.BotMentioned {
		t.Fatal("bot mention not detected")
	}
	if len(ev.MentionedUsers) != 1 || ev.MentionedUsers[0].UserID != "u2" {
		t.Fatalf("mentioned users = %+v", ev.MentionedUsers)
	}
	if len(ev.Attachments) != 1 || ev.Attachments[0].Size != 42 {
		t.Fatalf("attachments = %+v", ev.Attachments)
	}
	if len(ev.MentionedRoleIDs) != 1 || ev.MentionedRoleIDs[0] != "r1" {
		t.Fatalf("roles = %v", ev.MentionedRoleIDs)
	}
}

func TestEventFromMessageDisplayName(t *testing.T) {
	m := message()
	if got := EventFromMessage(m, "bot-1").AuthorDisplayName; got != "Alice G" {
		t.Fatalf("display name = %q", got)
	}
	m.Member = &discordgo.Member{Nick: "Ali"}
	if got := EventFromMessage(m, "bot-1").AuthorDisplayName; got != "Ali" {
		t.Fatalf("display name = %q", got)
	}
}

func TestEventFromMessageReferenced(t *testing.T) {
	m := message()
	m.ReferencedMessage = &discordgo.Message{
		Author:  &discordgo.User{Username: "carol"},
		Content: "the original",
	}
	ev := EventFromMessage(m, "bot-1")
	if ev.Referenced == nil || ev.Referenced.AuthorName != "carol" {
		t.Fatalf("referenced = %+v", ev.Referenced)
	}
}

// ---------------------------------------------------------------------------
// Command definitions and options
// ---------------------------------------------------------------------------

func TestCommandDefinitions(t *testing.T) {
	withSongs := commandDefinitions(true)
	if len(withSongs) != 3 {
		t.Fatalf("got %d commands", len(withSongs))
	}
	withoutSongs := commandDefinitions(false)
	for _, c := range withoutSongs {
		if c.Name == "song" {
			t.Fatal("song command registered without a songs client")
		}
	}
}

func TestParseImagineOptions(t *testing.T) {
	data := discordgo.ApplicationCommandInteractionData{
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "prompt", Type: discordgo.ApplicationCommandOptionString, Value: "a red fox"},
			{Name: "size", Type: discordgo.ApplicationCommandOptionString, Value: "1792x1024"},
			{Name: "count", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(9)},
		},
	}
	req := parseImagineOptions(data)
	if req.Prompt != "a red fox" || req.Size != "1792x1024" {
		t.Fatalf("req = %+v", req)
	}
	if req.Count != 4 {
		t.Fatalf("count = %d, want clamp to 4", req.Count)
	}
}

func TestParseImagineOptionsDefaults(t *testing.T) {
	data := discordgo.ApplicationCommandInteractionData{
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "prompt", Type: discordgo.ApplicationCommandOptionString, Value: "x"},
		},
	}
	req := parseImagineOptions(data)
	if req.Count != 1 || req.Size != "" {
		t.Fatalf("req = %+v", req)
	}
}

func TestParseSongOptionsDefaultsToTracks(t *testing.T) {
	data := discordgo.ApplicationCommandInteractionData{
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: "tame impala"},
		},
	}
	req := parseSongOptions(data)
	if req.Query != "tame impala" || req.Kind != "track" {
		t.Fatalf("req = %+v", req)
	}
}

// ---------------------------------------------------------------------------
// Imagine result rendering
// ---------------------------------------------------------------------------

func TestRenderImagineResultURL(t *testing.T) {
	edit := renderImagineResult("a fox", "https://img.example/fox.png")
	if edit.Embeds == nil || len(*edit.Embeds) != 1 {
		t.Fatalf("edit = %+v", edit)
	}
	embed := (*edit.Embeds)[0]
	if embed.Image == nil || embed.Image.URL != "https://img.example/fox.png" {
		t.Fatalf("embed = %+v", embed)
	}
}

func TestRenderImagineResultDataURL(t *testing.T) {
	// "0x89PNG" base64-encoded.
	edit := renderImagineResult("a fox", "data:image/png;base64,iVBORw==")
	if len(edit.Files) != 1 {
		t.Fatalf("edit = %+v", edit)
	}
	if edit.Files[0].Name != "imagine.png" || edit.Files[0].ContentType != "image/png" {
		t.Fatalf("file = %+v", edit.Files[0])
	}
}

func TestRenderImagineResultPlainText(t *testing.T) {
	edit := renderImagineResult("a fox", "I cannot render that.")
	if edit.Content == nil || *edit.Content != "I cannot render that." {
		t.Fatalf("edit = %+v", edit)
	}
}

func TestDecodeDataURL(t *testing.T) {
	payload, mimeType, ok := decodeDataURL("data:image/jpeg;base64,aGVsbG8=")
	if !ok || mimeType != "image/jpeg" || string(payload) != "hello" {
		t.Fatalf("decode = (%q, %q, %v)", payload, mimeType, ok)
	}
	if _, _, ok := decodeDataURL("data:image/jpeg;base64,%%%"); ok {
		t.Fatal("invalid base64 decoded")
	}
	if _, _, ok := decodeDataURL("not a data url"); ok {
		t.Fatal("non data URL decoded")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("a", 50)
	got := truncate(long, 10)
	if len(got) > 12 || !strings.HasSuffix(got, "…") {
		t.Fatalf("got %q (len %d)", got, len(got))
	}
}
