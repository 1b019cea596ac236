package bot

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/dinbot/internal/songs"
)

const embedColor = 0x5865F2

// commandDefinitions lists the slash commands the daemon registers on
// startup.
func commandDefinitions(withSongs bool) []*discordgo.ApplicationCommand {
	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        "settings",
			Description: "Configure the bot for this channel and guild",
		},
		{
			Name:        "imagine",
			Description: "Generate an image from a prompt",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prompt",
					Description: "What to render",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "size",
					Description: "Output size",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Square (1024x1024)", Value: "1024x1024"},
						{Name: "Landscape (1792x1024)", Value: "1792x1024"},
						{Name: "Portrait (1024x1792)", Value: "1024x1792"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "Number of images (1-4)",
				},
			},
		},
	}
	if withSongs {
		cmds = append(cmds, &discordgo.ApplicationCommand{
			Name:        "song",
			Description: "Search the music catalog",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "What to search for",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "kind",
					Description: "Result type",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Tracks", Value: "track"},
						{Name: "Playlists", Value: "playlist"},
						{Name: "Artists", Value: "artist"},
					},
				},
			},
		})
	}
	return cmds
}

// imagineRequest is the parsed /imagine invocation.
type imagineRequest struct {
	Prompt string
	Size   string
	Count  int
}

func parseImagineOptions(data discordgo.ApplicationCommandInteractionData) imagineRequest {
	req := imagineRequest{Count: 1}
	for _, opt := range data.Options {
		switch opt.Name {
		case "prompt":
			req.Prompt = opt.StringValue()
		case "size":
			req.Size = opt.StringValue()
		case "count":
			req.Count = int(opt.IntValue())
		}
	}
	if req.Count < 1 {
		req.Count = 1
	}
	if req.Count > 4 {
		req.Count = 4
	}
	return req
}

// renderImagineResult turns the provider's output into the deferred reply
// edit. A URL becomes an embedded image; a base64 data payload becomes a
// file attachment; anything else is passed through as text.
func renderImagineResult(prompt, result string) *discordgo.WebhookEdit {
	result = strings.TrimSpace(result)
	switch {
	case strings.HasPrefix(result, "http://"), strings.HasPrefix(result, "https://"):
		embeds := []*discordgo.MessageEmbed{{
			Title: "🎨 " + truncate(prompt, 240),
			Color: embedColor,
			Image: &discordgo.MessageEmbedImage{URL: result},
		}}
		return &discordgo.WebhookEdit{Embeds: &embeds}
	case strings.HasPrefix(result, "data:image/"):
		if payload, mimeType, ok := decodeDataURL(result); ok {
			content := "🎨 " + truncate(prompt, 1900)
			files := []*discordgo.File{{
				Name:        "imagine." + extensionFor(mimeType),
				ContentType: mimeType,
				Reader:      strings.NewReader(string(payload)),
			}}
			return &discordgo.WebhookEdit{Content: &content, Files: files}
		}
		fallthrough
	default:
		content := truncate(result, 2000)
		return &discordgo.WebhookEdit{Content: &content}
	}
}

func decodeDataURL(s string) ([]byte, string, bool) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", false
	}
	mimeType, b64, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return nil, "", false
	}
	payload, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, "", false
	}
	return payload, mimeType, true
}

func extensionFor(mimeType string) string {
	if ext, ok := strings.CutPrefix(mimeType, "image/"); ok && ext != "" {
		return ext
	}
	return "png"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// songRequest is the parsed /song invocation.
type songRequest struct {
	Query string
	Kind  string
}

func parseSongOptions(data discordgo.ApplicationCommandInteractionData) songRequest {
	req := songRequest{Kind: "track"}
	for _, opt := range data.Options {
		switch opt.Name {
		case "query":
			req.Query = opt.StringValue()
		case "kind":
			req.Kind = opt.StringValue()
		}
	}
	return req
}

// searchSongs runs one catalog search and renders the result list.
func searchSongs(ctx context.Context, client *songs.Client, req songRequest) (string, error) {
	var b strings.Builder
	switch req.Kind {
	case "playlist":
		playlists, err := client.SearchPlaylists(ctx, req.Query, songs.DefaultSearchLimit)
		if err != nil {
			return "", err
		}
		if len(playlists) == 0 {
			return "No playlists found.", nil
		}
		for i, p := range playlists {
			fmt.Fprintf(&b, "%d. [%s](%s) by %s (%d tracks)\n", i+1, p.Name, p.URL, p.Owner, p.Tracks)
		}
	case "artist":
		artists, err := client.SearchArtists(ctx, req.Query, songs.DefaultSearchLimit)
		if err != nil {
			return "", err
		}
		if len(artists) == 0 {
			return "No artists found.", nil
		}
		for i, a := range artists {
			fmt.Fprintf(&b, "%d. [%s](%s) (%d followers)\n", i+1, a.Name, a.URL, a.Followers)
		}
	default:
		tracks, err := client.SearchTracks(ctx, req.Query, songs.DefaultSearchLimit)
		if err != nil {
			return "", err
		}
		if len(tracks) == 0 {
			return "No tracks found.", nil
		}
		for i, tr := range tracks {
			fmt.Fprintf(&b, "%d. [%s](%s) by %s\n", i+1, tr.Name, tr.URL, strings.Join(tr.Artists, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
