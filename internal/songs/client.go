// Package songs searches the music catalog on behalf of chat commands.
package songs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultAPIBaseURL = "https://api.spotify.com/v1"
	defaultTokenURL   = "https://accounts.spotify.com/api/token"

	// DefaultSearchLimit caps results per search when the caller passes 0.
	DefaultSearchLimit = 5
)

// Track is one catalog track.
type Track struct {
	Name     string
	Artists  []string
	Album    string
	URL      string
	ImageURL string
}

// Playlist is one catalog playlist.
type Playlist struct {
	Name     string
	Owner    string
	Tracks   int
	URL      string
	ImageURL string
}

// Artist is one catalog artist.
type Artist struct {
	Name      string
	Followers int
	Genres    []string
	URL       string
	ImageURL  string
}

// Client searches the catalog using the client-credentials grant. Tokens
// are fetched and refreshed by the oauth2 transport.
type Client struct {
	http    *http.Client
	baseURL string
}

// ClientOpts configures a Client.
type ClientOpts struct {
	// ClientID identifies the application. Required.
	ClientID string

	// ClientSecret authenticates the application. Required.
	ClientSecret string

	// APIBaseURL overrides the catalog API root. Optional.
	APIBaseURL string

	// TokenURL overrides the token endpoint. Optional.
	TokenURL string
}

// NewClient validates opts and returns a Client.
func NewClient(ctx context.Context, opts ClientOpts) (*Client, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("songs: client ID is required")
	}
	if opts.ClientSecret == "" {
		return nil, fmt.Errorf("songs: client secret is required")
	}
	baseURL := opts.APIBaseURL
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	cc := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     tokenURL,
	}
	return &Client{http: cc.Client(ctx), baseURL: baseURL}, nil
}

type searchResponse struct {
	Tracks struct {
		Items []struct {
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Name   string `json:"name"`
				Images []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"album"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"items"`
	} `json:"tracks"`
	Playlists struct {
		Items []struct {
			Name  string `json:"name"`
			Owner struct {
				DisplayName string `json:"display_name"`
			} `json:"owner"`
			Tracks struct {
				Total int `json:"total"`
			} `json:"tracks"`
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"items"`
	} `json:"playlists"`
	Artists struct {
		Items []struct {
			Name      string `json:"name"`
			Followers struct {
				Total int `json:"total"`
			} `json:"followers"`
			Genres []string `json:"genres"`
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"items"`
	} `json:"artists"`
}

func (c *Client) search(ctx context.Context, query, kind string, limit int) (*searchResponse, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", kind)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("songs: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("songs: search %q: %w", query, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("songs: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("songs: search %q: status %d", query, resp.StatusCode)
	}
	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("songs: decode response: %w", err)
	}
	return &parsed, nil
}

// SearchTracks returns up to limit tracks matching the query.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	parsed, err := c.search(ctx, query, "track", limit)
	if err != nil {
		return nil, err
	}
	tracks := make([]Track, 0, len(parsed.Tracks.Items))
	for _, item := range parsed.Tracks.Items {
		t := Track{
			Name:  item.Name,
			Album: item.Album.Name,
			URL:   item.ExternalURLs.Spotify,
		}
		for _, a := range item.Artists {
			t.Artists = append(t.Artists, a.Name)
		}
		if len(item.Album.Images) > 0 {
			t.ImageURL = item.Album.Images[0].URL
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// SearchPlaylists returns up to limit playlists matching the query.
func (c *Client) SearchPlaylists(ctx context.Context, query string, limit int) ([]Playlist, error) {
	parsed, err := c.search(ctx, query, "playlist", limit)
	if err != nil {
		return nil, err
	}
	playlists := make([]Playlist, 0, len(parsed.Playlists.Items))
	for _, item := range parsed.Playlists.Items {
		p := Playlist{
			Name:   item.Name,
			Owner:  item.Owner.DisplayName,
			Tracks: item.Tracks.Total,
			URL:    item.ExternalURLs.Spotify,
		}
		if len(item.Images) > 0 {
			p.ImageURL = item.Images[0].URL
		}
		playlists = append(playlists, p)
	}
	return playlists, nil
}

// SearchArtists returns up to limit artists matching the query.
func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]Artist, error) {
	parsed, err := c.search(ctx, query, "artist", limit)
	if err != nil {
		return nil, err
	}
	artists := make([]Artist, 0, len(parsed.Artists.Items))
	for _, item := range parsed.Artists.Items {
		a := Artist{
			Name:      item.Name,
			Followers: item.Followers.Total,
			Genres:    item.Genres,
			URL:       item.ExternalURLs.Spotify,
		}
		if len(item.Images) > 0 {
			a.ImageURL = item.Images[0].URL
		}
		artists = append(artists, a)
	}
	return artists, nil
}
