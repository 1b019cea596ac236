// Package players looks up game player profiles through the signed roster
// endpoint.
package players

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound reports a player ID the roster does not know.
var ErrNotFound = errors.New("players: player not found")

const defaultTimeout = 15 * time.Second

// Profile is one resolved player.
type Profile struct {
	FID            int64
	Nickname       string
	Kingdom        int64
	FurnaceLevel   int64
	FurnaceDisplay string
	AvatarURL      string
}

// Client signs and posts player lookups.
type Client struct {
	endpoint string
	origin   string
	secret   string
	http     *http.Client
}

// ClientOpts configures a Client.
type ClientOpts struct {
	// Endpoint is the lookup URL. Required.
	Endpoint string

	// Origin is sent as the Origin header. Required.
	Origin string

	// Secret is appended to the form before hashing. Required.
	Secret string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// NewClient validates opts and returns a Client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("players: endpoint is required")
	}
	if opts.Origin == "" {
		return nil, fmt.Errorf("players: origin is required")
	}
	if opts.Secret == "" {
		return nil, fmt.Errorf("players: secret is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		endpoint: opts.Endpoint,
		origin:   opts.Origin,
		secret:   opts.Secret,
		http:     httpClient,
	}, nil
}

type lookupResponse struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	ErrCode string `json:"err_code"`
	Data    struct {
		FID         int64  `json:"fid"`
		Nickname    string `json:"nickname"`
		KID         int64  `json:"kid"`
		StoveLv     int64  `json:"stove_lv"`
		AvatarImage string `json:"avatar_image"`
	} `json:"data"`
}

// Lookup resolves one player ID. The form is signed with an MD5 digest over
// the parameter string plus the shared secret, with the current time in
// milliseconds as the nonce.
func (c *Client) Lookup(ctx context.Context, fid string) (*Profile, error) {
	form := fmt.Sprintf("fid=%s&time=%d", fid, time.Now().UnixMilli())
	sign := fmt.Sprintf("%x", md5.Sum([]byte(form+c.secret)))
	body := "sign=" + sign + "&" + form

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("players: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", c.origin)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("players: lookup %s: %w", fid, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("players: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("players: lookup %s: status %d", fid, resp.StatusCode)
	}

	var parsed lookupResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("players: decode response: %w", err)
	}
	if parsed.Code != 0 || parsed.ErrCode != "" {
		if parsed.ErrCode == "40004" || strings.Contains(strings.ToLower(parsed.Msg), "not exist") {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("players: lookup %s: %s (code %d)", fid, parsed.Msg, parsed.Code)
	}

	return &Profile{
		FID:            parsed.Data.FID,
		Nickname:       parsed.Data.Nickname,
		Kingdom:        parsed.Data.KID,
		FurnaceLevel:   parsed.Data.StoveLv,
		FurnaceDisplay: FurnaceDisplay(parsed.Data.StoveLv),
		AvatarURL:      parsed.Data.AvatarImage,
	}, nil
}

// FurnaceDisplay renders a furnace level the way the game shows it: plain
// levels through 30, the 30-n ladder through 34, then fire crystal tiers in
// steps of five.
func FurnaceDisplay(lv int64) string {
	switch {
	case lv >= 35 && lv <= 84:
		tier := (lv-35)/5 + 1
		sub := (lv - 35) % 5
		if sub == 0 {
			return fmt.Sprintf("FC %d", tier)
		}
		return fmt.Sprintf("FC %d-%d", tier, sub)
	case lv >= 31 && lv <= 34:
		return fmt.Sprintf("30-%d", lv-30)
	default:
		return fmt.Sprintf("Level %d", lv)
	}
}
