package pipeline

import (
	"fmt"
	"regexp"

	"github.com/zulandar/dinbot/internal/players"
)

// playerLookupPattern recognizes the player-lookup phrases followed by a
// numeric ID. Matching is case-insensitive; a phrase occurrence with no
// digits after it does not block a later occurrence that has them. No model
// call happens on this path.
var playerLookupPattern = regexp.MustCompile(
	`(?i)(?:player\s*id|siapa player|cek player|cek akun|cek id|player)\s*(\d+)`)

// MatchPlayerID reports whether text is a player lookup request, and the ID
// it asks about.
func MatchPlayerID(text string) (string, bool) {
	m := playerLookupPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FormatPlayerProfile renders a resolved profile as the fixed-format embed
// body.
func FormatPlayerProfile(p *players.Profile) string {
	return fmt.Sprintf("**%s**\nPlayer ID: %d\nState: %d\nFurnace: %s",
		p.Nickname, p.FID, p.Kingdom, p.FurnaceDisplay)
}
