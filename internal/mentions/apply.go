package mentions

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zulandar/dinbot/internal/directory"
)

// ApplyReplacements substitutes each pattern in order with its token.
// Matching is case-insensitive. A match counts only when it is followed by
// end-of-string or a non-word rune, so "@John" never fires inside
// "@Johnathan". The leading boundary is the marker character (@ or #)
// carried by the pattern itself.
func ApplyReplacements(text string, reps []Replacement) string {
	for _, r := range reps {
		text = replaceAll(text, r.Pattern, r.Token)
	}
	return text
}

// replaceAll substitutes every boundary-valid, case-insensitive occurrence
// of pattern in text with token.
func replaceAll(text, pattern, token string) string {
	if pattern == "" {
		return text
	}
	n := len(pattern)
	var b strings.Builder
	i := 0
	for i < len(text) {
		if i+n <= len(text) && strings.EqualFold(text[i:i+n], pattern) && boundaryAfter(text, i+n) {
			b.WriteString(token)
			i += n
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		b.WriteString(text[i : i+size])
		i += size
	}
	return b.String()
}

// boundaryAfter reports whether position end in text is a valid match end:
// end-of-string or a rune that is not a letter, digit, or underscore.
func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(r)
}

// isWordRune reports whether r would extend a name, preventing a shorter
// pattern from matching a prefix of a longer one.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Fallback synthesizes a reduced replacement set from only the message's
// tagged users, the author, and any supplied roles. Full roster enumeration
// is deliberately excluded to bound the synchronous cost on a cache miss.
func Fallback(author directory.Member, tagged []directory.Member, roles []directory.Role) []Replacement {
	var reps []Replacement
	for _, r := range roles {
		if r.Name == "" {
			continue
		}
		reps = append(reps, Replacement{Pattern: "@" + r.Name, Token: RoleToken(r.ID)})
	}

	users := make([]directory.Member, 0, len(tagged)+1)
	users = append(users, tagged...)
	users = append(users, author)
	for _, u := range users {
		if u.UserID == "" {
			continue
		}
		token := UserToken(u.UserID)
		for _, name := range []string{u.Username, u.GlobalName, u.Nick} {
			if name == "" {
				continue
			}
			reps = append(reps, Replacement{Pattern: "@" + name, Token: token})
		}
	}
	sortByLength(reps)
	return reps
}
