// Package mentions maintains per-guild tables translating human-readable
// names ("@Alice", "#general") into Discord mention tokens.
package mentions

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/zulandar/dinbot/internal/directory"
)

// DefaultMemberLimit bounds how many members a rebuild enumerates.
const DefaultMemberLimit = 1000

// Replacement maps one display-form pattern to a platform mention token.
// Multiple patterns may map to the same token (username, global name, and
// nickname of the same member).
type Replacement struct {
	Pattern string // e.g. "@Alice" or "#general"
	Token   string // e.g. "<@123>" or "<#456>"
}

// UserToken returns the mention token for a user ID.
func UserToken(id string) string { return "<@" + id + ">" }

// RoleToken returns the mention token for a role ID.
func RoleToken(id string) string { return "<@&" + id + ">" }

// ChannelToken returns the mention token for a channel ID.
func ChannelToken(id string) string { return "<#" + id + ">" }

// Cache holds one replacement table per guild behind a reader/writer lock.
// Tables are rebuilt wholesale and swapped in; readers may observe a stale
// table while a rebuild is in flight.
type Cache struct {
	dir         directory.Directory
	memberLimit int

	mu       sync.RWMutex
	guilds   map[string][]Replacement
	versions map[string]time.Time
}

// CacheOpts holds parameters for creating a Cache.
type CacheOpts struct {
	Directory   directory.Directory
	MemberLimit int // defaults to DefaultMemberLimit
}

// NewCache creates a Cache.
func NewCache(opts CacheOpts) (*Cache, error) {
	if opts.Directory == nil {
		return nil, fmt.Errorf("mentions: directory is required")
	}
	limit := opts.MemberLimit
	if limit <= 0 {
		limit = DefaultMemberLimit
	}
	return &Cache{
		dir:         opts.Directory,
		memberLimit: limit,
		guilds:      make(map[string][]Replacement),
		versions:    make(map[string]time.Time),
	}, nil
}

// Build derives a replacement table from a guild snapshot, sorted by
// strictly descending pattern length so that the longest pattern always
// wins over a shorter overlapping one.
func Build(snap *directory.Snapshot) []Replacement {
	var reps []Replacement
	for _, r := range snap.Roles {
		if r.Name == "" {
			continue
		}
		reps = append(reps, Replacement{Pattern: "@" + r.Name, Token: RoleToken(r.ID)})
	}
	for _, ch := range snap.Channels {
		if ch.Name == "" {
			continue
		}
		reps = append(reps, Replacement{Pattern: "#" + ch.Name, Token: ChannelToken(ch.ID)})
	}
	for _, m := range snap.Members {
		token := UserToken(m.UserID)
		for _, name := range []string{m.Username, m.GlobalName, m.Nick} {
			if name == "" {
				continue
			}
			reps = append(reps, Replacement{Pattern: "@" + name, Token: token})
		}
	}
	sortByLength(reps)
	return reps
}

// sortByLength orders replacements by descending pattern length.
func sortByLength(reps []Replacement) {
	sort.SliceStable(reps, func(i, j int) bool {
		return len(reps[i].Pattern) > len(reps[j].Pattern)
	})
}

// Refresh rebuilds a guild's table in a detached goroutine. Fire-and-forget:
// there is no completion signal and no error channel; failures are logged
// and the previous table (if any) stays in place. Consumers needing
// freshness should compare Version timestamps.
func (c *Cache) Refresh(ctx context.Context, guildID string) {
	go func() {
		if err := c.RefreshNow(ctx, guildID); err != nil {
			log.Printf("mentions: refresh guild %s: %v", guildID, err)
		}
	}()
}

// RefreshNow rebuilds a guild's table synchronously and swaps it in
// wholesale. Used by Refresh and by the scheduled sweep.
func (c *Cache) RefreshNow(ctx context.Context, guildID string) error {
	snap, err := directory.BuildSnapshot(ctx, c.dir, guildID, c.memberLimit)
	if err != nil {
		return fmt.Errorf("mentions: snapshot guild %s: %w", guildID, err)
	}
	reps := Build(snap)

	c.mu.Lock()
	c.guilds[guildID] = reps
	c.versions[guildID] = time.Now()
	c.mu.Unlock()
	return nil
}

// Replacements returns the stored table for a guild. The second return is
// false when no table has been built yet.
func (c *Cache) Replacements(guildID string) ([]Replacement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reps, ok := c.guilds[guildID]
	return reps, ok
}

// Version returns when a guild's table was last rebuilt.
func (c *Cache) Version(guildID string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.versions[guildID]
	return v, ok
}

// Apply substitutes every cached pattern in text with its token. The second
// return is false when the guild has no table; callers should then fall back
// to a reduced replacement set.
func (c *Cache) Apply(text, guildID string) (string, bool) {
	reps, ok := c.Replacements(guildID)
	if !ok {
		return text, false
	}
	return ApplyReplacements(text, reps), true
}

// GuildStats describes one guild's table for the dashboard.
type GuildStats struct {
	GuildID     string    `json:"guild_id"`
	Entries     int       `json:"entries"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Stats returns per-guild table sizes and refresh times, sorted by guild ID.
func (c *Cache) Stats() []GuildStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := make([]GuildStats, 0, len(c.guilds))
	for gid, reps := range c.guilds {
		stats = append(stats, GuildStats{
			GuildID:     gid,
			Entries:     len(reps),
			RefreshedAt: c.versions[gid],
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].GuildID < stats[j].GuildID })
	return stats
}
