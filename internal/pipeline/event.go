// Package pipeline processes one inbound chat event end to end: trigger
// evaluation, context assembly, completion, directive execution, and reply
// emission.
package pipeline

import "github.com/zulandar/dinbot/internal/directory"

// Attachment describes one file attached to an inbound message.
type Attachment struct {
	Filename    string
	ContentType string
	URL         string
	Size        int
}

// ReferencedMessage is an excerpt of a message the event replies to.
type ReferencedMessage struct {
	AuthorName string
	Content    string
}

// MessageEvent is the transient view of one inbound message. It is built by
// the platform handler and never persisted.
type MessageEvent struct {
	GuildID           string
	ChannelID         string
	AuthorID          string
	AuthorDisplayName string
	RawContent        string
	Attachments       []Attachment
	MentionedUsers    []directory.Member
	MentionedRoleIDs  []string
	Referenced        *ReferencedMessage
	BotMentioned      bool
}

// Author returns the event author as a directory member, for fallback
// mention resolution.
func (e *MessageEvent) Author() directory.Member {
	return directory.Member{
		UserID:   e.AuthorID,
		Username: e.AuthorDisplayName,
	}
}
