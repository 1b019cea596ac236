package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/zulandar/dinbot/internal/directory"
)

const (
	// plainMessageLimit is the largest reply sent as a plain message.
	plainMessageLimit = 2000

	// embedChunkLimit is the chunk size for long replies sent as embeds.
	embedChunkLimit = 4000

	embedColor = 0x5865F2

	genericAck     = "✅ Action processed."
	terseSendAck   = "✅ Message sent."
	reportHeading  = "🤖 **System Report:**"
	genericApology = "❌ Something went wrong with the bot. Please try again later."
)

// Emitter delivers the visible portion of a completion plus any directive
// outcome report to the origin channel.
type Emitter struct {
	dir directory.Directory
}

// NewEmitter returns an Emitter.
func NewEmitter(dir directory.Directory) *Emitter {
	return &Emitter{dir: dir}
}

// Emit sends the visible text. Replies within the plain limit go out as one
// message; longer replies are chunked into embeds. An empty visible text
// with no outcomes sends a generic acknowledgement so the channel is never
// silent. After the text, the outcome report is sent if one is due.
func (em *Emitter) Emit(ctx context.Context, channelID, visible string, outcomes []Outcome) error {
	if visible == "" && len(outcomes) == 0 {
		return em.dir.SendMessage(ctx, channelID, genericAck)
	}
	if visible != "" {
		if len(visible) <= plainMessageLimit {
			if err := em.dir.SendMessage(ctx, channelID, visible); err != nil {
				return fmt.Errorf("pipeline: send reply: %w", err)
			}
		} else {
			for _, chunk := range ChunkText(visible, embedChunkLimit) {
				if err := em.dir.SendEmbed(ctx, channelID, chunk, embedColor); err != nil {
					return fmt.Errorf("pipeline: send reply chunk: %w", err)
				}
			}
		}
	}
	if report := OutcomeReport(outcomes); report != "" {
		if err := em.dir.SendMessage(ctx, channelID, report); err != nil {
			return fmt.Errorf("pipeline: send outcome report: %w", err)
		}
	}
	return nil
}

// ChunkText splits text into pieces of at most limit bytes, breaking at the
// last newline within the window, then the last space, then hard at the
// limit. Concatenating the chunks reproduces the input exactly.
func ChunkText(text string, limit int) []string {
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = strings.LastIndexByte(text[:limit], ' ')
		}
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// OutcomeReport renders the directive outcomes for the origin channel. No
// outcomes yields no report; all-success yields the terse acknowledgement;
// any failure yields a consolidated per-directive report.
func OutcomeReport(outcomes []Outcome) string {
	if len(outcomes) == 0 {
		return ""
	}
	failed := false
	for _, o := range outcomes {
		if o.Err != nil {
			failed = true
			break
		}
	}
	if !failed {
		return terseSendAck
	}
	var b strings.Builder
	b.WriteString(reportHeading)
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(&b, "\n⚠️ Could not send to %s: %v", o.Target, o.Err)
		} else {
			fmt.Fprintf(&b, "\n✅ Message sent to %s", o.Target)
		}
	}
	return b.String()
}

// OutcomeSummary renders the one-line summary appended to the persisted
// assistant turn, so the model later remembers which sends happened.
func OutcomeSummary(outcomes []Outcome) string {
	if len(outcomes) == 0 {
		return ""
	}
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			parts = append(parts, fmt.Sprintf("Failed to send to %s", o.Target))
		} else {
			parts = append(parts, fmt.Sprintf("Message sent to %s", o.Target))
		}
	}
	return "[System Report: " + strings.Join(parts, ", ") + "]"
}
