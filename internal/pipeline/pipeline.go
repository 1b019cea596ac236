package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/zulandar/dinbot/internal/directory"
	"github.com/zulandar/dinbot/internal/gateway"
	"github.com/zulandar/dinbot/internal/mentions"
	"github.com/zulandar/dinbot/internal/models"
	"github.com/zulandar/dinbot/internal/players"
	"github.com/zulandar/dinbot/internal/store"
)

const imageCountGuidance = "❌ The image model accepts a single image per request. Please attach one image and try again."

// Completer produces one completion for a turn sequence.
type Completer interface {
	Complete(ctx context.Context, model string, turns []gateway.Turn) (string, error)
}

// PlayerLookup resolves game player IDs. Optional.
type PlayerLookup interface {
	Lookup(ctx context.Context, fid string) (*players.Profile, error)
}

// Pipeline wires the stores, the directory, the mention cache, and the
// completion gateway into the message flow.
type Pipeline struct {
	convs    *store.ConversationStore
	policies *store.PolicyStore
	dir      directory.Directory
	cache    *mentions.Cache
	gw       Completer
	lookup   PlayerLookup
	fetcher  *Fetcher
	asm      *Assembler
	exec     *Executor
	emit     *Emitter
	out      io.Writer
}

// Opts holds parameters for creating a Pipeline.
type Opts struct {
	Conversations *store.ConversationStore
	Policies      *store.PolicyStore
	Directory     directory.Directory
	Cache         *mentions.Cache
	Gateway       Completer

	// Players enables the player-lookup short circuit. Optional.
	Players PlayerLookup

	// Fetcher downloads attachments. Optional; a default is built.
	Fetcher *Fetcher

	// Out receives operator-facing progress lines. Optional.
	Out io.Writer
}

// New validates opts and returns a Pipeline.
func New(opts Opts) (*Pipeline, error) {
	if opts.Conversations == nil {
		return nil, fmt.Errorf("pipeline: conversation store is required")
	}
	if opts.Policies == nil {
		return nil, fmt.Errorf("pipeline: policy store is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("pipeline: directory is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("pipeline: mention cache is required")
	}
	if opts.Gateway == nil {
		return nil, fmt.Errorf("pipeline: gateway is required")
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(nil)
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Pipeline{
		convs:    opts.Conversations,
		policies: opts.Policies,
		dir:      opts.Directory,
		cache:    opts.Cache,
		gw:       opts.Gateway,
		lookup:   opts.Players,
		fetcher:  fetcher,
		asm:      NewAssembler(opts.Directory),
		exec:     NewExecutor(opts.Directory, opts.Cache),
		emit:     NewEmitter(opts.Directory),
		out:      out,
	}, nil
}

// Handle runs one inbound message through the full flow. Messages that do
// not trigger return immediately with no side effects. Failures after the
// trigger degrade into an apology in the origin channel; the assistant turn
// is only persisted when a reply was actually delivered.
func (p *Pipeline) Handle(ctx context.Context, event *MessageEvent) error {
	policy, err := p.policies.ChannelPolicy(event.ChannelID)
	if err != nil {
		return fmt.Errorf("pipeline: channel policy: %w", err)
	}
	if !ShouldProcess(policy, event) {
		return nil
	}

	if fid, ok := MatchPlayerID(event.RawContent); ok && p.lookup != nil {
		return p.handlePlayerLookup(ctx, event, fid)
	}

	if err := p.dir.Typing(ctx, event.ChannelID); err != nil {
		log.Printf("pipeline: typing indicator: %v", err)
	}

	content, imageURLs := p.fetcher.ExpandAttachments(ctx, event.RawContent, event.Attachments)

	userTurn := &models.ConversationTurn{
		GuildID:    event.GuildID,
		ChannelID:  event.ChannelID,
		UserID:     event.AuthorID,
		AuthorName: event.AuthorDisplayName,
		Role:       models.RoleUser,
		Content:    fmt.Sprintf("[%s]: %s", event.AuthorDisplayName, content),
	}
	if err := p.convs.Append(userTurn); err != nil {
		return fmt.Errorf("pipeline: persist user turn: %w", err)
	}

	guildPolicy, err := p.policies.GuildPolicy(event.GuildID)
	if err != nil {
		return fmt.Errorf("pipeline: guild policy: %w", err)
	}

	userScope := event.AuthorID
	if policy.SharedScope {
		userScope = ""
	}
	history, err := p.convs.FetchHistory(event.ChannelID, userScope, store.DefaultHistoryLimit)
	if err != nil {
		return fmt.Errorf("pipeline: fetch history: %w", err)
	}

	turns := p.buildTurns(ctx, guildPolicy.SystemPrompt, event, history, imageURLs)

	completion, err := p.gw.Complete(ctx, guildPolicy.ChatModel, turns)
	if err != nil {
		log.Printf("pipeline: completion: %v", err)
		p.apologize(ctx, event.ChannelID, err)
		return nil
	}

	dirs := ParseDirectives(completion)
	outcomes := p.exec.Execute(ctx, event, dirs)
	visible := strings.TrimSpace(StripDirectives(completion, dirs))

	if strings.ContainsAny(visible, "@#") {
		if resolved, ok := p.cache.Apply(visible, event.GuildID); ok {
			visible = resolved
		}
	}

	if err := p.emit.Emit(ctx, event.ChannelID, visible, outcomes); err != nil {
		log.Printf("pipeline: emit: %v", err)
		p.apologize(ctx, event.ChannelID, err)
		return nil
	}

	persisted := visible
	if summary := OutcomeSummary(outcomes); summary != "" {
		if persisted != "" {
			persisted += "\n"
		}
		persisted += summary
	}
	if persisted != "" {
		assistantTurn := &models.ConversationTurn{
			GuildID:   event.GuildID,
			ChannelID: event.ChannelID,
			UserID:    event.AuthorID,
			Role:      models.RoleAssistant,
			Content:   persisted,
		}
		if err := p.convs.Append(assistantTurn); err != nil {
			return fmt.Errorf("pipeline: persist assistant turn: %w", err)
		}
	}
	fmt.Fprintf(p.out, "pipeline: replied in channel %s (%d directive(s))\n", event.ChannelID, len(dirs))
	return nil
}

// buildTurns assembles system turn plus history, inlining images on the
// final user turn when the event carried any.
func (p *Pipeline) buildTurns(ctx context.Context, persona string, event *MessageEvent, history []models.ConversationTurn, imageURLs []string) []gateway.Turn {
	turns := make([]gateway.Turn, 0, len(history)+1)
	turns = append(turns, gateway.Turn{
		Role:    "system",
		Content: p.asm.BuildSystemTurn(ctx, persona, event, len(imageURLs)),
	})
	for _, h := range history {
		turns = append(turns, gateway.Turn{Role: h.Role, Content: h.Content})
	}
	if len(imageURLs) > 0 && len(turns) > 1 {
		last := &turns[len(turns)-1]
		if last.Role == models.RoleUser {
			last.Images = p.fetcher.InlineImages(ctx, imageURLs)
		}
	}
	return turns
}

func (p *Pipeline) handlePlayerLookup(ctx context.Context, event *MessageEvent, fid string) error {
	if err := p.dir.Typing(ctx, event.ChannelID); err != nil {
		log.Printf("pipeline: typing indicator: %v", err)
	}
	profile, err := p.lookup.Lookup(ctx, fid)
	if err != nil {
		msg := fmt.Sprintf("❌ Failed to fetch player data for ID %s.", fid)
		if errors.Is(err, players.ErrNotFound) {
			msg = fmt.Sprintf("❌ No player found with ID %s.", fid)
		}
		if serr := p.dir.SendMessage(ctx, event.ChannelID, msg); serr != nil {
			return fmt.Errorf("pipeline: report lookup failure: %w", serr)
		}
		return nil
	}
	if err := p.dir.SendEmbed(ctx, event.ChannelID, FormatPlayerProfile(profile), embedColor); err != nil {
		return fmt.Errorf("pipeline: send player profile: %w", err)
	}
	return nil
}

// apologize reports a degraded turn to the channel. The image-count
// rejection gets specific guidance; everything else gets the generic line.
func (p *Pipeline) apologize(ctx context.Context, channelID string, cause error) {
	msg := genericApology
	if errors.Is(cause, gateway.ErrImageCount) {
		msg = imageCountGuidance
	}
	if err := p.dir.SendMessage(ctx, channelID, msg); err != nil {
		log.Printf("pipeline: send apology: %v", err)
	}
}
