// Package bot runs the Discord daemon: the gateway session, the message
// pipeline fan-out, slash command handling, and the scheduled mention
// cache sweep.
package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"github.com/zulandar/dinbot/internal/gateway"
	"github.com/zulandar/dinbot/internal/logring"
	"github.com/zulandar/dinbot/internal/mentions"
	"github.com/zulandar/dinbot/internal/pipeline"
	"github.com/zulandar/dinbot/internal/settings"
	"github.com/zulandar/dinbot/internal/songs"
	"github.com/zulandar/dinbot/internal/store"
)

// handleTimeout bounds one message's trip through the pipeline.
const handleTimeout = 2 * time.Minute

// Daemon owns the gateway session and routes events to the pipeline and
// the interaction handlers.
type Daemon struct {
	session    *discordgo.Session
	pipe       *pipeline.Pipeline
	mgr        *settings.Manager
	cache      *mentions.Cache
	policies   *store.PolicyStore
	gw         *gateway.Client
	imageModel string
	songs      *songs.Client
	logs       *logring.Buffer
	cronSpec   string
	out        io.Writer

	botUserID string
}

// Opts holds parameters for creating a Daemon.
type Opts struct {
	// Session is the gateway session, created but not yet opened.
	// Required.
	Session *discordgo.Session

	// Pipeline processes inbound messages. Required.
	Pipeline *pipeline.Pipeline

	// Settings drives the /settings surface. Required.
	Settings *settings.Manager

	// Cache is the mention table, refreshed by the scheduled sweep.
	// Required.
	Cache *mentions.Cache

	// Policies supplies the guilds the sweep refreshes. Required.
	Policies *store.PolicyStore

	// Gateway serves /imagine. Required.
	Gateway *gateway.Client

	// ImageModel is the model /imagine uses when the guild has no
	// override.
	ImageModel string

	// Songs serves /song. Optional; the command is not registered
	// without it.
	Songs *songs.Client

	// Logs receives daemon activity for the dashboard. Optional.
	Logs *logring.Buffer

	// RefreshCron schedules the mention cache sweep. Optional.
	RefreshCron string

	// Out receives operator-facing progress lines. Optional.
	Out io.Writer
}

// New validates opts and returns a Daemon.
func New(opts Opts) (*Daemon, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("bot: session is required")
	}
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("bot: pipeline is required")
	}
	if opts.Settings == nil {
		return nil, fmt.Errorf("bot: settings manager is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("bot: mention cache is required")
	}
	if opts.Policies == nil {
		return nil, fmt.Errorf("bot: policy store is required")
	}
	if opts.Gateway == nil {
		return nil, fmt.Errorf("bot: gateway is required")
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Daemon{
		session:    opts.Session,
		pipe:       opts.Pipeline,
		mgr:        opts.Settings,
		cache:      opts.Cache,
		policies:   opts.Policies,
		gw:         opts.Gateway,
		imageModel: opts.ImageModel,
		songs:      opts.Songs,
		logs:       opts.Logs,
		cronSpec:   opts.RefreshCron,
		out:        out,
	}, nil
}

// Run connects to the gateway and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	dg := d.session
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	dg.AddHandler(d.onReady)
	dg.AddHandler(d.onMessageCreate)
	dg.AddHandler(d.onInteractionCreate)
	dg.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		d.logf("warn", "gateway disconnected, awaiting auto-reconnect")
	})
	dg.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		d.logf("info", "gateway session resumed")
	})

	if err := dg.Open(); err != nil {
		return fmt.Errorf("bot: open gateway: %w", err)
	}
	defer dg.Close()

	if err := d.registerCommands(); err != nil {
		return err
	}

	var sched *cron.Cron
	if d.cronSpec != "" {
		sched = cron.New()
		if _, err := sched.AddFunc(d.cronSpec, d.sweepCaches); err != nil {
			return fmt.Errorf("bot: cron spec %q: %w", d.cronSpec, err)
		}
		sched.Start()
		defer sched.Stop()
		d.logf("info", "mention sweep scheduled: %s", d.cronSpec)
	}

	fmt.Fprintln(d.out, "bot: daemon running, press Ctrl+C to stop")
	<-ctx.Done()
	d.logf("info", "daemon shutting down")
	return nil
}

func (d *Daemon) registerCommands() error {
	cmds := commandDefinitions(d.songs != nil)
	_, err := d.session.ApplicationCommandBulkOverwrite(d.session.State.User.ID, "", cmds)
	if err != nil {
		return fmt.Errorf("bot: register commands: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Gateway handlers
// ---------------------------------------------------------------------------

func (d *Daemon) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	d.botUserID = r.User.ID
	d.logf("info", "connected as %s (ID: %s)", r.User.Username, r.User.ID)
}

func (d *Daemon) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == d.botUserID {
		return
	}
	if m.GuildID == "" {
		return
	}
	event := EventFromMessage(m, d.botUserID)
	// Each message runs independently so one slow completion does not
	// serialize the channel.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		if err := d.pipe.Handle(ctx, event); err != nil {
			d.logf("error", "pipeline: %v", err)
		}
	}()
}

func (d *Daemon) onInteractionCreate(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	var err error
	switch ic.Type {
	case discordgo.InteractionApplicationCommand:
		err = d.handleCommand(s, ic)
	case discordgo.InteractionMessageComponent:
		if strings.HasPrefix(ic.MessageComponentData().CustomID, "settings:") {
			err = d.mgr.HandleComponent(s, ic)
		}
	case discordgo.InteractionModalSubmit:
		err = d.mgr.HandleModal(s, ic)
	}
	if err != nil {
		d.logf("error", "interaction: %v", err)
	}
}

func (d *Daemon) handleCommand(s *discordgo.Session, ic *discordgo.InteractionCreate) error {
	data := ic.ApplicationCommandData()
	switch data.Name {
	case "settings":
		return d.mgr.Open(s, ic)
	case "imagine":
		return d.handleImagine(s, ic, data)
	case "song":
		return d.handleSong(s, ic, data)
	default:
		return fmt.Errorf("bot: unknown command %q", data.Name)
	}
}

func (d *Daemon) handleImagine(s *discordgo.Session, ic *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	req := parseImagineOptions(data)
	if err := deferResponse(s, ic); err != nil {
		return err
	}

	model := d.imageModel
	if gp, err := d.policies.GuildPolicy(ic.GuildID); err == nil && gp.ImageModel != "" {
		model = gp.ImageModel
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	result, err := d.gw.GenerateImage(ctx, model, req.Prompt, req.Size, req.Count)
	if err != nil {
		d.logf("error", "imagine: %v", err)
		return editResponseText(s, ic, "❌ Image generation failed. Please try again later.")
	}
	_, err = s.InteractionResponseEdit(ic.Interaction, renderImagineResult(req.Prompt, result))
	return err
}

func (d *Daemon) handleSong(s *discordgo.Session, ic *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	if d.songs == nil {
		return respondText(s, ic, "Music search is not configured.")
	}
	req := parseSongOptions(data)
	if err := deferResponse(s, ic); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	body, err := searchSongs(ctx, d.songs, req)
	if err != nil {
		d.logf("error", "song search: %v", err)
		return editResponseText(s, ic, "❌ Music search failed. Please try again later.")
	}
	embeds := []*discordgo.MessageEmbed{{
		Title:       "🎵 " + truncate(req.Query, 240),
		Color:       embedColor,
		Description: body,
	}}
	_, err = s.InteractionResponseEdit(ic.Interaction, &discordgo.WebhookEdit{Embeds: &embeds})
	return err
}

// ---------------------------------------------------------------------------
// Scheduled sweep
// ---------------------------------------------------------------------------

// sweepCaches rebuilds the mention table for every guild with a listening
// channel. Failures keep the previous tables.
func (d *Daemon) sweepCaches() {
	guilds, err := d.policies.ListeningGuilds()
	if err != nil {
		d.logf("error", "mention sweep: %v", err)
		return
	}
	for _, guildID := range guilds {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := d.cache.RefreshNow(ctx, guildID)
		cancel()
		if err != nil {
			d.logf("warn", "mention sweep guild %s: %v", guildID, err)
			continue
		}
		d.logf("info", "mention table refreshed for guild %s", guildID)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (d *Daemon) logf(level, format string, args ...any) {
	log.Printf("bot: "+format, args...)
	if d.logs != nil {
		d.logs.Append(level, format, args...)
	}
}

func deferResponse(s *discordgo.Session, ic *discordgo.InteractionCreate) error {
	return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func editResponseText(s *discordgo.Session, ic *discordgo.InteractionCreate, text string) error {
	_, err := s.InteractionResponseEdit(ic.Interaction, &discordgo.WebhookEdit{Content: &text})
	return err
}

func respondText(s *discordgo.Session, ic *discordgo.InteractionCreate, text string) error {
	return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text},
	})
}
