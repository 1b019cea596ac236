package settings

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/dinbot/internal/mentions"
	"github.com/zulandar/dinbot/internal/store"
)

const (
	// MenuTimeout is how long a settings menu accepts interactions after
	// its last activity.
	MenuTimeout = 15 * time.Minute

	// ModalTimeout is how long a personality modal submission is accepted
	// after the modal was opened.
	ModalTimeout = 5 * time.Minute

	expiredNotice = "⏱️ This settings menu has expired. Run /settings again."
)

// responder is the slice of the session the manager needs to answer
// interactions.
type responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Manager owns the settings surface state: which menus are live and when
// each personality modal was opened.
type Manager struct {
	policies    *store.PolicyStore
	convs       *store.ConversationStore
	cache       *mentions.Cache
	chatModels  []string
	imageModels []string

	mu     sync.Mutex
	menus  map[string]time.Time // channel ID -> last activity
	modals map[string]time.Time // guild ID -> modal opened

	now func() time.Time
}

// ManagerOpts holds parameters for creating a Manager.
type ManagerOpts struct {
	Policies      *store.PolicyStore
	Conversations *store.ConversationStore
	Cache         *mentions.Cache

	// ChatModels and ImageModels populate the model selects.
	ChatModels  []string
	ImageModels []string
}

// NewManager validates opts and returns a Manager.
func NewManager(opts ManagerOpts) (*Manager, error) {
	if opts.Policies == nil {
		return nil, fmt.Errorf("settings: policy store is required")
	}
	if opts.Conversations == nil {
		return nil, fmt.Errorf("settings: conversation store is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("settings: mention cache is required")
	}
	if len(opts.ChatModels) == 0 {
		return nil, fmt.Errorf("settings: at least one chat model is required")
	}
	return &Manager{
		policies:    opts.Policies,
		convs:       opts.Conversations,
		cache:       opts.Cache,
		chatModels:  opts.ChatModels,
		imageModels: opts.ImageModels,
		menus:       make(map[string]time.Time),
		modals:      make(map[string]time.Time),
		now:         time.Now,
	}, nil
}

// Open answers the /settings command with the root menu and registers the
// channel's menu session.
func (m *Manager) Open(s responder, ic *discordgo.InteractionCreate) error {
	embeds, components, err := m.rootView(ic.GuildID, ic.ChannelID)
	if err != nil {
		return err
	}
	m.touchMenu(ic.ChannelID)
	return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     embeds,
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
}

// HandleComponent routes one button press or select choice. Interactions
// against an expired menu get the expiry notice and change nothing.
func (m *Manager) HandleComponent(s responder, ic *discordgo.InteractionCreate) error {
	data := ic.MessageComponentData()
	cmd, err := ParseCustomID(data.CustomID)
	if err != nil {
		return err
	}
	if len(data.Values) > 0 {
		cmd.Value = data.Values[0]
	}
	if !m.menuAlive(ic.ChannelID) {
		return respondEphemeral(s, ic, expiredNotice)
	}
	m.touchMenu(ic.ChannelID)

	switch cmd.Kind {
	case KindToggleListening, KindToggleShared, KindToggleSecondary:
		if err := m.toggle(ic.GuildID, ic.ChannelID, cmd.Kind); err != nil {
			return err
		}
		return m.updateWithRoot(s, ic)
	case KindOpenModels:
		return m.updateWithModels(s, ic)
	case KindBack:
		return m.updateWithRoot(s, ic)
	case KindClearMemory:
		if err := m.convs.Wipe(ic.GuildID); err != nil {
			return fmt.Errorf("settings: clear memory: %w", err)
		}
		log.Printf("settings: cleared conversation memory for guild %s", ic.GuildID)
		return m.updateWithRoot(s, ic)
	case KindOpenPersonality:
		return m.openPersonality(s, ic)
	case KindSelectChatModel, KindSelectImageModel:
		if err := m.selectModel(ic.GuildID, cmd); err != nil {
			return err
		}
		return m.updateWithModels(s, ic)
	default:
		return fmt.Errorf("settings: unhandled component kind %d", cmd.Kind)
	}
}

// HandleModal routes a personality modal submission. Submissions after the
// modal deadline are dropped without changing the prompt.
func (m *Manager) HandleModal(s responder, ic *discordgo.InteractionCreate) error {
	data := ic.ModalSubmitData()
	cmd, err := ParseCustomID(data.CustomID)
	if err != nil {
		return err
	}
	if cmd.Kind != KindSubmitPersonality {
		return fmt.Errorf("settings: unexpected modal %q", data.CustomID)
	}
	if !m.modalAlive(ic.GuildID) {
		// A late submission falls back to the menu without complaint, the
		// same as the modal being dismissed.
		return m.updateWithRoot(s, ic)
	}

	prompt := extractTextInput(data.Components, "personality_input")
	if prompt != "" {
		gp, err := m.policies.GuildPolicy(ic.GuildID)
		if err != nil {
			return fmt.Errorf("settings: guild policy: %w", err)
		}
		gp.SystemPrompt = prompt
		if err := m.policies.PutGuildPolicy(gp); err != nil {
			return fmt.Errorf("settings: save personality: %w", err)
		}
	}
	return m.updateWithRoot(s, ic)
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

func (m *Manager) toggle(guildID, channelID string, kind Kind) error {
	cp, err := m.policies.ChannelPolicy(channelID)
	if err != nil {
		return fmt.Errorf("settings: channel policy: %w", err)
	}
	cp.GuildID = guildID
	wasListening := cp.IsListening
	wasSecondary := cp.SecondaryTrigger
	switch kind {
	case KindToggleListening:
		cp.IsListening = !cp.IsListening
	case KindToggleShared:
		cp.SharedScope = !cp.SharedScope
	case KindToggleSecondary:
		cp.SecondaryTrigger = !cp.SecondaryTrigger
	}
	if err := m.policies.PutChannelPolicy(cp); err != nil {
		return fmt.Errorf("settings: save channel policy: %w", err)
	}
	// A channel entering a triggering state warms the mention table so the
	// first reply already resolves names.
	warmed := (!wasListening && cp.IsListening) || (!wasSecondary && cp.SecondaryTrigger)
	if warmed {
		m.cache.Refresh(context.Background(), guildID)
	}
	return nil
}

func (m *Manager) selectModel(guildID string, cmd Command) error {
	if cmd.Value == "" {
		return fmt.Errorf("settings: select without a value")
	}
	gp, err := m.policies.GuildPolicy(guildID)
	if err != nil {
		return fmt.Errorf("settings: guild policy: %w", err)
	}
	if cmd.Kind == KindSelectChatModel {
		gp.ChatModel = cmd.Value
	} else {
		gp.ImageModel = cmd.Value
	}
	if err := m.policies.PutGuildPolicy(gp); err != nil {
		return fmt.Errorf("settings: save model selection: %w", err)
	}
	return nil
}

func (m *Manager) openPersonality(s responder, ic *discordgo.InteractionCreate) error {
	gp, err := m.policies.GuildPolicy(ic.GuildID)
	if err != nil {
		return fmt.Errorf("settings: guild policy: %w", err)
	}
	m.mu.Lock()
	m.modals[ic.GuildID] = m.now()
	m.mu.Unlock()
	return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: personalityModal(gp.SystemPrompt),
	})
}

// ---------------------------------------------------------------------------
// Views and responses
// ---------------------------------------------------------------------------

func (m *Manager) rootView(guildID, channelID string) ([]*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	gp, err := m.policies.GuildPolicy(guildID)
	if err != nil {
		return nil, nil, fmt.Errorf("settings: guild policy: %w", err)
	}
	cp, err := m.policies.ChannelPolicy(channelID)
	if err != nil {
		return nil, nil, fmt.Errorf("settings: channel policy: %w", err)
	}
	embeds, components := settingsView(gp, cp)
	return embeds, components, nil
}

func (m *Manager) updateWithRoot(s responder, ic *discordgo.InteractionCreate) error {
	embeds, components, err := m.rootView(ic.GuildID, ic.ChannelID)
	if err != nil {
		return err
	}
	return respondUpdate(s, ic, embeds, components)
}

func (m *Manager) updateWithModels(s responder, ic *discordgo.InteractionCreate) error {
	gp, err := m.policies.GuildPolicy(ic.GuildID)
	if err != nil {
		return fmt.Errorf("settings: guild policy: %w", err)
	}
	embeds, components := modelsView(gp, m.chatModels, m.imageModels)
	return respondUpdate(s, ic, embeds, components)
}

func respondUpdate(s responder, ic *discordgo.InteractionCreate, embeds []*discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     embeds,
			Components: components,
		},
	})
}

func respondEphemeral(s responder, ic *discordgo.InteractionCreate, content string) error {
	return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// ---------------------------------------------------------------------------
// Session bookkeeping
// ---------------------------------------------------------------------------

func (m *Manager) touchMenu(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.menus[channelID] = now
	for id, at := range m.menus {
		if now.Sub(at) > MenuTimeout {
			delete(m.menus, id)
		}
	}
}

func (m *Manager) menuAlive(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.menus[channelID]
	return ok && m.now().Sub(at) <= MenuTimeout
}

func (m *Manager) modalAlive(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.modals[guildID]
	if !ok {
		return false
	}
	delete(m.modals, guildID)
	return m.now().Sub(at) <= ModalTimeout
}

func extractTextInput(components []discordgo.MessageComponent, customID string) string {
	for _, row := range components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range ar.Components {
			if in, ok := c.(*discordgo.TextInput); ok && in.CustomID == customID {
				return in.Value
			}
		}
	}
	return ""
}
