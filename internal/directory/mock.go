package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// SentMessage records one delivery made through a MockDirectory.
type SentMessage struct {
	ChannelID string
	Content   string
	Embed     bool
	Color     int
}

// MockDirectory implements Directory for testing. It serves pre-configured
// guild data, records sends, and can inject per-call failures.
type MockDirectory struct {
	mu        sync.Mutex
	roles     map[string][]Role
	channels  map[string][]Channel
	members   map[string][]Member
	sent      []SentMessage
	typing    []string
	failCalls map[string]error // key: method name
}

// NewMock creates an empty MockDirectory.
func NewMock() *MockDirectory {
	return &MockDirectory{
		roles:     make(map[string][]Role),
		channels:  make(map[string][]Channel),
		members:   make(map[string][]Member),
		failCalls: make(map[string]error),
	}
}

// SetGuild pre-populates a guild's roles, channels, and members.
func (m *MockDirectory) SetGuild(guildID string, roles []Role, channels []Channel, members []Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[guildID] = roles
	m.channels[guildID] = channels
	m.members[guildID] = members
}

// FailNext makes the named method return err on every future call.
func (m *MockDirectory) FailNext(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCalls[method] = err
}

func (m *MockDirectory) fail(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failCalls[method]
}

// Roles returns the configured roles for a guild.
func (m *MockDirectory) Roles(ctx context.Context, guildID string) ([]Role, error) {
	if err := m.fail("Roles"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roles[guildID], nil
}

// Channels returns the configured channels for a guild.
func (m *MockDirectory) Channels(ctx context.Context, guildID string) ([]Channel, error) {
	if err := m.fail("Channels"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[guildID], nil
}

// Members returns up to limit configured members for a guild.
func (m *MockDirectory) Members(ctx context.Context, guildID string, limit int) ([]Member, error) {
	if err := m.fail("Members"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.members[guildID]
	if limit > 0 && limit < len(members) {
		members = members[:limit]
	}
	return members, nil
}

// SendMessage records a plain send.
func (m *MockDirectory) SendMessage(ctx context.Context, channelID, content string) error {
	if err := m.fail("SendMessage"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{ChannelID: channelID, Content: content})
	return nil
}

// SendEmbed records an embed send.
func (m *MockDirectory) SendEmbed(ctx context.Context, channelID, description string, color int) error {
	if err := m.fail("SendEmbed"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{ChannelID: channelID, Content: description, Embed: true, Color: color})
	return nil
}

// Typing records a typing indicator call.
func (m *MockDirectory) Typing(ctx context.Context, channelID string) error {
	if err := m.fail("Typing"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, channelID)
	return nil
}

// --- Test helpers ---

// Sent returns a copy of all recorded sends.
func (m *MockDirectory) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTo returns the contents delivered to one channel, in order.
func (m *MockDirectory) SentTo(channelID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		if s.ChannelID == channelID {
			out = append(out, s.Content)
		}
	}
	return out
}

// TypingCount returns the number of typing calls for a channel.
func (m *MockDirectory) TypingCount(channelID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range m.typing {
		if id == channelID {
			n++
		}
	}
	return n
}

// String summarizes recorded sends, useful in test failure messages.
func (m *MockDirectory) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	for i, s := range m.sent {
		fmt.Fprintf(&b, "[%d] %s: %.60q\n", i, s.ChannelID, s.Content)
	}
	return b.String()
}
