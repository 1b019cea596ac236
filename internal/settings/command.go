// Package settings drives the interactive guild settings surface: the
// button menu, the model selects, and the personality modal.
package settings

import (
	"fmt"
	"strings"
)

// Kind identifies one settings action. Every component and modal in the
// surface maps to exactly one Kind; unknown custom IDs never reach the
// execution switch.
type Kind int

const (
	KindToggleListening Kind = iota
	KindToggleShared
	KindToggleSecondary
	KindOpenPersonality
	KindOpenModels
	KindBack
	KindClearMemory
	KindSelectChatModel
	KindSelectImageModel
	KindSubmitPersonality
)

// Command is one parsed settings action. Value carries the selected option
// for the select kinds and the submitted prompt for the modal.
type Command struct {
	Kind  Kind
	Value string
}

const customIDPrefix = "settings:"

var kindIDs = map[Kind]string{
	KindToggleListening:   "toggle_listening",
	KindToggleShared:      "toggle_shared",
	KindToggleSecondary:   "toggle_secondary",
	KindOpenPersonality:   "personality",
	KindOpenModels:        "models",
	KindBack:              "back",
	KindClearMemory:       "clear_memory",
	KindSelectChatModel:   "select_chat_model",
	KindSelectImageModel:  "select_image_model",
	KindSubmitPersonality: "personality_modal",
}

var idKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(kindIDs))
	for k, id := range kindIDs {
		m[id] = k
	}
	return m
}()

// CustomID returns the wire custom ID for a kind.
func CustomID(k Kind) string {
	return customIDPrefix + kindIDs[k]
}

// ParseCustomID maps a component or modal custom ID back to its Command.
func ParseCustomID(id string) (Command, error) {
	rest, ok := strings.CutPrefix(id, customIDPrefix)
	if !ok {
		return Command{}, fmt.Errorf("settings: not a settings custom ID: %q", id)
	}
	kind, ok := idKinds[rest]
	if !ok {
		return Command{}, fmt.Errorf("settings: unknown action %q", rest)
	}
	return Command{Kind: kind}, nil
}
