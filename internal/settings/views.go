package settings

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/dinbot/internal/models"
)

const embedColor = 0x5865F2

func onOff(v bool) string {
	if v {
		return "On"
	}
	return "Off"
}

func toggleStyle(v bool) discordgo.ButtonStyle {
	if v {
		return discordgo.SuccessButton
	}
	return discordgo.SecondaryButton
}

// settingsView renders the root menu for the current guild and channel
// policies.
func settingsView(gp models.GuildPolicy, cp models.ChannelPolicy) ([]*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title: "Bot Settings",
		Color: embedColor,
		Description: fmt.Sprintf(
			"Settings for this channel.\n\n"+
				"**Listening:** %s\n"+
				"**Shared memory:** %s\n"+
				"**Keyword trigger:** %s\n"+
				"**Chat model:** %s\n"+
				"**Image model:** %s",
			onOff(cp.IsListening), onOff(cp.SharedScope), onOff(cp.SecondaryTrigger),
			gp.ChatModel, gp.ImageModel,
		),
	}
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Listening", Style: toggleStyle(cp.IsListening), CustomID: CustomID(KindToggleListening)},
			discordgo.Button{Label: "Shared memory", Style: toggleStyle(cp.SharedScope), CustomID: CustomID(KindToggleShared)},
			discordgo.Button{Label: "Keyword trigger", Style: toggleStyle(cp.SecondaryTrigger), CustomID: CustomID(KindToggleSecondary)},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Personality", Style: discordgo.PrimaryButton, CustomID: CustomID(KindOpenPersonality)},
			discordgo.Button{Label: "Models", Style: discordgo.PrimaryButton, CustomID: CustomID(KindOpenModels)},
			discordgo.Button{Label: "Clear memory", Style: discordgo.DangerButton, CustomID: CustomID(KindClearMemory)},
		}},
	}
	return []*discordgo.MessageEmbed{embed}, components
}

// modelsView renders the model selection submenu.
func modelsView(gp models.GuildPolicy, chatModels, imageModels []string) ([]*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title: "Model Selection",
		Color: embedColor,
		Description: fmt.Sprintf("**Chat model:** %s\n**Image model:** %s",
			gp.ChatModel, gp.ImageModel),
	}
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    CustomID(KindSelectChatModel),
				Placeholder: "Chat model",
				Options:     modelOptions(chatModels, gp.ChatModel),
			},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    CustomID(KindSelectImageModel),
				Placeholder: "Image model",
				Options:     modelOptions(imageModels, gp.ImageModel),
			},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Back", Style: discordgo.SecondaryButton, CustomID: CustomID(KindBack)},
		}},
	}
	return []*discordgo.MessageEmbed{embed}, components
}

func modelOptions(names []string, current string) []discordgo.SelectMenuOption {
	opts := make([]discordgo.SelectMenuOption, 0, len(names))
	for _, name := range names {
		opts = append(opts, discordgo.SelectMenuOption{
			Label:   name,
			Value:   name,
			Default: name == current,
		})
	}
	return opts
}

// personalityModal renders the system prompt editor pre-filled with the
// current prompt.
func personalityModal(current string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: CustomID(KindSubmitPersonality),
		Title:    "Bot Personality",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    "personality_input",
					Label:       "System prompt",
					Style:       discordgo.TextInputParagraph,
					Value:       current,
					Required:    true,
					MaxLength:   4000,
					Placeholder: "Describe how the bot should behave",
				},
			}},
		},
	}
}
