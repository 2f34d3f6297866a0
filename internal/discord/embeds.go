package discord

import "github.com/bwmarrin/discordgo"

const (
	colorGreen = 0x57F287
	colorRed   = 0xED4245
	colorBlue  = 0x5865F2
	colorGold  = 0xFEE75C
)

func successEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: colorGreen}
}

func errorEmbed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "Error", Description: description, Color: colorRed}
}

func infoEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: colorBlue}
}
