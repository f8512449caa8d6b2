// Package generation assembles prompts and runs them against the language model.
package generation

import (
	"fmt"
	"strings"

	"postgen/internal/domain"
)

const (
	profileTopic     = "General post based on my profile."
	noInstructions   = "None"
	systemPromptTmpl = "You are an expert B2B social media marketer specializing in LinkedIn. " +
		"Your task is to write a compelling LinkedIn post based on the provided context and instructions. " +
		"The post must be written in a %s tone and should be approximately %s in length."
	userPromptTmpl = "**Background Context:**\n%s\n\n" +
		"**Task:**\n" +
		"Please write a LinkedIn post.\n" +
		"- **Topic:** %s\n" +
		"- **Additional Instructions:** %s"
)

// PromptInput carries everything the assembler needs. Style and Length are
// expected to be validated already.
type PromptInput struct {
	Context      string
	Style        string
	Topic        *string
	Length       string
	Instructions *string
}

// Assemble renders the system and user directives. It is pure.
func Assemble(in PromptInput) domain.Prompt {
	topic := profileTopic
	if in.Topic != nil && strings.TrimSpace(*in.Topic) != "" {
		topic = *in.Topic
	}
	instructions := noInstructions
	if in.Instructions != nil && strings.TrimSpace(*in.Instructions) != "" {
		instructions = *in.Instructions
	}
	return domain.Prompt{
		System: fmt.Sprintf(systemPromptTmpl, in.Style, in.Length),
		User:   fmt.Sprintf(userPromptTmpl, in.Context, topic, instructions),
	}
}
