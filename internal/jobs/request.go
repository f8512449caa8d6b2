package jobs

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"postgen/internal/domain"
)

const (
	maxTopicRunes        = 300
	maxInstructionsRunes = 2000
	maxDescriptorRunes   = 64
)

// NormalizeRequest checks the request's shape. Values reach the prompt
// exactly as the caller sent them; the only rewrite is that a blank topic or
// blank instructions are treated as absent, which selects profile mode for
// the topic. Length is required.
func NormalizeRequest(req domain.GenerationRequest) (domain.GenerationRequest, error) {
	var out domain.GenerationRequest

	topic, err := optionalText("topic", req.Topic, maxTopicRunes)
	if err != nil {
		return out, err
	}
	instructions, err := optionalText("instructions", req.Instructions, maxInstructionsRunes)
	if err != nil {
		return out, err
	}
	if err := descriptor("length", req.Length); err != nil {
		return out, err
	}
	if strings.TrimSpace(req.Length) == "" {
		return out, fmt.Errorf("%w: length is required", domain.ErrValidation)
	}
	if err := descriptor("style", req.Style); err != nil {
		return out, err
	}

	out.Topic = topic
	out.Instructions = instructions
	out.Length = req.Length
	out.Style = req.Style
	return out, nil
}

func optionalText(field string, v *string, max int) (*string, error) {
	if v == nil {
		return nil, nil
	}
	if !utf8.ValidString(*v) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrValidation, field)
	}
	if strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(*v) > max {
		return nil, fmt.Errorf("%w: %s exceeds %d characters", domain.ErrValidation, field, max)
	}
	s := *v
	return &s, nil
}

// descriptor validates a short single-line value such as length or style.
func descriptor(field, v string) error {
	if !utf8.ValidString(v) {
		return fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrValidation, field)
	}
	if utf8.RuneCountInString(v) > maxDescriptorRunes {
		return fmt.Errorf("%w: %s exceeds %d characters", domain.ErrValidation, field, maxDescriptorRunes)
	}
	if strings.ContainsAny(v, "\r\n") {
		return fmt.Errorf("%w: %s must be a single line", domain.ErrValidation, field)
	}
	return nil
}
