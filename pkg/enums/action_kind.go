package enums

import "fmt"

// ActionKind identifies a paid generation action gated by the credit ledger.
type ActionKind string

const (
	ActionKindAvatarVideo ActionKind = "avatar_training_video"
	ActionKindAvatarImage ActionKind = "avatar_training_image"
	ActionKindPreset      ActionKind = "preset_generation"
	ActionKindSpeech      ActionKind = "speech_synthesis"
)

var validActionKinds = []ActionKind{
	ActionKindAvatarVideo,
	ActionKindAvatarImage,
	ActionKindPreset,
	ActionKindSpeech,
}

// IsValid reports whether the value matches a known paid action kind.
func (k ActionKind) IsValid() bool {
	for _, candidate := range validActionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseActionKind converts raw input into ActionKind.
func ParseActionKind(value string) (ActionKind, error) {
	for _, candidate := range validActionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid action kind %q", value)
}
