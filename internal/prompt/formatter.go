package prompt

import (
	"fmt"
	"strings"

	"github.com/davidbz/runrelay/internal/domain"
)

const (
	FamilyVicuna = "vicuna"
	FamilyLlama2 = "llama2"

	assistantSuffix = "ASSISTANT: "
)

// template renders a single message into one prompt segment.
type template func(message domain.Message) string

// Formatter turns chat messages into the flat prompt a model family expects.
// It holds no per-call state and is safe for concurrent use.
type Formatter struct {
	templates map[string]template
}

// NewFormatter creates a formatter with the built-in families (DI constructor).
func NewFormatter() *Formatter {
	return &Formatter{
		templates: map[string]template{
			FamilyVicuna:            vicuna,
			FamilyVicuna + "-style": vicuna,
			FamilyLlama2:            llama2,
			FamilyLlama2 + "-style": llama2,
		},
	}
}

// Format renders messages with the template of the given family.
func (f *Formatter) Format(messages []domain.Message, family string) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: messages cannot be empty", domain.ErrInvalidInput)
	}

	render, ok := f.templates[family]
	if !ok {
		return "", fmt.Errorf("%w: unknown prompt family %q", domain.ErrInvalidInput, family)
	}

	var b strings.Builder
	for _, message := range messages {
		b.WriteString(render(message))
		b.WriteByte(' ')
	}
	b.WriteString(assistantSuffix)

	return strings.TrimSpace(b.String()), nil
}

// Supports reports whether family names a known template.
func (f *Formatter) Supports(family string) bool {
	_, ok := f.templates[family]
	return ok
}

func vicuna(message domain.Message) string {
	if message.Role == domain.RoleSystem {
		return message.Content
	}

	segment := roleLabel(message.Role) + ": " + message.Content
	if message.Role == domain.RoleAssistant {
		segment += "</s>"
	}
	return segment
}

func llama2(message domain.Message) string {
	if message.Role == domain.RoleSystem {
		return "[INST] <<SYS>> " + message.Content + "\n<</SYS>>"
	}

	segment := roleLabel(message.Role) + ": " + message.Content + " [/INST]"
	if message.Role == domain.RoleAssistant {
		segment += "</s><s>[INST]"
	}
	return segment
}

func roleLabel(role domain.Role) string {
	return strings.ToUpper(string(role))
}
