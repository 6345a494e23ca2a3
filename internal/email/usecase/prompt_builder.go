package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// BuiltinPromptTemplate is used when no process-wide template is configured
// or the configured one is malformed.
const BuiltinPromptTemplate = `You are a helpful assistant.

PREVIOUS CONTEXT:
{context}

NEW EMAIL:
{email_content}

TASK:
Summarize the new email. If it refers to the context, explain the connection.`

// NoContextPlaceholder stands in for an empty thread history.
const NoContextPlaceholder = "No previous conversation history."

const (
	slotContext      = "context"
	slotEmailContent = "email_content"
)

var (
	errUnknownSlot      = errors.New("unknown placeholder")
	errUnmatchedBrace   = errors.New("unmatched brace")
	errMissingEmailSlot = errors.New("template does not reference {email_content}")
)

// PromptBuilder fills the two-slot summarization template.
type PromptBuilder struct {
	defaultTemplate string
	log             zerolog.Logger
}

// NewPromptBuilder validates defaultTemplate once; an empty or malformed one
// is replaced by BuiltinPromptTemplate.
func NewPromptBuilder(defaultTemplate string, log zerolog.Logger) *PromptBuilder {
	log = log.With().Str("component", "prompt_builder").Logger()

	if strings.TrimSpace(defaultTemplate) == "" {
		defaultTemplate = BuiltinPromptTemplate
	} else if err := validateTemplate(defaultTemplate); err != nil {
		log.Warn().Err(err).Msg("configured prompt template is malformed, using built-in template")
		defaultTemplate = BuiltinPromptTemplate
	}

	return &PromptBuilder{defaultTemplate: defaultTemplate, log: log}
}

// Build renders the custom template when it is usable, otherwise the default
// template, with the same context and content.
func (b *PromptBuilder) Build(contextText, emailContent, customTemplate string) string {
	if contextText == "" {
		contextText = NoContextPlaceholder
	}
	values := map[string]string{
		slotContext:      contextText,
		slotEmailContent: emailContent,
	}

	if strings.TrimSpace(customTemplate) != "" {
		out, err := renderTemplate(customTemplate, values)
		if err == nil {
			return out
		}
		b.log.Warn().Err(err).Msg("custom prompt template is malformed, using default template")
	}

	// The default template was validated at construction
	out, _ := renderTemplate(b.defaultTemplate, values)
	return out
}

// DefaultTemplate returns the template used when no usable custom one is given.
func (b *PromptBuilder) DefaultTemplate() string {
	return b.defaultTemplate
}

func validateTemplate(tmpl string) error {
	_, err := renderTemplate(tmpl, map[string]string{slotContext: "", slotEmailContent: ""})
	return err
}

// renderTemplate substitutes {name} slots from values. "{{" and "}}" produce
// literal braces.
func renderTemplate(tmpl string, values map[string]string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(tmpl))
	usedEmail := false

	for i := 0; i < len(tmpl); i++ {
		switch c := tmpl[i]; c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				sb.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexAny(tmpl[i+1:], "{}")
			if end < 0 || tmpl[i+1+end] != '}' {
				return "", fmt.Errorf("%w at offset %d", errUnmatchedBrace, i)
			}
			name := tmpl[i+1 : i+1+end]
			value, ok := values[name]
			if !ok {
				return "", fmt.Errorf("%w %q", errUnknownSlot, name)
			}
			if name == slotEmailContent {
				usedEmail = true
			}
			sb.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				sb.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w at offset %d", errUnmatchedBrace, i)
		default:
			sb.WriteByte(c)
		}
	}

	if !usedEmail {
		return "", errMissingEmailSlot
	}
	return sb.String(), nil
}
