// File: internal/policy/message.go
package policy

import "strings"

const fallbackQuestion = " What's been your highlight this week?"

// RenderTemplate substitutes {{name}} in a message template, defaulting to
// "there" when no profile name was extracted.
func RenderTemplate(template, name string) string {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	return strings.ReplaceAll(template, "{{name}}", name)
}

// NormalizeMessage turns raw (possibly LLM-produced, possibly empty) text
// into a message that honors the persona constraints: template fallback,
// whitespace collapse, hard length cap, and the require-question rule.
func (p Profile) NormalizeMessage(raw, name string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		text = RenderTemplate(p.Message.Template, name)
	}

	text = strings.Join(strings.Fields(text), " ")
	maxChars := p.Persona.MaxMessageChars
	if len([]rune(text)) > maxChars {
		runes := []rune(text)
		text = strings.TrimRight(string(runes[:maxChars-1]), " ") + "…"
	}

	if p.Persona.RequireQuestion && !strings.Contains(text, "?") {
		candidate := text + fallbackQuestion
		if len([]rune(candidate)) <= maxChars {
			text = candidate
		} else {
			// Keep the question while respecting the length budget.
			keep := maxChars - len([]rune(fallbackQuestion)) - 1
			if keep < 0 {
				keep = 0
			}
			runes := []rune(text)
			if keep > len(runes) {
				keep = len(runes)
			}
			head := strings.TrimRight(string(runes[:keep]), " ")
			text = strings.TrimSpace(head + fallbackQuestion)
		}
	}

	return text
}
