package llm

import "strings"

// StripThinkingTags removes <think>...</think> blocks from LLM output.
// Reasoning models (e.g. deepseek-r1, qwen3) prepend their chain of thought
// in these tags; the answer returned to clients must not include it.
func StripThinkingTags(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s, "</think>")
		if end == -1 {
			s = strings.TrimSpace(s[:start])
			break
		}
		s = s[:start] + s[end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}
