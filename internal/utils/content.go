package utils

import (
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"
)

func ExtractContentText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// TruncateRunes shortens text to at most n runes, appending "..." when cut.
func TruncateRunes(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}
