package utils

// charsPerToken is the rough ratio used for prompt budgeting.
const charsPerToken = 4

// CountTokens estimates how many tokens text costs. Non-empty text costs at
// least one.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len([]rune(text)) / charsPerToken
	if n == 0 {
		return 1
	}
	return n
}

// TruncateToTokenLimit cuts text so its estimate fits within limit tokens.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if n := limit * charsPerToken; n < len(runes) {
		return string(runes[:n])
	}
	return text
}

// TokenBreakdown estimates each labeled prompt section.
func TokenBreakdown(sections map[string]string) map[string]int {
	out := make(map[string]int, len(sections))
	for k, v := range sections {
		out[k] = CountTokens(v)
	}
	return out
}
