package ai

// DefaultContextTokens is assumed for models missing from the table.
const DefaultContextTokens = 8192

// contextWindows holds approximate context sizes for common models.
var contextWindows = map[string]int{
	"deepseek/deepseek-r1:free":         128000,
	"openai/gpt-4o-mini":                128000,
	"openai/gpt-4o":                     128000,
	"openai/gpt-4.1-mini":               128000,
	"anthropic/claude-3.5-sonnet":       200000,
	"anthropic/claude-3-haiku":          200000,
	"google/gemini-1.5-flash":           1000000,
	"meta-llama/llama-3.1-8b-instruct":  131072,
	"meta-llama/llama-3.1-70b-instruct": 131072,
	"llama3:latest":                     8192,
	"llama3.1:8b-instruct":              8192,
	"mistral:7b-instruct":               8192,
	"phi3:mini-4k-instruct":             4096,
}

// ContextTokens returns the model's context window, or DefaultContextTokens
// if it is not known.
func ContextTokens(model string) int {
	if n, ok := contextWindows[model]; ok {
		return n
	}
	return DefaultContextTokens
}
