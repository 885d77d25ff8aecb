package openai

const (
	ProviderName   = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	// frames above this size are not sent as data URLs
	maxFrameBytes = 20 << 20
)

// Config for the vision-model adapter.
type Config struct {
	APIKey      string
	BaseURL     string  // default https://api.openai.com/v1
	Model       string  // any chat model that accepts image input
	Temperature float32 // 0..2
}
