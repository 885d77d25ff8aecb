package sightengine

const (
	DefaultEndpoint = "https://api.sightengine.com/1.0/check.json"
	ProviderName    = "sightengine"
)

// DefaultModels are the Sightengine models the score normalization reads.
var DefaultModels = []string{"nudity-2.0", "offensive", "gore"}

type Config struct {
	Endpoint  string
	APIUser   string
	APISecret string
	Models    []string
}
