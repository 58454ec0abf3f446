package entities

// ProviderID names a model family.
type ProviderID string

const (
	ProviderDeepSeek ProviderID = "deepSeek"
	ProviderKimiChat ProviderID = "kimichat"
	ProviderLocal    ProviderID = "local"
)

// KnownProviders lists the families in display order.
var KnownProviders = []ProviderID{ProviderDeepSeek, ProviderKimiChat, ProviderLocal}

// ParseProviderID validates a provider name received from a client.
func ParseProviderID(s string) (ProviderID, bool) {
	for _, p := range KnownProviders {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// ProviderConfig is the explicit configuration passed to every provider call.
type ProviderConfig struct {
	ProviderID   ProviderID `json:"provider_id"`
	BaseEndpoint string     `json:"base_endpoint"`
	Credential   string     `json:"-"`
	ModelName    string     `json:"model_name"`
}

// ProviderSetting is one family's user-editable entry in the settings record.
type ProviderSetting struct {
	Model string `json:"model,omitempty"`
	Key   string `json:"key,omitempty"`
	URL   string `json:"url,omitempty"`
}

// ProviderSettings is the global settings record keyed by family.
type ProviderSettings map[ProviderID]ProviderSetting
