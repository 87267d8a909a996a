package config

import (
	"fmt"

	yaml "go.yaml.in/yaml/v3"
)

const masked = "********"

// RedactedYAML renders the effective config for the startup log with
// every secret masked. Empty secrets stay empty so the operator can see
// what is unset.
func RedactedYAML(cfg *Config) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("nil config")
	}
	cp := *cfg
	cp.Platform.APIKey = mask(cp.Platform.APIKey)
	cp.Platform.APISecret = mask(cp.Platform.APISecret)
	cp.Platform.AccessToken = mask(cp.Platform.AccessToken)
	cp.Platform.AccessSecret = mask(cp.Platform.AccessSecret)
	cp.Platform.BearerToken = mask(cp.Platform.BearerToken)
	cp.Generation.APIKey = mask(cp.Generation.APIKey)
	cp.Alert.TelegramToken = mask(cp.Alert.TelegramToken)

	b, err := yaml.Marshal(&cp)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(b), nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return masked
}
