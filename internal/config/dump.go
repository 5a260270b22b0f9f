package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// redacted replaces secret values in dumped configuration.
const redacted = "******"

// Dump renders the effective configuration as YAML with secrets redacted.
func Dump(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	out := *cfg
	out.Mail.SMTP.Password = redact(out.Mail.SMTP.Password)
	out.Mail.Graph.ClientSecret = redact(out.Mail.Graph.ClientSecret)

	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return redacted
}
