package app

import (
	"fmt"

	"crewchat/pkg/config"
	"crewchat/pkg/logger"
)

// validate rejects configurations the server cannot run correctly
// with and warns about ones it can limp along on.
func validate(cfg *config.Config) error {
	seen := map[string]bool{}
	for i, c := range cfg.Crews {
		if c.ID == "" {
			return fmt.Errorf("crews[%d]: missing id", i)
		}
		if c.Owner == "" {
			return fmt.Errorf("crew %q: missing owner", c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("crew %q: declared twice", c.ID)
		}
		seen[c.ID] = true
	}
	if len(cfg.Security.SigningKeys) == 0 {
		logger.Warn("no_signing_keys", "detail", "every websocket connection will be refused")
	}
	keys := cfg.Security.APIKeys
	if len(keys.Backend)+len(keys.Frontend)+len(keys.Admin) == 0 {
		logger.Warn("no_api_keys", "detail", "all /v1 endpoints will refuse callers")
	}
	if cfg.Chat.PerSecondOr() > cfg.Chat.PerMinuteOr() {
		return fmt.Errorf("chat: msgs_per_second (%d) exceeds msgs_per_minute (%d)",
			cfg.Chat.PerSecondOr(), cfg.Chat.PerMinuteOr())
	}
	tls := cfg.Server.TLS
	if (tls.CertFile == "") != (tls.KeyFile == "") {
		return fmt.Errorf("tls: cert_file and key_file must be set together")
	}
	return nil
}
