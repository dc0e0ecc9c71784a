package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  address: 127.0.0.1
  port: 9090
  db_path: /tmp/crewchat-db
security:
  signing_keys: ["k1", "k2"]
  api_keys:
    backend: ["bk"]
    frontend: ["fe"]
  cors:
    allowed_origins: ["https://chat.example.com"]
chat:
  session_timeout: 90s
  push_timeout: 2s
  send_buffer: 128
  max_frame_bytes: 64KB
  msgs_per_second: 3
  msgs_per_minute: 20
sweep:
  session_interval: 15s
  limiter_cron: "*/5 * * * *"
  limiter_idle: 30m
crews:
  - id: crew-a
    owner: alice
    members: [bob, carol]
users:
  - id: alice
    display_name: Alice Vane
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadParsesEverything(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, "/tmp/crewchat-db", cfg.Server.DBPath)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.SigningKeys)
	assert.Equal(t, []string{"bk"}, cfg.Security.APIKeys.Backend)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.Security.CORS.AllowedOrigins)

	assert.Equal(t, 90*time.Second, cfg.Chat.SessionTimeoutOr())
	assert.Equal(t, 2*time.Second, cfg.Chat.PushTimeoutOr())
	assert.Equal(t, 128, cfg.Chat.SendBufferOr())
	assert.Equal(t, int64(64*1000), cfg.Chat.MaxFrameBytesOr())
	assert.Equal(t, 3, cfg.Chat.PerSecondOr())
	assert.Equal(t, 20, cfg.Chat.PerMinuteOr())

	assert.Equal(t, 15*time.Second, cfg.Sweep.SessionInterval.Duration())
	assert.Equal(t, "*/5 * * * *", cfg.Sweep.LimiterCron)

	require.Len(t, cfg.Crews, 1)
	assert.Equal(t, "crew-a", cfg.Crews[0].ID)
	assert.Equal(t, "alice", cfg.Crews[0].Owner)
	assert.Equal(t, []string{"bob", "carol"}, cfg.Crews[0].Members)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, "Alice Vane", cfg.Users[0].DisplayName)
}

func TestChatDefaults(t *testing.T) {
	var c ChatConfig
	assert.Equal(t, DefaultSessionTimeout, c.SessionTimeoutOr())
	assert.Equal(t, DefaultPushTimeout, c.PushTimeoutOr())
	assert.Equal(t, DefaultSendBuffer, c.SendBufferOr())
	assert.Equal(t, int64(DefaultMaxFrameBytes), c.MaxFrameBytesOr())
	assert.Equal(t, DefaultPerSecond, c.PerSecondOr())
	assert.Equal(t, DefaultPerMinute, c.PerMinuteOr())
}

func TestAddrDefaults(t *testing.T) {
	var cfg Config
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestDurationNumericSeconds(t *testing.T) {
	cfg, err := Load(writeConfig(t, "chat:\n  session_timeout: 45\n"))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Chat.SessionTimeoutOr())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CREWCHAT_ADDR", "10.0.0.5:7000")
	t.Setenv("CREWCHAT_DB_PATH", "/var/lib/crewchat")
	t.Setenv("CREWCHAT_SIGNING_KEYS", "a, b ,c")
	t.Setenv("CREWCHAT_API_BACKEND_KEYS", "bk1,bk2")

	var cfg Config
	env := ApplyEnvOverrides(&cfg)
	assert.True(t, env.EnvUsed)
	assert.Equal(t, "10.0.0.5:7000", cfg.Addr())
	assert.Equal(t, "/var/lib/crewchat", cfg.Server.DBPath)
	assert.Equal(t, []string{"bk1", "bk2"}, cfg.Security.APIKeys.Backend)
	assert.Len(t, env.SigningKeys, 3)
	_, ok := env.SigningKeys["b"]
	assert.True(t, ok, "list entries are trimmed")
}

func TestResolveConfigPath(t *testing.T) {
	assert.Equal(t, "/explicit.yaml", ResolveConfigPath("/explicit.yaml", true))

	t.Setenv("CREWCHAT_CONFIG", "/from-env.yaml")
	assert.Equal(t, "/from-env.yaml", ResolveConfigPath("./config.yaml", false))

	os.Unsetenv("CREWCHAT_CONFIG")
	assert.Equal(t, "./config.yaml", ResolveConfigPath("./config.yaml", false))
}

func TestRuntimeSigningKeys(t *testing.T) {
	SetRuntime(&RuntimeConfig{
		SigningKeys:       map[string]struct{}{"k1": {}},
		PrimarySigningKey: "k1",
	})
	t.Cleanup(func() { SetRuntime(nil) })

	keys := GetSigningKeys()
	assert.Len(t, keys, 1)
	assert.Equal(t, "k1", PrimarySigningKey())

	// mutating the copy must not leak into the runtime set
	keys["rogue"] = struct{}{}
	assert.Len(t, GetSigningKeys(), 1)
}
