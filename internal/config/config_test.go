package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dreambot/internal/gateway"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimal = `
telegram:
  token: "123:abc"
  admin_id: 77
ai:
  text:
    api_key: sk-text
    model: gemini-2.0-flash
tarot:
  assets_dir: ./cards
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	require.Equal(t, "longpoll", cfg.Telegram.RunMode)
	require.Equal(t, 90*time.Second, cfg.AI.Timeout)
	require.Equal(t, gateway.DefaultInvalidMarkers, cfg.AI.InvalidMarkers)
	require.Equal(t, ProviderOpenAI, cfg.AI.Text.Provider)
	require.Equal(t, cfg.AI.Text, cfg.AI.Vision)
	require.Equal(t, "fa", cfg.AI.Speech.Language)
	require.Equal(t, ".jpg", cfg.Tarot.AssetExt)
	require.Equal(t, JournalNone, cfg.Feedback.Journal)
	require.Equal(t, int64(77), cfg.Feedback.AdminChatID)
	require.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadFullFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal+`
  asset_ext: png
  validate_assets: true
feedback:
  journal: DynamoDB
  dynamodb_table: dreambot-feedback
  admin_chat_id: -100123
ai_unused: true
`))
	require.NoError(t, err)
	require.Equal(t, ".png", cfg.Tarot.AssetExt)
	require.True(t, cfg.Tarot.ValidateAssets)
	require.Equal(t, JournalDynamoDB, cfg.Feedback.Journal)
	require.Equal(t, int64(-100123), cfg.Feedback.AdminChatID)
}

func TestLoadProvidersAndEnv(t *testing.T) {
	t.Setenv("AI_SPEECH_APIKEY", "gsk-env")
	cfg, err := Load(writeConfig(t, `
telegram:
  token: "123:abc"
ai:
  timeout: 30s
  text:
    provider: ark
    access_key: ak
    secret_key: sk
    model: doubao-pro
  vision:
    api_key: sk-vision
    model: gpt-4o-mini
  speech:
    base_url: https://api.groq.com/openai/v1
    model: whisper-large-v3
    language: en
tarot:
  assets_dir: ./cards
`))
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.AI.Timeout)
	require.Equal(t, ProviderArk, cfg.AI.Text.Provider)
	require.Equal(t, ProviderOpenAI, cfg.AI.Vision.Provider)
	require.Equal(t, "gsk-env", cfg.AI.Speech.APIKey)
	require.Equal(t, "en", cfg.AI.Speech.Language)
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]string{
		"missing assets": `
telegram: {token: t}
ai: {text: {api_key: k, model: m}}
`,
		"missing model": `
telegram: {token: t}
ai: {text: {api_key: k}}
tarot: {assets_dir: d}
`,
		"unknown provider": `
telegram: {token: t}
ai: {text: {provider: bard, api_key: k, model: m}}
tarot: {assets_dir: d}
`,
		"ark speech": `
telegram: {token: t}
ai: {text: {api_key: k, model: m}, speech: {provider: ark, api_key: k, model: m}}
tarot: {assets_dir: d}
`,
		"postgres without database": `
telegram: {token: t}
ai: {text: {api_key: k, model: m}}
tarot: {assets_dir: d}
feedback: {journal: postgres}
`,
		"unknown journal": `
telegram: {token: t}
ai: {text: {api_key: k, model: m}}
tarot: {assets_dir: d}
feedback: {journal: s3}
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

type fakeGetter map[string]string

func (f fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	return f[name], nil
}

func TestResolveSecrets(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
telegram:
  token: "ssm:telegram/token"
ai:
  text: {api_key: "ssm:/shared/gemini", model: m}
tarot: {assets_dir: d}
secrets: {ssm_prefix: /dreambot}
`))
	require.NoError(t, err)
	require.True(t, cfg.NeedsSSM())

	require.NoError(t, cfg.ResolveSecrets(context.Background(), fakeGetter{
		"/dreambot/telegram/token": "123:real",
		"/shared/gemini":           "g-key",
	}))
	require.Equal(t, "123:real", cfg.Telegram.Token)
	require.Equal(t, "g-key", cfg.AI.Text.APIKey)
	require.Equal(t, "g-key", cfg.AI.Vision.APIKey, "vision copied from text before resolution")
	require.False(t, cfg.NeedsSSM())
}
