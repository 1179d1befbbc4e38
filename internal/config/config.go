// Package config is the bot's configuration: the core transport settings plus
// the AI providers, card assets, feedback sinks and ops listener.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/dreambot/core/config"
	coredatabase "github.com/m3rciful/dreambot/core/database"
	"github.com/m3rciful/dreambot/internal/gateway"
	"github.com/m3rciful/dreambot/internal/secrets"
)

const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"

	JournalNone     = "none"
	JournalPostgres = "postgres"
	JournalDynamoDB = "dynamodb"

	defaultTimeout  = 90 * time.Second
	defaultLanguage = "fa"
	defaultAssetExt = ".jpg"
)

// ProviderConfig selects and configures one AI backend. Environment overrides
// use the nested key, e.g. AI_TEXT_APIKEY or AI_SPEECH_MODEL.
type ProviderConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`

	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`

	// Ark only.
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

func (p ProviderConfig) configured() bool {
	return p.Model != "" || p.APIKey != "" || p.AccessKey != ""
}

// SpeechConfig is the transcription backend. Only openai-compatible APIs offer it.
type SpeechConfig struct {
	ProviderConfig `yaml:",inline"`
	Language       string `yaml:"language"`
}

type AIConfig struct {
	Text   ProviderConfig `yaml:"text"`
	Vision ProviderConfig `yaml:"vision"`
	Speech SpeechConfig   `yaml:"speech"`
	// Timeout bounds every gateway call and so how long a session stays busy.
	Timeout        time.Duration `yaml:"timeout"`
	InvalidMarkers []string      `yaml:"invalid_markers"`
	SystemPrompt   string        `yaml:"system_prompt"`
}

type TarotConfig struct {
	AssetsDir      string `yaml:"assets_dir" envconfig:"TAROT_ASSETS_DIR"`
	AssetExt       string `yaml:"asset_ext"`
	ValidateAssets bool   `yaml:"validate_assets"`
}

type FeedbackConfig struct {
	Journal       string `yaml:"journal" envconfig:"FEEDBACK_JOURNAL"`
	DynamoDBTable string `yaml:"dynamodb_table" envconfig:"FEEDBACK_DYNAMODB_TABLE"`
	// AdminChatID receives feedback notifications; 0 falls back to telegram.admin_id.
	AdminChatID int64 `yaml:"admin_chat_id" envconfig:"ADMIN_CHAT_ID"`
}

type OpsConfig struct {
	// Listen is host:port; empty disables the ops server.
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

type SecretsConfig struct {
	SSMPrefix string `yaml:"ssm_prefix" envconfig:"SSM_PREFIX"`
	Region    string `yaml:"region" envconfig:"AWS_REGION"`
}

// SenderConfig tunes the outbound Telegram dispatcher.
type SenderConfig struct {
	QueueSize  int `yaml:"queue_size"`
	Workers    int `yaml:"workers"`
	MaxRetries int `yaml:"max_retries"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	AI       AIConfig            `yaml:"ai"`
	Tarot    TarotConfig         `yaml:"tarot"`
	Feedback FeedbackConfig      `yaml:"feedback"`
	Database coredatabase.Config `yaml:"database"`
	Ops      OpsConfig           `yaml:"ops"`
	Secrets  SecretsConfig       `yaml:"secrets"`
	Sender   SenderConfig        `yaml:"sender"`
}

// Load reads path, overlays the environment and normalizes.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CoreConfig satisfies core/cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Normalize validates and fills defaults.
func (c *Config) Normalize() error {
	if c == nil {
		return errors.New("nil config")
	}
	if err := c.Config.Normalize(); err != nil {
		return err
	}

	var errs []error
	ai := &c.AI
	if ai.Timeout <= 0 {
		ai.Timeout = defaultTimeout
	}
	if len(ai.InvalidMarkers) == 0 {
		ai.InvalidMarkers = append([]string(nil), gateway.DefaultInvalidMarkers...)
	}
	if !ai.Vision.configured() {
		ai.Vision = ai.Text
	}
	if ai.Speech.Language == "" {
		ai.Speech.Language = defaultLanguage
	}
	errs = append(errs,
		normalizeProvider("ai.text", &ai.Text, true),
		normalizeProvider("ai.vision", &ai.Vision, true),
	)
	if ai.Speech.configured() {
		errs = append(errs, normalizeProvider("ai.speech", &ai.Speech.ProviderConfig, false))
	}

	if strings.TrimSpace(c.Tarot.AssetsDir) == "" {
		errs = append(errs, errors.New("tarot.assets_dir is required"))
	}
	if c.Tarot.AssetExt == "" {
		c.Tarot.AssetExt = defaultAssetExt
	} else if !strings.HasPrefix(c.Tarot.AssetExt, ".") {
		c.Tarot.AssetExt = "." + c.Tarot.AssetExt
	}

	fb := &c.Feedback
	fb.Journal = strings.ToLower(strings.TrimSpace(fb.Journal))
	switch fb.Journal {
	case "", JournalNone:
		fb.Journal = JournalNone
	case JournalPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, errors.New("database.host and database.name are required for the postgres journal"))
		}
	case JournalDynamoDB:
		if fb.DynamoDBTable == "" {
			errs = append(errs, errors.New("feedback.dynamodb_table is required for the dynamodb journal"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid feedback.journal %q; allowed: none, postgres, dynamodb", fb.Journal))
	}
	if fb.AdminChatID == 0 {
		fb.AdminChatID = c.Telegram.AdminID
	}
	return errors.Join(errs...)
}

func normalizeProvider(name string, p *ProviderConfig, chat bool) error {
	p.Provider = strings.ToLower(strings.TrimSpace(p.Provider))
	if p.Provider == "" {
		p.Provider = ProviderOpenAI
	}
	switch p.Provider {
	case ProviderOpenAI:
		if p.APIKey == "" {
			return fmt.Errorf("%s.api_key is required", name)
		}
	case ProviderArk:
		if !chat {
			return fmt.Errorf("%s: provider ark has no speech-to-text", name)
		}
		if p.APIKey == "" && (p.AccessKey == "" || p.SecretKey == "") {
			return fmt.Errorf("%s: ark needs api_key or access_key and secret_key", name)
		}
	default:
		return fmt.Errorf("invalid %s.provider %q; allowed: openai, ark", name, p.Provider)
	}
	if p.Model == "" {
		return fmt.Errorf("%s.model is required", name)
	}
	return nil
}

// NeedsSSM reports whether any credential is an SSM reference.
func (c *Config) NeedsSSM() bool {
	for _, v := range c.secretFields() {
		if secrets.IsRef(*v) {
			return true
		}
	}
	return false
}

// ResolveSecrets replaces every "ssm:" reference with the parameter value.
func (c *Config) ResolveSecrets(ctx context.Context, g secrets.Getter) error {
	r := secrets.Resolver{Getter: g, Prefix: c.Secrets.SSMPrefix}
	if err := r.ResolveAll(ctx, c.secretFields()...); err != nil {
		return fmt.Errorf("resolve secrets: %w", err)
	}
	return nil
}

func (c *Config) secretFields() []*string {
	return []*string{
		&c.Telegram.Token,
		&c.AI.Text.APIKey, &c.AI.Text.AccessKey, &c.AI.Text.SecretKey,
		&c.AI.Vision.APIKey, &c.AI.Vision.AccessKey, &c.AI.Vision.SecretKey,
		&c.AI.Speech.APIKey,
		&c.Database.Password,
	}
}
