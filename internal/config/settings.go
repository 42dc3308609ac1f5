package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/waitrain/waitrain/internal/apperr"
)

const (
	ConfigPathEnv     = "WAITRAIN_CONFIG"
	DefaultConfigPath = "config/database.toml"

	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	defaultSchemaCachePath = "data/schema_cache.json"
	defaultSystemPrompt    = "Answer questions about the database using the provided schema."
	defaultSummaryPrompt   = "Summarize the results returned by the SQL query."
	defaultModel           = "gpt-4o-mini"
	defaultAPIKeyEnv       = "OPENAI_API_KEY"
	defaultBaseURL         = "https://api.openai.com/v1"
	defaultLLMTimeout      = 60 * time.Second
	defaultSummaryTemp     = 0.3
	defaultS3AccessKeyEnv  = "WAITRAIN_S3_ACCESS_KEY"
	defaultS3SecretKeyEnv  = "WAITRAIN_S3_SECRET_KEY"
)

// Settings is the typed, immutable view of the TOML configuration file with
// every default resolved.
type Settings struct {
	Path          string
	Database      DatabaseSettings
	SystemPrompt  string
	SummaryPrompt string
	LLM           LLMSettings
	ObjectStore   *ObjectStoreSettings
}

type DatabaseSettings struct {
	DSN             string
	SchemaCachePath string
	ReadOnly        bool
	MaxOpenConns    int
	MaxIdleConns    int
}

type LLMSettings struct {
	Provider           string
	Model              string
	APIKeyEnv          string
	APIKey             string
	BaseURL            string
	Timeout            time.Duration
	Temperature        float64
	SummaryTemperature float64
}

type ObjectStoreSettings struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	UseSSL          bool
	AccessKeyID     string
	SecretAccessKey string
}

type settingsFile struct {
	Database struct {
		DSN             string `toml:"dsn"`
		SchemaCachePath string `toml:"schema_cache_path"`
		ReadOnly        bool   `toml:"read_only"`
		MaxOpenConns    int    `toml:"max_open_conns"`
		MaxIdleConns    int    `toml:"max_idle_conns"`
	} `toml:"database"`
	Prompts struct {
		System  string `toml:"system"`
		Summary string `toml:"summary"`
	} `toml:"prompts"`
	LLM struct {
		Provider           string   `toml:"provider"`
		Model              string   `toml:"model"`
		APIKeyEnv          string   `toml:"api_key_env"`
		BaseURL            string   `toml:"base_url"`
		Timeout            string   `toml:"timeout"`
		Temperature        *float64 `toml:"temperature"`
		SummaryTemperature *float64 `toml:"summary_temperature"`
	} `toml:"llm"`
	Cache struct {
		ObjectStore *struct {
			Endpoint     string `toml:"endpoint"`
			Region       string `toml:"region"`
			Bucket       string `toml:"bucket"`
			Prefix       string `toml:"prefix"`
			UseSSL       bool   `toml:"use_ssl"`
			AccessKeyEnv string `toml:"access_key_env"`
			SecretKeyEnv string `toml:"secret_key_env"`
		} `toml:"object_store"`
	} `toml:"cache"`
}

// ResolveSettingsPath picks the configuration file: explicit path, then the
// WAITRAIN_CONFIG variable, then DefaultConfigPath. A candidate that does not
// exist is reported instead of falling through to the next one.
func ResolveSettingsPath(explicitPath string, lookup LookupFunc) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if path := strings.TrimSpace(explicitPath); path != "" {
		if err := requireFile(path, "config path does not exist"); err != nil {
			return "", err
		}
		return path, nil
	}
	if raw, ok := lookup(ConfigPathEnv); ok && strings.TrimSpace(raw) != "" {
		path := strings.TrimSpace(raw)
		if err := requireFile(path, ConfigPathEnv+" points to a missing file"); err != nil {
			return "", err
		}
		return path, nil
	}
	if err := requireFile(DefaultConfigPath, "config file not found"); err != nil {
		return "", err
	}
	return DefaultConfigPath, nil
}

func LoadSettings(explicitPath string, lookup LookupFunc) (Settings, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	path, err := ResolveSettingsPath(explicitPath, lookup)
	if err != nil {
		return Settings{}, err
	}
	return LoadSettingsFile(path, lookup)
}

func LoadSettingsFile(path string, lookup LookupFunc) (Settings, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := requireFile(path, "config file not found"); err != nil {
		return Settings{}, err
	}

	var file settingsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Settings{}, apperr.Wrap(apperr.KindConfigInvalid, "settings", "parse config file "+path, err)
	}

	settings, err := file.resolve(path, lookup)
	if err != nil {
		return Settings{}, err
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, apperr.Wrap(apperr.KindConfigInvalid, "settings", "invalid config file "+path, err)
	}
	return settings, nil
}

func (f settingsFile) resolve(path string, lookup LookupFunc) (Settings, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Settings{}, apperr.Wrap(apperr.KindUnexpected, "settings", "resolve config path", err)
	}

	cachePath := strings.TrimSpace(f.Database.SchemaCachePath)
	if cachePath == "" {
		cachePath = defaultSchemaCachePath
	}
	if !filepath.IsAbs(cachePath) {
		cachePath = filepath.Join(filepath.Dir(absPath), cachePath)
	}

	settings := Settings{
		Path: absPath,
		Database: DatabaseSettings{
			DSN:             resolveDuckDBPath(strings.TrimSpace(f.Database.DSN), filepath.Dir(absPath)),
			SchemaCachePath: filepath.Clean(cachePath),
			ReadOnly:        f.Database.ReadOnly,
			MaxOpenConns:    f.Database.MaxOpenConns,
			MaxIdleConns:    f.Database.MaxIdleConns,
		},
		SystemPrompt:  firstNonEmpty(f.Prompts.System, defaultSystemPrompt),
		SummaryPrompt: firstNonEmpty(f.Prompts.Summary, defaultSummaryPrompt),
		LLM: LLMSettings{
			Provider:           strings.ToLower(firstNonEmpty(f.LLM.Provider, ProviderOpenAI)),
			Model:              firstNonEmpty(f.LLM.Model, defaultModel),
			APIKeyEnv:          firstNonEmpty(f.LLM.APIKeyEnv, defaultAPIKeyEnv),
			BaseURL:            strings.TrimRight(firstNonEmpty(f.LLM.BaseURL, defaultBaseURL), "/"),
			Timeout:            defaultLLMTimeout,
			SummaryTemperature: defaultSummaryTemp,
		},
	}
	if f.LLM.Temperature != nil {
		settings.LLM.Temperature = *f.LLM.Temperature
	}
	if f.LLM.SummaryTemperature != nil {
		settings.LLM.SummaryTemperature = *f.LLM.SummaryTemperature
	}
	if raw := strings.TrimSpace(f.LLM.Timeout); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return Settings{}, apperr.Wrap(apperr.KindConfigInvalid, "settings", "invalid llm.timeout", err)
		}
		settings.LLM.Timeout = timeout
	}
	if value, ok := lookup(settings.LLM.APIKeyEnv); ok {
		settings.LLM.APIKey = strings.TrimSpace(value)
	}

	if store := f.Cache.ObjectStore; store != nil {
		accessEnv := firstNonEmpty(store.AccessKeyEnv, defaultS3AccessKeyEnv)
		secretEnv := firstNonEmpty(store.SecretKeyEnv, defaultS3SecretKeyEnv)
		settings.ObjectStore = &ObjectStoreSettings{
			Endpoint: strings.TrimSpace(store.Endpoint),
			Region:   strings.TrimSpace(store.Region),
			Bucket:   strings.TrimSpace(store.Bucket),
			Prefix:   strings.TrimSpace(store.Prefix),
			UseSSL:   store.UseSSL,
		}
		if value, ok := lookup(accessEnv); ok {
			settings.ObjectStore.AccessKeyID = strings.TrimSpace(value)
		}
		if value, ok := lookup(secretEnv); ok {
			settings.ObjectStore.SecretAccessKey = strings.TrimSpace(value)
		}
	}
	return settings, nil
}

func (s Settings) Validate() error {
	if err := validation.ValidateStruct(&s,
		validation.Field(&s.Database),
		validation.Field(&s.LLM),
	); err != nil {
		return err
	}
	if s.ObjectStore != nil {
		if err := s.ObjectStore.Validate(); err != nil {
			return validation.Errors{"ObjectStore": err}
		}
	}
	return nil
}

func (d DatabaseSettings) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.DSN,
			validation.Required.Error("database dsn is required"),
			validation.By(supportedDSN),
		),
		validation.Field(&d.SchemaCachePath, validation.Required),
		validation.Field(&d.MaxOpenConns, validation.Min(0)),
		validation.Field(&d.MaxIdleConns, validation.Min(0)),
	)
}

func (l LLMSettings) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Provider, validation.Required, validation.In(ProviderOpenAI, ProviderLocal)),
		validation.Field(&l.Model, validation.Required),
		validation.Field(&l.APIKey, validation.When(l.Provider == ProviderOpenAI,
			validation.Required.Error(fmt.Sprintf("llm api key is required: set %s before starting the application", l.APIKeyEnv)),
		)),
		validation.Field(&l.Timeout, validation.Min(time.Duration(0))),
	)
}

func (o ObjectStoreSettings) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Endpoint, validation.Required),
		validation.Field(&o.Bucket, validation.Required),
	)
}

func supportedDSN(value any) error {
	dsn, _ := value.(string)
	if dsn == "" {
		return nil
	}
	scheme, _, ok := strings.Cut(dsn, "://")
	if !ok {
		return errors.New("database dsn must be a URL such as postgres://... or duckdb://...")
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql", "duckdb":
		return nil
	default:
		return fmt.Errorf("unsupported database dsn scheme %q", scheme)
	}
}

// resolveDuckDBPath anchors a relative duckdb:// file path at dir, the same
// way schema_cache_path is resolved. Other DSNs are returned unchanged.
func resolveDuckDBPath(dsn, dir string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok || !strings.EqualFold(scheme, "duckdb") {
		return dsn
	}
	path, query, hasQuery := strings.Cut(rest, "?")
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return dsn
	}
	resolved := scheme + "://" + filepath.Join(dir, path)
	if hasQuery {
		resolved += "?" + query
	}
	return resolved
}

func requireFile(path, message string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.Wrap(apperr.KindConfigMissing, "settings", message+": "+path, err)
		}
		return apperr.Wrap(apperr.KindUnexpected, "settings", "stat config file "+path, err)
	}
	if info.IsDir() {
		return apperr.New(apperr.KindConfigMissing, "settings", message+": "+path+" is a directory")
	}
	return nil
}

func firstNonEmpty(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
