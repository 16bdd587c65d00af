package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like GENAI_API_KEY.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig() // env-specific overlay is optional

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "iamkolkata"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 300
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "para-entries"
	}

	if cfg.GenAI.BaseURL == "" {
		cfg.GenAI.BaseURL = "https://api.openai.com"
	}
	if cfg.GenAI.TextModel == "" {
		cfg.GenAI.TextModel = "gpt-3.5-turbo"
	}
	if cfg.GenAI.ImageModel == "" {
		cfg.GenAI.ImageModel = "dall-e-3"
	}
	if cfg.GenAI.Timeout == 0 {
		cfg.GenAI.Timeout = 120000
	}

	if cfg.RemoveBG.BaseURL == "" {
		cfg.RemoveBG.BaseURL = "https://api.remove.bg"
	}
	if cfg.RemoveBG.Timeout == 0 {
		cfg.RemoveBG.Timeout = 60000
	}

	if cfg.Renderer.Timeout == 0 {
		cfg.Renderer.Timeout = 30000
	}

	if cfg.Relay.Region == "" {
		cfg.Relay.Region = "ap-south-1"
	}
	if cfg.Relay.KeyPrefix == "" {
		cfg.Relay.KeyPrefix = "portraits"
	}
	if cfg.Relay.MaxEdge == 0 {
		cfg.Relay.MaxEdge = 1600
	}
	if cfg.Relay.JPEGQuality == 0 {
		cfg.Relay.JPEGQuality = 85
	}
	if cfg.Relay.MaxAttempts == 0 {
		cfg.Relay.MaxAttempts = 3
	}
	if cfg.Relay.BaseDelay == 0 {
		cfg.Relay.BaseDelay = 500
	}
	if cfg.Relay.PresignTTLMin == 0 {
		cfg.Relay.PresignTTLMin = 60
	}

	if cfg.Compositor.CanvasSize == 0 {
		cfg.Compositor.CanvasSize = 1080
	}
	if cfg.Compositor.ChromaThreshold == 0 {
		cfg.Compositor.ChromaThreshold = 40
	}
	if cfg.Compositor.LoadTimeout == 0 {
		cfg.Compositor.LoadTimeout = 10000
	}

	if cfg.Pipeline.PollBaseDelay == 0 {
		cfg.Pipeline.PollBaseDelay = 1000
	}
	if cfg.Pipeline.PollFactor == 0 {
		cfg.Pipeline.PollFactor = 1.5
	}
	if cfg.Pipeline.PollMaxDelay == 0 {
		cfg.Pipeline.PollMaxDelay = 5000
	}
	if cfg.Pipeline.PollMaxAttempts == 0 {
		cfg.Pipeline.PollMaxAttempts = 20
	}
	if cfg.Pipeline.JobTTLMin == 0 {
		cfg.Pipeline.JobTTLMin = 60
	}
	if cfg.Pipeline.NearbyRadiusKm == 0 {
		cfg.Pipeline.NearbyRadiusKm = 4
	}
	if cfg.Pipeline.NearbyLimit == 0 {
		cfg.Pipeline.NearbyLimit = 20
	}
	if cfg.Pipeline.TagCacheTTLMin == 0 {
		cfg.Pipeline.TagCacheTTLMin = 360
	}

	if cfg.Geocode.NominatimBaseURL == "" {
		cfg.Geocode.NominatimBaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.Geocode.PostalBaseURL == "" {
		cfg.Geocode.PostalBaseURL = "https://api.postalpincode.in"
	}
	if cfg.Geocode.Timeout == 0 {
		cfg.Geocode.Timeout = 10000
	}
	if cfg.Geocode.MaxAttempts == 0 {
		cfg.Geocode.MaxAttempts = 3
	}
	if cfg.Geocode.BaseDelay == 0 {
		cfg.Geocode.BaseDelay = 2000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// overrideFromEnv fills credentials that only ever arrive via environment.
func overrideFromEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("GENAI_API_KEY")); v != "" {
		cfg.GenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("REMOVEBG_API_KEY")); v != "" {
		cfg.RemoveBG.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("RENDERER_API_KEY")); v != "" {
		cfg.Renderer.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("RENDERER_TEMPLATE_ID")); v != "" {
		cfg.Renderer.TemplateID = v
	}
	if v := strings.TrimSpace(os.Getenv("RELAY_BUCKET")); v != "" {
		cfg.Relay.Bucket = v
	}
}

// validateConfig fails startup when a required credential is absent.
func validateConfig(cfg *Config) error {
	var missing []string
	if cfg.GenAI.APIKey == "" {
		missing = append(missing, "genai.api_key")
	}
	if cfg.RemoveBG.APIKey == "" {
		missing = append(missing, "removebg.api_key")
	}
	if cfg.Renderer.BaseURL != "" {
		if cfg.Renderer.APIKey == "" {
			missing = append(missing, "renderer.api_key")
		}
		if cfg.Renderer.TemplateID == "" {
			missing = append(missing, "renderer.template_id")
		}
	}
	if cfg.Relay.Bucket == "" {
		missing = append(missing, "relay.bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}
