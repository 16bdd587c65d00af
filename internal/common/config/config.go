package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	GenAI      GenAIConfig      `mapstructure:"genai"`
	RemoveBG   RemoveBGConfig   `mapstructure:"removebg"`
	Renderer   RendererConfig   `mapstructure:"renderer"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Compositor CompositorConfig `mapstructure:"compositor"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Geocode    GeocodeConfig    `mapstructure:"geocode"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // seconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // seconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // seconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Enabled   bool     `mapstructure:"enabled"`
	Index     string   `mapstructure:"index"`
}

// GenAIConfig covers both text and image generation.
type GenAIConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	TextModel  string `mapstructure:"text_model"`
	ImageModel string `mapstructure:"image_model"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

type RemoveBGConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// RendererConfig drives the templated cloud renderer.
type RendererConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	TemplateID string `mapstructure:"template_id"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

// RelayConfig bounds uploads to the public image host.
type RelayConfig struct {
	Bucket        string `mapstructure:"bucket"`
	Region        string `mapstructure:"region"`
	KeyPrefix     string `mapstructure:"key_prefix"`
	MaxEdge       int    `mapstructure:"max_edge"`     // longest-edge cap in pixels
	JPEGQuality   int    `mapstructure:"jpeg_quality"` // 1-100
	MaxAttempts   int    `mapstructure:"max_attempts"`
	BaseDelay     int    `mapstructure:"base_delay"`  // milliseconds
	PresignTTLMin int    `mapstructure:"presign_ttl"` // minutes
}

type CompositorConfig struct {
	CanvasSize      int    `mapstructure:"canvas_size"`
	ChromaThreshold int    `mapstructure:"chroma_threshold"` // 0-255, near-black cutoff
	FontPath        string `mapstructure:"font_path"`
	FramePath       string `mapstructure:"frame_path"`
	LoadTimeout     int    `mapstructure:"load_timeout"` // milliseconds per image
}

// PipelineConfig holds the retry/backoff tuning for the orchestrator.
type PipelineConfig struct {
	PollBaseDelay   int     `mapstructure:"poll_base_delay"` // milliseconds
	PollFactor      float64 `mapstructure:"poll_factor"`
	PollMaxDelay    int     `mapstructure:"poll_max_delay"` // milliseconds
	PollMaxAttempts int     `mapstructure:"poll_max_attempts"`
	JobTTLMin       int     `mapstructure:"job_ttl"` // minutes
	NearbyRadiusKm  float64 `mapstructure:"nearby_radius_km"`
	NearbyLimit     int     `mapstructure:"nearby_limit"`
	TagCacheTTLMin  int     `mapstructure:"tag_cache_ttl"` // minutes
}

type GeocodeConfig struct {
	NominatimBaseURL string `mapstructure:"nominatim_base_url"`
	PostalBaseURL    string `mapstructure:"postal_base_url"`
	Timeout          int    `mapstructure:"timeout"` // milliseconds
	MaxAttempts      int    `mapstructure:"max_attempts"`
	BaseDelay        int    `mapstructure:"base_delay"` // milliseconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
