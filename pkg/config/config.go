package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Google    GoogleConfig    `mapstructure:"google"`
	LineWorks LineWorksConfig `mapstructure:"lineworks"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	BridgeSecret string `mapstructure:"bridge_secret"`
}

type GoogleConfig struct {
	DryRun      bool   `mapstructure:"dry_run"`
	CalendarID  string `mapstructure:"calendar_id"`
	SheetsID    string `mapstructure:"sheets_id"`
	SheetsRange string `mapstructure:"sheets_range"`
	TokenPath   string `mapstructure:"token_path"`
}

type LineWorksConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	// A local .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	v := viper.New()

	// Set default values
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("google.dry_run", true)
	v.SetDefault("google.calendar_id", "primary")
	v.SetDefault("google.sheets_range", "Sheet1!A:C")
	v.SetDefault("google.token_path", ".env.variables/google_token.json")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", true)

	// Enable environment variable support
	v.AutomaticEnv()

	// The config file is optional: a missing file falls back to
	// defaults plus environment variables.
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Environment variables take precedence over the file.
	if addr := v.GetString("BRIDGE_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if secret := v.GetString("BRIDGE_SECRET"); secret != "" {
		config.Server.BridgeSecret = secret
	}
	if dry := v.GetString("DRY_RUN"); dry != "" {
		config.Google.DryRun = strings.EqualFold(dry, "true") || dry == "1"
	}
	if id := v.GetString("GOOGLE_CALENDAR_ID"); id != "" {
		config.Google.CalendarID = id
	}
	if id := v.GetString("SHEETS_ID"); id != "" {
		config.Google.SheetsID = id
	}
	if rng := v.GetString("GOOGLE_SHEETS_RANGE"); rng != "" {
		config.Google.SheetsRange = rng
	}
	if p := v.GetString("GOOGLE_TOKEN_PATH"); p != "" {
		config.Google.TokenPath = p
	}
	if hook := v.GetString("LINEWORKS_WEBHOOK_URL"); hook != "" {
		config.LineWorks.WebhookURL = hook
	}
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	return &config, nil
}
