package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where yonder stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// InstanceURL is the url of your yonder instance.
	InstanceURL string
	// JWTSecret signs and verifies API access tokens.
	JWTSecret string

	// Redis change-event fanout (optional, multi-instance deployments only)
	RedisAddr    string // YONDER_REDIS_ADDR
	RedisChannel string // YONDER_REDIS_CHANNEL (default: yonder:changes)

	// Assistant configuration
	AssistantEnabled  bool    // YONDER_ASSISTANT_ENABLED
	AssistantAPIKey   string  // YONDER_ASSISTANT_API_KEY
	AssistantBaseURL  string  // YONDER_ASSISTANT_BASE_URL (default: https://api.openai.com/v1)
	AssistantModel    string  // YONDER_ASSISTANT_MODEL (default: gpt-4o-mini)
	AssistantMaxTurns int     // YONDER_ASSISTANT_MAX_TURNS (default: 20)
	AssistantRPS      float64 // YONDER_ASSISTANT_RPS per-user rate limit (default: 0.5)

	// TikaServerURL enables text extraction for document attachments.
	TikaServerURL string // YONDER_TIKA_URL
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAssistantEnabled returns true if the assistant is enabled and an API key is configured.
func (p *Profile) IsAssistantEnabled() bool {
	return p.AssistantEnabled && p.AssistantAPIKey != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from YONDER_* environment variables.
func (p *Profile) FromEnv() {
	p.JWTSecret = getEnvOrDefault("YONDER_JWT_SECRET", p.JWTSecret)

	p.RedisAddr = os.Getenv("YONDER_REDIS_ADDR")
	p.RedisChannel = getEnvOrDefault("YONDER_REDIS_CHANNEL", "yonder:changes")

	p.AssistantEnabled = os.Getenv("YONDER_ASSISTANT_ENABLED") == "true"
	p.AssistantAPIKey = getEnvOrDefault("YONDER_ASSISTANT_API_KEY", p.AssistantAPIKey)
	p.AssistantBaseURL = getEnvOrDefault("YONDER_ASSISTANT_BASE_URL", "https://api.openai.com/v1")
	p.AssistantModel = getEnvOrDefault("YONDER_ASSISTANT_MODEL", "gpt-4o-mini")

	if v := os.Getenv("YONDER_ASSISTANT_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.AssistantMaxTurns = n
		}
	}
	if p.AssistantMaxTurns == 0 {
		p.AssistantMaxTurns = 20
	}

	if v := os.Getenv("YONDER_ASSISTANT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			p.AssistantRPS = f
		}
	}
	if p.AssistantRPS == 0 {
		p.AssistantRPS = 0.5
	}

	p.TikaServerURL = os.Getenv("YONDER_TIKA_URL")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "yonder")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/yonder"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("yonder_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
