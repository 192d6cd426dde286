package config

import (
	"time"

	"github.com/caarlos0/env/v6"

	"course-copilot/internal/logging"
)

type Config struct {
	// Chat service endpoints
	BaseURL      string `env:"COPILOT_BASE_URL" envDefault:"http://localhost:8000"`
	WebsocketURL string `env:"COPILOT_WS_URL" envDefault:"ws://localhost:8000"`

	// Session credential; when empty a new session is started on boot
	SessionID string `env:"COPILOT_SESSION_ID"`

	// Conversation selection
	CourseID string `env:"COPILOT_COURSE_ID,required"`
	ChatID   string `env:"COPILOT_CHAT_ID"`

	// Logging
	LogLevel  string `env:"COPILOT_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"COPILOT_LOG_FORMAT" envDefault:"text"`

	// Transcript recording (disabled when empty)
	TranscriptPath string `env:"COPILOT_TRANSCRIPT_PATH"`

	// Feed cache retention for idle conversations
	FeedCacheTTL time.Duration `env:"COPILOT_FEED_CACHE_TTL" envDefault:"30m"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		logging.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
