package config

import "time"

// DefaultBotPatterns lists user-agent fragments treated as automated clients.
var DefaultBotPatterns = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"curl",
	"wget",
	"python",
	"node",
	"facebookexternalhit",
	"twitterbot",
	"linkedinbot",
	"slackbot",
	"discordbot",
	"whatsapp",
	"telegrambot",
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:              "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    11 * 1024 * 1024,
			CORSOrigins:     []string{"*"},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:   false,
			StaticDir: "public",
			Docs:      true,
		},
		Security: SecurityConfig{
			Strict:         false,
			BotPatterns:    append([]string(nil), DefaultBotPatterns...),
			MaxImageSize:   10 * 1024 * 1024,
			AllowedFormats: []string{"jpeg", "jpg", "png", "webp"},
			DeepScan:       false,
			MaxWidth:       8192,
			MaxHeight:      8192,
			MaxPixels:      40000000,
		},
		RateLimit: RateLimitConfig{
			Driver:      "memory",
			MaxRequests: 10,
			Window:      time.Hour,
			Redis: RateLimitRedis{
				Addr:   "127.0.0.1:6379",
				Prefix: "pfc:ratelimit:",
			},
		},
		Inference: InferenceConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:       "gemini-1.5-flash",
			Attempts:    3,
			BaseDelay:   time.Second,
			Timeout:     60 * time.Second,
			Temperature: 0.1,
			MaxTokens:   1024,
		},
	}
}
