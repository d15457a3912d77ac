package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Download DownloadConfig `mapstructure:"download"`
	History  HistoryConfig  `mapstructure:"history"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	StagingDir      string        `mapstructure:"staging_dir"`
	CookieFiles     []string      `mapstructure:"cookie_files"`
	YTDLPBinary     string        `mapstructure:"ytdlp_binary"`
	FFmpegDir       string        `mapstructure:"ffmpeg_dir"`
	CleanupDelay    time.Duration `mapstructure:"cleanup_delay"`
	CleanupRetry    time.Duration `mapstructure:"cleanup_retry"`
	MergeHeartbeat  time.Duration `mapstructure:"merge_heartbeat"`
	ArtifactTimeout time.Duration `mapstructure:"artifact_timeout"`
	ClaimWindow     time.Duration `mapstructure:"claim_window"`
}

// HistoryConfig contains download-history configuration
type HistoryConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Download: DownloadConfig{
			StagingDir: "$HOME/Downloads/media-fetch/staging",
			CookieFiles: []string{
				"cookies.txt",
				"youtube_cookies.txt",
			},
			YTDLPBinary:     "yt-dlp",
			FFmpegDir:       "",
			CleanupDelay:    2 * time.Second,
			CleanupRetry:    30 * time.Second,
			MergeHeartbeat:  10 * time.Second,
			ArtifactTimeout: 5 * time.Second,
			ClaimWindow:     10 * time.Minute,
		},
		History: HistoryConfig{
			DatabasePath: "$HOME/Downloads/media-fetch/history.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
