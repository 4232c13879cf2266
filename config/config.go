package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Transcription TranscriptionConfig
	Extraction    ExtractionConfig
	Storage       StorageConfig
	Archive       ArchiveConfig

	ServerPort        string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ProcessTimeout    time.Duration
	RateLimit         int
	RateLimitInterval time.Duration
	DBPath            string
	LogDir            string
	LogLevel          string
}

// TranscriptionConfig selects the Whisper model and language.
type TranscriptionConfig struct {
	Model    string
	Language string // "auto" enables language detection
	Binary   string
	ModelDir string
}

// ExtractionConfig is passed through to yt-dlp.
type ExtractionConfig struct {
	Format          string
	AudioCodec      string
	AudioQuality    string
	Retries         int
	FragmentRetries int
	SocketTimeout   time.Duration
	Binary          string
}

type StorageConfig struct {
	TempDir string
}

// ArchiveConfig points at an S3 compatible bucket. An empty Bucket disables archiving.
type ArchiveConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

const LanguageAuto = "auto"

func LoadConfig() *Config {
	return &Config{
		Transcription: TranscriptionConfig{
			Model:    GetEnv("WHISPER_MODEL", "base"),
			Language: GetEnv("WHISPER_LANGUAGE", LanguageAuto),
			Binary:   GetEnv("WHISPER_PATH", "whisper"),
			ModelDir: GetEnv("WHISPER_MODEL_DIR", ""),
		},
		Extraction: ExtractionConfig{
			Format:          GetEnv("YOUTUBE_FORMAT", "bestaudio"),
			AudioCodec:      GetEnv("AUDIO_FORMAT", "mp3"),
			AudioQuality:    GetEnv("AUDIO_QUALITY", "192"),
			Retries:         getEnvAsInt("DOWNLOAD_RETRIES", 10),
			FragmentRetries: getEnvAsInt("FRAGMENT_RETRIES", 10),
			SocketTimeout:   time.Duration(getEnvAsInt("SOCKET_TIMEOUT", 30)) * time.Second,
			Binary:          GetEnv("YTDLP_PATH", "yt-dlp"),
		},
		Storage: StorageConfig{
			TempDir: GetEnv("TEMP_DIR", "/tmp/mcp-video"),
		},
		Archive: ArchiveConfig{
			Bucket:    GetEnv("ARCHIVE_BUCKET", ""),
			Region:    GetEnv("ARCHIVE_REGION", "us-east-1"),
			Endpoint:  GetEnv("ARCHIVE_ENDPOINT", ""),
			AccessKey: GetEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: GetEnv("ARCHIVE_SECRET_KEY", ""),
		},
		ServerPort:        GetEnv("SERVER_PORT", "8080"),
		ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 30*time.Minute),
		IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		ProcessTimeout:    getEnvAsDuration("PROCESS_TIMEOUT", 30*time.Minute),
		RateLimit:         getEnvAsInt("RATE_LIMIT", 5),
		RateLimitInterval: getEnvAsDuration("RATE_LIMIT_INTERVAL", 1*time.Second),
		DBPath:            GetEnv("DB_PATH", "./data/mcp-video.db"),
		LogDir:            GetEnv("LOG_DIR", "./logs"),
		LogLevel:          GetEnv("LOG_LEVEL", "info"),
	}
}

// LoadEnvFile loads key/value pairs from a dotenv file into the process
// environment. Variables that are already set win. A missing file is only an
// error when required is true.
func LoadEnvFile(path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return errors.Wrapf(err, "env file %s", path)
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "loading env file %s", path)
	}
	return nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func ValidateConfig(cfg *Config) error {
	if cfg.Transcription.Model == "" {
		return errors.New("whisper model is required")
	}
	if cfg.Extraction.AudioCodec == "" {
		return errors.New("audio format is required")
	}
	if cfg.Storage.TempDir == "" {
		return errors.New("temp directory is required")
	}
	if cfg.Extraction.Retries < 0 || cfg.Extraction.FragmentRetries < 0 {
		return errors.New("retry counts must not be negative")
	}
	if cfg.Extraction.SocketTimeout <= 0 {
		return errors.New("socket timeout must be greater than 0")
	}
	if cfg.ProcessTimeout <= 0 {
		return errors.New("process timeout must be greater than 0")
	}
	return nil
}

// ValidateServer checks the settings only the HTTP server needs.
func ValidateServer(cfg *Config) error {
	if cfg.ServerPort == "" {
		return errors.New("server port is required")
	}
	if cfg.DBPath == "" {
		return errors.New("database path is required")
	}
	if cfg.ReadTimeout <= 0 {
		return errors.New("read timeout must be greater than 0")
	}
	if cfg.WriteTimeout <= 0 {
		return errors.New("write timeout must be greater than 0")
	}
	if cfg.IdleTimeout <= 0 {
		return errors.New("idle timeout must be greater than 0")
	}
	if cfg.RateLimit <= 0 {
		return errors.New("rate limit must be greater than 0")
	}
	return nil
}
