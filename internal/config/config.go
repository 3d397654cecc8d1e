package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Download struct {
		DataDir string
		// MetadataTimeoutMinutes bounds magnet metadata resolution;
		// 0 keeps the original block-forever behavior.
		MetadataTimeoutMinutes int
		StatusIntervalSeconds  int
	}
	Media struct {
		StorageDir     string
		FFmpegPath     string
		FFprobePath    string
		SegmentSeconds int
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Auth struct {
		JWTSecret        string
		RegisterPassword string
		TokenTTLMinutes  int
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	// values already in the environment win over .env entries
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("STREAMHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/streamhub.db")
	v.SetDefault("download.datadir", "data/downloads")
	v.SetDefault("download.metadatatimeoutminutes", 10)
	v.SetDefault("download.statusintervalseconds", 2)
	v.SetDefault("media.storagedir", "data/storage")
	v.SetDefault("media.ffmpegpath", "ffmpeg")
	v.SetDefault("media.ffprobepath", "ffprobe")
	v.SetDefault("media.segmentseconds", 6)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "streamhub")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.registerpassword", "")
	v.SetDefault("auth.tokenttlminutes", 1440)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
