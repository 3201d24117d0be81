package treehole

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/treehole/treehole-go/treehole/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := DefaultConfig()
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig carries the progression constants the forum has always
// used; a config file only needs to override what differs.
func DefaultConfig() Config {
	return Config{
		Progression: ProgressionConfig{
			CheckInBaseExp:        5,
			CheckInBonusStep:      5,
			CheckInBonusCap:       20,
			CheckInBonusMinStreak: 7,
			MaxUpdateRetries:      3,
			LeaderboardLimit:      50,
			LeaderboardTTLSeconds: 60,
		},
	}
}

type Config struct {
	Log         LogConfig         `toml:"log"`
	DB          database.DBConfig `toml:"db"`
	Redis       RedisConfig       `toml:"redis"`
	Progression ProgressionConfig `toml:"progression"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type ProgressionConfig struct {
	CheckInBaseExp        int64 `toml:"check_in_base_exp"`
	CheckInBonusStep      int64 `toml:"check_in_bonus_step"`
	CheckInBonusCap       int64 `toml:"check_in_bonus_cap"`
	CheckInBonusMinStreak int   `toml:"check_in_bonus_min_streak"`
	MaxUpdateRetries      int   `toml:"max_update_retries"`
	LeaderboardLimit      int   `toml:"leaderboard_limit"`
	LeaderboardTTLSeconds int   `toml:"leaderboard_ttl_seconds"`
}
