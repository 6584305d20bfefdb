package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Конфигурация бота. Собирается один раз при старте и передаётся
// во все компоненты явно, без глобальных переменных.
type Config struct {
	Token         string
	AdminID       int64
	ChannelIDs    []int64
	DataFile      string
	HistoryFile   string
	CheckInterval time.Duration
	WarnWindow    time.Duration
	WarnCooldown  time.Duration
}

// LoadConfig читает настройки из переменных окружения.
// Отсутствие BOT_TOKEN — фатальная ошибка, всё остальное имеет дефолты.
func LoadConfig() (Config, error) {
	cfg := Config{
		Token:         os.Getenv("BOT_TOKEN"),
		AdminID:       envInt64("ADMIN_ID", 0),
		DataFile:      envString("DATA_FILE", "users.json"),
		HistoryFile:   envString("HISTORY_FILE", "history.json"),
		CheckInterval: envSeconds("CHECK_INTERVAL", 300),
		WarnWindow:    envSeconds("WARN_WINDOW", 86400),
		WarnCooldown:  envSeconds("WARN_COOLDOWN", 43200),
	}
	if cfg.Token == "" {
		return Config{}, fmt.Errorf("переменная окружения BOT_TOKEN не установлена")
	}
	for _, part := range strings.Split(os.Getenv("CHANNEL_IDS"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("некорректный ID канала %q в CHANNEL_IDS", part)
		}
		cfg.ChannelIDs = append(cfg.ChannelIDs, id)
	}
	return cfg, nil
}

func envString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt64(name string, def int64) int64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envSeconds(name string, def int64) time.Duration {
	return time.Duration(envInt64(name, def)) * time.Second
}
