package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	BotToken    string
	DatabaseURL string

	// Модератор и целевая группа
	AdminID     int64
	GroupID     int64
	AlertChatID int64

	// Задержка склейки альбома
	AlbumDelay time.Duration

	// Политики пересылки (исходный бот существовал в двух вариантах)
	PreserveCaptions bool
	AllowAnimations  bool
}

func Load() *Config {
	adminID, _ := strconv.ParseInt(getEnv("ADMIN_ID", "0"), 10, 64)
	groupID, _ := strconv.ParseInt(getEnv("GROUP_ID", "0"), 10, 64)
	alertChatID, _ := strconv.ParseInt(getEnv("ALERT_CHAT_ID", "0"), 10, 64)
	albumDelay, _ := strconv.Atoi(getEnv("ALBUM_DELAY_SECONDS", "3"))

	if alertChatID == 0 {
		alertChatID = adminID
	}

	return &Config{
		BotToken:         getEnv("BOT_TOKEN", ""),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		AdminID:          adminID,
		GroupID:          groupID,
		AlertChatID:      alertChatID,
		AlbumDelay:       time.Duration(albumDelay) * time.Second,
		PreserveCaptions: getEnv("PRESERVE_CAPTIONS", "true") == "true",
		AllowAnimations:  getEnv("ALLOW_ANIMATIONS", "false") == "true",
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
