package tglog

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-telegram/bot"
)

var (
	b       *bot.Bot
	chatID  int64
	enabled bool
)

// Init инициализирует канал оповещений модератора
func Init(tgBot *bot.Bot, chID int64) {
	if chID == 0 {
		log.Println("ALERT_CHAT_ID не задан, оповещения об ошибках отключены")
		return
	}
	b = tgBot
	chatID = chID
	enabled = true
	log.Printf("Оповещения об ошибках в чат %d включены", chID)
}

// Alert отправляет модератору сообщение об ошибке (неблокирующий).
// Детали ошибки пользователю никогда не показываются.
func Alert(format string, args ...any) {
	log.Printf(format, args...)
	if !enabled {
		return
	}
	text := "⚠️ " + fmt.Sprintf(format, args...)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   text,
		})
		if err != nil {
			log.Printf("Ошибка отправки оповещения: %v", err)
		}
	}()
}
