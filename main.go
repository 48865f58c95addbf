package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"anon_relay_bot/config"
	"anon_relay_bot/database"
	"anon_relay_bot/gate"
	"anon_relay_bot/handlers"
	"anon_relay_bot/notify"
	"anon_relay_bot/tglog"
	"anon_relay_bot/workflow"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env не найден, используются переменные окружения")
	}
	cfg := config.Load()

	if cfg.BotToken == "" {
		log.Fatal("BOT_TOKEN не установлен")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL не установлен")
	}
	if cfg.AdminID == 0 || cfg.GroupID == 0 {
		log.Fatal("ADMIN_ID и GROUP_ID должны быть заданы")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {}),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		log.Fatal(err)
	}

	// Получаем username бота для подписи анонимных публикаций
	me, err := b.GetMe(ctx)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Бот @%s запущен", me.Username)

	tglog.Init(b, cfg.AlertChatID)

	router := notify.New(b)

	gc, err := gate.New(ctx, db, router, cfg.AdminID, cfg.GroupID)
	if err != nil {
		log.Fatal(err)
	}

	wf := workflow.New(db, gc, router, cfg.AdminID, cfg.GroupID, me.Username, cfg.PreserveCaptions)

	h := handlers.New(b, cfg, gc, wf, router)
	defer h.Stop()

	b.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, h.OnMessage)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, h.OnCallback)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil &&
			(len(update.Message.Photo) > 0 || update.Message.Video != nil || update.Message.Animation != nil)
	}, h.OnMessage)

	b.Start(ctx)
}
