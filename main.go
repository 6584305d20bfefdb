package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	// .env удобен при локальном запуске; в продакшене переменные
	// приходят из окружения и файла может не быть.
	_ = godotenv.Load()

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ бот не запущен")
	}
	if cfg.AdminID == 0 {
		log.Warn().Msg("ADMIN_ID не задан: команды не будут приниматься")
	}
	if len(cfg.ChannelIDs) == 0 {
		log.Warn().Msg("CHANNEL_IDS не задан: удаление из каналов работать не будет")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ не удалось подключиться к Telegram")
	}
	log.Info().Str("bot", bot.Self.UserName).Int64("admin", cfg.AdminID).Msg("🤖 бот запущен")

	store := NewStore(cfg.DataFile, log)
	history := NewHistory(cfg.HistoryFile, log)
	msgr := NewTelegramMessenger(bot, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enforcer := NewEnforcer(cfg, store, history, msgr, log)
	go enforcer.Run(ctx)

	handler := NewHandler(cfg, store, history, msgr, log)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			log.Info().Msg("бот остановлен")
			return
		case update := <-updates:
			if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
				continue
			}
			handler.Dispatch(update.Message.From.ID, update.Message.Chat.ID, update.Message.Text)
		}
	}
}
