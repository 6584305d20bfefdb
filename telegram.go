package main

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Profile — то, что бот знает о пользователе Telegram.
type Profile struct {
	UserID   int64
	Name     string
	Username string
}

// Link — markdown-ссылка на профиль, кликабельная даже без username.
func (p Profile) Link() string {
	return fmt.Sprintf("[Профиль](tg://user?id=%d)", p.UserID)
}

// Messenger — всё, что боту нужно от Telegram. Обработчики команд и
// фоновая проверка работают только через этот интерфейс, поэтому в
// тестах его подменяет фейк.
type Messenger interface {
	SendMessage(chatID int64, text string) error
	Profile(userID int64) Profile
	KickFromChannel(channelID, userID int64) error
	ChannelMembers(channelID int64) ([]Profile, error)
	ChannelTitle(channelID int64) (string, error)
	BotStatus(channelID int64) (string, error)
	BotID() int64
}

type telegramMessenger struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

func NewTelegramMessenger(bot *tgbotapi.BotAPI, log zerolog.Logger) Messenger {
	return &telegramMessenger{
		bot: bot,
		log: log.With().Str("component", "telegram").Logger(),
	}
}

func (t *telegramMessenger) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		t.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить сообщение")
		return err
	}
	return nil
}

// Profile запрашивает карточку пользователя. При ошибке возвращается
// заглушка — команда из-за недоступного профиля не падает.
func (t *telegramMessenger) Profile(userID int64) Profile {
	chat, err := t.bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: userID},
	})
	if err != nil {
		t.log.Warn().Err(err).Int64("user", userID).Msg("не удалось получить профиль")
		return Profile{UserID: userID, Name: "Неизвестно", Username: "нет username"}
	}
	name := chat.FirstName
	if chat.LastName != "" {
		name += " " + chat.LastName
	}
	if name == "" {
		name = "Неизвестно"
	}
	username := "нет username"
	if chat.UserName != "" {
		username = "@" + chat.UserName
	}
	return Profile{UserID: userID, Name: name, Username: username}
}

// KickFromChannel удаляет пользователя из канала: бан и сразу разбан.
// Такая пара действий выкидывает из канала, не оставляя вечной блокировки.
func (t *telegramMessenger) KickFromChannel(channelID, userID int64) error {
	member := tgbotapi.ChatMemberConfig{ChatID: channelID, UserID: userID}
	if _, err := t.bot.Request(tgbotapi.BanChatMemberConfig{ChatMemberConfig: member}); err != nil {
		return fmt.Errorf("бан в канале %d: %w", channelID, err)
	}
	if _, err := t.bot.Request(tgbotapi.UnbanChatMemberConfig{ChatMemberConfig: member}); err != nil {
		return fmt.Errorf("разбан в канале %d: %w", channelID, err)
	}
	return nil
}

// ChannelMembers перечисляет участников канала, которых отдаёт Bot API.
// Для каналов это только администраторы — полного списка участников
// Telegram ботам не даёт.
func (t *telegramMessenger) ChannelMembers(channelID int64) ([]Profile, error) {
	admins, err := t.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: channelID},
	})
	if err != nil {
		return nil, err
	}
	profiles := make([]Profile, 0, len(admins))
	for _, m := range admins {
		if m.User == nil {
			continue
		}
		name := m.User.FirstName
		if m.User.LastName != "" {
			name += " " + m.User.LastName
		}
		username := "нет username"
		if m.User.UserName != "" {
			username = "@" + m.User.UserName
		}
		profiles = append(profiles, Profile{UserID: m.User.ID, Name: name, Username: username})
	}
	return profiles, nil
}

func (t *telegramMessenger) ChannelTitle(channelID int64) (string, error) {
	chat, err := t.bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: channelID},
	})
	if err != nil {
		return "", err
	}
	return chat.Title, nil
}

// BotStatus возвращает статус самого бота в канале ("administrator",
// "creator", ...). Нужен для проверки прав перед /getids.
func (t *telegramMessenger) BotStatus(channelID int64) (string, error) {
	member, err := t.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: channelID,
			UserID: t.bot.Self.ID,
		},
	})
	if err != nil {
		return "", err
	}
	return member.Status, nil
}

func (t *telegramMessenger) BotID() int64 {
	return t.bot.Self.ID
}
