package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Handler разбирает команды админа. Все ответы уходят в тот же чат,
// откуда пришла команда.
type Handler struct {
	cfg     Config
	store   *Store
	history *History
	msgr    Messenger
	log     zerolog.Logger
	now     func() time.Time
}

func NewHandler(cfg Config, store *Store, history *History, msgr Messenger, log zerolog.Logger) *Handler {
	return &Handler{
		cfg:     cfg,
		store:   store,
		history: history,
		msgr:    msgr,
		log:     log.With().Str("component", "handler").Logger(),
		now:     time.Now,
	}
}

// Dispatch — единая точка входа для всех сообщений. Команды доступны
// только админу, остальным — явный отказ.
func (h *Handler) Dispatch(userID, chatID int64, text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return
	}
	if userID != h.cfg.AdminID {
		h.reply(chatID, "❌ Эта команда только для администратора!")
		return
	}

	cmd, args := fields[0], fields[1:]
	// Команды вида /start@имябота тоже принимаем.
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		h.handleStart(chatID)
	case "/adduser":
		h.handleAddUser(chatID, args)
	case "/addall":
		h.handleAddAll(chatID, args)
	case "/extend":
		h.handleExtend(chatID, args)
	case "/remove":
		h.handleRemove(chatID, args)
	case "/check":
		h.handleCheck(chatID)
	case "/getids":
		h.handleGetIDs(chatID)
	case "/history":
		h.handleHistory(chatID, args)
	case "/stats":
		h.handleStats(chatID)
	case "/ignore":
		h.handleIgnore(chatID, args)
	default:
		h.reply(chatID, "❌ Неизвестная команда. Введите /start для списка команд.")
	}
}

func (h *Handler) reply(chatID int64, text string) {
	if err := h.msgr.SendMessage(chatID, text); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("ответ не отправлен")
	}
}

func (h *Handler) handleStart(chatID int64) {
	h.reply(chatID, fmt.Sprintf(
		"🤖 *БОТ ДЛЯ УПРАВЛЕНИЯ ДОСТУПОМ К КАНАЛУ*\n\n"+
			"📊 В базе: %d пользователей\n"+
			"👑 Админ: %d\n\n"+
			"📋 *КОМАНДЫ:*\n"+
			"• /start - эта информация\n"+
			"• /adduser ID ДНИ - добавить пользователя\n"+
			"• /addall ДНИ - добавить всех доступных участников канала\n"+
			"• /extend ID ДНИ - продлить подписку\n"+
			"• /remove ID - удалить пользователя\n"+
			"• /check - список всех пользователей\n"+
			"• /getids - ID участников канала\n"+
			"• /history - история действий\n"+
			"• /stats - статистика\n"+
			"• /ignore ID - игнорировать нового участника",
		h.store.Count(), h.cfg.AdminID,
	))
}

func (h *Handler) handleAddUser(chatID int64, args []string) {
	userID, days, ok := parseIDDays(args)
	if !ok {
		h.reply(chatID,
			"❌ *НЕПРАВИЛЬНЫЙ ФОРМАТ!*\n\n"+
				"📝 Правильно: `/adduser 123456789 30`\n"+
				"• 123456789 - ID пользователя\n"+
				"• 30 - количество дней")
		return
	}

	profile := h.msgr.Profile(userID)
	expiresAt, extended := h.store.Grant(userID, days)

	if extended {
		h.history.Add(fmt.Sprintf("📅 Обновлён пользователь %d (+%d дней)", userID, days))
	} else {
		h.history.Add(fmt.Sprintf("✅ Добавлен пользователь %d (%d дней)", userID, days))
	}

	h.reply(chatID, fmt.Sprintf(
		"✅ *ГОТОВО!*\n\n"+
			"👤 *%s*\n"+
			"📱 %s\n"+
			"🆔 ID: `%d`\n"+
			"🔗 %s\n\n"+
			"⏳ *Срок доступа:*\n"+
			"• Дней: %d\n"+
			"• До: %s",
		profile.Name, profile.Link(), userID, profile.Username,
		days, time.Unix(int64(expiresAt), 0).Format("02.01.2006 15:04"),
	))
}

func (h *Handler) handleAddAll(chatID int64, args []string) {
	if len(args) != 1 {
		h.reply(chatID,
			"❌ *НЕПРАВИЛЬНЫЙ ФОРМАТ!*\n\n"+
				"📝 Правильно: `/addall 30`\n"+
				"• 30 - количество дней для всех участников")
		return
	}
	days, err := strconv.Atoi(args[0])
	if err != nil || days <= 0 {
		h.reply(chatID, "❌ Некорректное количество дней.")
		return
	}

	h.reply(chatID, fmt.Sprintf("⏳ Добавляю %d дней всем доступным участникам...", days))

	added := 0
	var failures []string
	for _, channelID := range h.cfg.ChannelIDs {
		members, err := h.msgr.ChannelMembers(channelID)
		if err != nil {
			failures = append(failures, fmt.Sprintf("канал %d: %v", channelID, err))
			continue
		}
		for _, member := range members {
			if member.UserID == h.msgr.BotID() {
				continue
			}
			h.store.Put(member.UserID, days)
			added++
		}
	}

	h.history.Add(fmt.Sprintf("📊 Массовое добавление: %d дней для %d пользователей", days, added))

	text := fmt.Sprintf(
		"✅ *МАССОВОЕ ДОБАВЛЕНИЕ ЗАВЕРШЕНО!*\n\n"+
			"📊 Обработано: %d\n"+
			"⏳ Срок для всех: до %s",
		added, h.now().Add(time.Duration(days)*24*time.Hour).Format("02.01.2006"),
	)
	if len(failures) > 0 {
		text += fmt.Sprintf("\n\n⚠️ Были ошибки: %d\n• %s", len(failures), strings.Join(failures, "\n• "))
	}
	h.reply(chatID, text)
}

func (h *Handler) handleExtend(chatID int64, args []string) {
	userID, days, ok := parseIDDays(args)
	if !ok {
		h.reply(chatID,
			"❌ *НЕПРАВИЛЬНЫЙ ФОРМАТ!*\n\n"+
				"📝 Правильно: `/extend 123456789 30`\n"+
				"• 123456789 - ID пользователя\n"+
				"• 30 - количество дней для продления")
		return
	}

	oldTS, newTS, err := h.store.Extend(userID, days)
	if errors.Is(err, ErrNotFound) {
		h.reply(chatID, fmt.Sprintf(
			"❌ *ПОЛЬЗОВАТЕЛЬ НЕ НАЙДЕН!*\n\n"+
				"Пользователь `%d` не найден в базе.\n"+
				"💡 Используйте `/adduser %d %d` чтобы добавить.",
			userID, userID, days,
		))
		return
	}

	profile := h.msgr.Profile(userID)
	h.history.Add(fmt.Sprintf("📈 Продлён пользователь %d (+%d дней)", userID, days))
	h.reply(chatID, fmt.Sprintf(
		"✅ *ПОДПИСКА ПРОДЛЕНА!*\n\n"+
			"👤 *%s*\n"+
			"📱 %s\n"+
			"🆔 ID: `%d`\n\n"+
			"📅 Было: %s\n"+
			"📅 Стало: %s\n"+
			"⏳ Добавлено дней: %d",
		profile.Name, profile.Link(), userID,
		time.Unix(int64(oldTS), 0).Format("02.01.2006 15:04"),
		time.Unix(int64(newTS), 0).Format("02.01.2006 15:04"),
		days,
	))
}

func (h *Handler) handleRemove(chatID int64, args []string) {
	if len(args) != 1 {
		h.reply(chatID,
			"❌ *НЕПРАВИЛЬНЫЙ ФОРМАТ!*\n\n"+
				"📝 Правильно: `/remove 123456789`\n"+
				"• 123456789 - ID пользователя для удаления")
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(chatID, "❌ Некорректный ID пользователя.")
		return
	}

	if _, ok := h.store.Get(userID); !ok {
		h.reply(chatID, fmt.Sprintf(
			"❌ *ПОЛЬЗОВАТЕЛЬ НЕ НАЙДЕН!*\n\nПользователь `%d` не найден в базе.", userID))
		return
	}

	profile := h.msgr.Profile(userID)

	// Из канала выкидываем в любом случае, из базы удаляем даже если
	// канал не дал этого сделать — админ видит результат по каждому шагу.
	channelResult := "✅ Удалён из канала"
	for _, channelID := range h.cfg.ChannelIDs {
		if err := h.msgr.KickFromChannel(channelID, userID); err != nil {
			channelResult = fmt.Sprintf("⚠️ Не удалён из канала: %v", err)
			break
		}
	}

	h.store.Revoke(userID)
	h.history.Add(fmt.Sprintf("🗑️ Удалён пользователь %d", userID))
	h.reply(chatID, fmt.Sprintf(
		"✅ *ПОЛЬЗОВАТЕЛЬ УДАЛЁН!*\n\n"+
			"👤 *%s*\n"+
			"📱 %s\n"+
			"🆔 ID: `%d`\n\n"+
			"📊 *Результат:*\n"+
			"• База данных: ❌ Удалён\n"+
			"• Канал: %s",
		profile.Name, profile.Link(), userID, channelResult,
	))
}

func (h *Handler) handleCheck(chatID int64) {
	records := h.store.List()
	if len(records) == 0 {
		h.reply(chatID, "📭 *База пользователей пуста!*")
		return
	}

	nowTS := unix(h.now())
	var active, expired strings.Builder
	activeCount, expiredCount := 0, 0

	for _, rec := range records {
		daysLeft := int((rec.ExpiresAt - nowTS) / secondsPerDay)
		endDate := time.Unix(int64(rec.ExpiresAt), 0)
		profile := h.msgr.Profile(rec.UserID)

		if rec.ExpiresAt > nowTS {
			activeCount++
			icon := "🟢"
			if daysLeft <= 1 {
				icon = "🟡"
			}
			fmt.Fprintf(&active, "%d. %s *%s*\n   🆔 `%d` | 🔗 %s\n   ⏳ Осталось: %d дн. | 📅 До: %s\n",
				activeCount, icon, profile.Name, rec.UserID, profile.Username,
				daysLeft, endDate.Format("02.01.2006 15:04"))
		} else {
			expiredCount++
			fmt.Fprintf(&expired, "%d. 🔴 *%s*\n   🆔 `%d` | 🔗 %s\n   ⏰ Истек: %s\n",
				expiredCount, profile.Name, rec.UserID, profile.Username,
				endDate.Format("02.01.2006"))
		}
	}

	if activeCount > 0 {
		h.reply(chatID, "🟢 *АКТИВНЫЕ ПОЛЬЗОВАТЕЛИ:*\n\n"+active.String())
	}
	if expiredCount > 0 {
		h.reply(chatID, "🔴 *ИСТЕКШИЕ ПОДПИСКИ:*\n\n"+expired.String())
	}
	h.reply(chatID, fmt.Sprintf(
		"📊 *СТАТИСТИКА:*\n• Всего в базе: %d\n• Активных: %d\n• Истекших: %d",
		len(records), activeCount, expiredCount,
	))
}

func (h *Handler) handleGetIDs(chatID int64) {
	for _, channelID := range h.cfg.ChannelIDs {
		status, err := h.msgr.BotStatus(channelID)
		if err != nil {
			h.reply(chatID, fmt.Sprintf("❌ *ОШИБКА ПРОВЕРКИ ПРАВ:* %v", err))
			return
		}
		if status != "administrator" && status != "creator" {
			h.reply(chatID,
				"❌ *БОТ НЕ ЯВЛЯЕТСЯ АДМИНИСТРАТОРОМ!*\n\n"+
					"Добавьте бота в администраторы канала с правами:\n"+
					"• Исключение участников\n"+
					"• Просмотр участников")
			return
		}
	}

	h.reply(chatID, "⏳ Получаю список участников канала...")

	count := 0
	var sb strings.Builder
	sb.WriteString("🆔 *УЧАСТНИКИ КАНАЛА:*\n\n")
	for _, channelID := range h.cfg.ChannelIDs {
		members, err := h.msgr.ChannelMembers(channelID)
		if err != nil {
			h.reply(chatID, fmt.Sprintf("❌ *ОШИБКА:* %v", err))
			return
		}
		for _, member := range members {
			if member.UserID == h.msgr.BotID() {
				continue
			}
			count++
			fmt.Fprintf(&sb, "%d. *%s*\n   🆔 ID: `%d`\n   🔗 %s\n\n",
				count, member.Name, member.UserID, member.Username)
		}
	}
	sb.WriteString(fmt.Sprintf("📊 Всего: %d\n\n💡 Добавить: `/adduser ID ДНИ`", count))
	h.reply(chatID, sb.String())
}

func (h *Handler) handleHistory(chatID int64, args []string) {
	// Некорректный или неположительный аргумент — молча берём дефолт,
	// как и отсутствие аргумента.
	count := 50
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			count = n
		}
	}
	if count > historyLimit {
		count = historyLimit
	}

	entries := h.history.Recent(count)
	if len(entries) == 0 {
		h.reply(chatID, "📭 *История действий пуста!*")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 *ИСТОРИЯ ДЕЙСТВИЙ (последние %d):*\n\n", len(entries))
	for i, entry := range entries {
		fmt.Fprintf(&sb, "%d. *%s* - %s\n", i+1, entry.Timestamp, entry.Action)
	}
	h.reply(chatID, sb.String())
}

func (h *Handler) handleStats(chatID int64) {
	nowTS := unix(h.now())
	activeCount, expiringSoon, expiredCount := 0, 0, 0
	records := h.store.List()
	for _, rec := range records {
		daysLeft := (rec.ExpiresAt - nowTS) / secondsPerDay
		if daysLeft > 0 {
			activeCount++
			if daysLeft <= 3 {
				expiringSoon++
			}
		} else {
			expiredCount++
		}
	}

	channelInfo := "❓ Неизвестно"
	if len(h.cfg.ChannelIDs) > 0 {
		if title, err := h.msgr.ChannelTitle(h.cfg.ChannelIDs[0]); err == nil {
			channelInfo = title
		}
	}

	h.reply(chatID, fmt.Sprintf(
		"📊 *СТАТИСТИКА СИСТЕМЫ*\n\n"+
			"👥 *ПОЛЬЗОВАТЕЛИ:*\n"+
			"• Всего в базе: %d\n"+
			"• Активных: %d\n"+
			"• Скоро истекает (<3 дней): %d\n"+
			"• Истекших: %d\n\n"+
			"📺 *КАНАЛ:*\n"+
			"• Название: %s\n\n"+
			"🤖 *БОТ:*\n"+
			"• Админ ID: `%d`\n"+
			"• Статус: 🟢 Работает",
		len(records), activeCount, expiringSoon, expiredCount,
		channelInfo, h.cfg.AdminID,
	))
}

func (h *Handler) handleIgnore(chatID int64, args []string) {
	if len(args) != 1 {
		h.reply(chatID,
			"❌ *НЕПРАВИЛЬНЫЙ ФОРМАТ!*\n\n"+
				"📝 Правильно: `/ignore 123456789`\n"+
				"• 123456789 - ID пользователя для игнорирования")
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(chatID, "❌ Некорректный ID пользователя.")
		return
	}

	profile := h.msgr.Profile(userID)
	h.history.Add(fmt.Sprintf("👌 Игнорирован пользователь %d", userID))
	h.reply(chatID, fmt.Sprintf(
		"👌 *ПОЛЬЗОВАТЕЛЬ ИГНОРИРУЕТСЯ*\n\n"+
			"👤 *%s*\n"+
			"📱 %s\n"+
			"🆔 ID: `%d`\n\n"+
			"💡 Пользователь не добавлен в базу и не будет удалён автоматически.",
		profile.Name, profile.Link(), userID,
	))
}

func parseIDDays(args []string) (int64, int, bool) {
	if len(args) != 2 {
		return 0, 0, false
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	days, err := strconv.Atoi(args[1])
	if err != nil || days <= 0 {
		return 0, 0, false
	}
	return userID, days, true
}
