package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TickReport — итог одного прохода фоновой проверки: кого предупредили,
// кого удалили и кого пропустили (с причиной). Ошибка на одной записи
// не прерывает проход — она попадает в Skipped, и проверка идёт дальше.
type TickReport struct {
	Warned  []int64
	Revoked []int64
	Skipped map[int64]string
}

// Enforcer — фоновая проверка подписок. Раз в CheckInterval
// просматривает всю базу: предупреждает админа о скором окончании
// и выкидывает из каналов тех, у кого срок вышел.
type Enforcer struct {
	cfg     Config
	store   *Store
	history *History
	msgr    Messenger
	log     zerolog.Logger

	// Когда админ в последний раз получал предупреждение по каждому
	// пользователю. Только в памяти: после рестарта предупреждения
	// придут заново, это осознанное упрощение.
	notified map[int64]time.Time
}

func NewEnforcer(cfg Config, store *Store, history *History, msgr Messenger, log zerolog.Logger) *Enforcer {
	return &Enforcer{
		cfg:      cfg,
		store:    store,
		history:  history,
		msgr:     msgr,
		log:      log.With().Str("component", "enforcer").Logger(),
		notified: make(map[int64]time.Time),
	}
}

// Run крутит проверку до отмены контекста.
func (e *Enforcer) Run(ctx context.Context) {
	e.log.Info().Dur("interval", e.cfg.CheckInterval).Msg("фоновая проверка запущена")
	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("фоновая проверка остановлена")
			return
		case <-ticker.C:
			e.Tick(time.Now())
		}
	}
}

// Tick — один проход по базе. Вынесен отдельно, чтобы тесты могли
// прогнать проверку с нужным временем, не дожидаясь таймера.
func (e *Enforcer) Tick(now time.Time) TickReport {
	report := TickReport{Skipped: make(map[int64]string)}
	nowTS := unix(now)

	for _, rec := range e.store.List() {
		remaining := rec.ExpiresAt - nowTS
		switch {
		case remaining <= 0:
			if reason := e.revokeExpired(rec, now); reason != "" {
				report.Skipped[rec.UserID] = reason
			} else {
				report.Revoked = append(report.Revoked, rec.UserID)
			}
		case remaining < e.cfg.WarnWindow.Seconds():
			warned, reason := e.warnExpiring(rec, now)
			if warned {
				report.Warned = append(report.Warned, rec.UserID)
			} else if reason != "" {
				report.Skipped[rec.UserID] = reason
			}
		}
	}

	e.log.Info().
		Ints64("warned", report.Warned).
		Ints64("revoked", report.Revoked).
		Int("skipped", len(report.Skipped)).
		Msg("проход завершён")
	for id, reason := range report.Skipped {
		e.log.Warn().Int64("user", id).Str("reason", reason).Msg("запись пропущена")
	}
	return report
}

// revokeExpired выкидывает пользователя из всех каналов и удаляет
// запись. Если хотя бы один канал не дал выкинуть, запись остаётся —
// следующий проход попробует ещё раз. Возвращает причину пропуска
// или пустую строку при успехе.
func (e *Enforcer) revokeExpired(rec Record, now time.Time) string {
	for _, channelID := range e.cfg.ChannelIDs {
		if err := e.msgr.KickFromChannel(channelID, rec.UserID); err != nil {
			return fmt.Sprintf("не удалось удалить из канала: %v", err)
		}
	}
	delete(e.notified, rec.UserID)
	e.store.Revoke(rec.UserID)

	profile := e.msgr.Profile(rec.UserID)
	text := fmt.Sprintf(
		"🗑️ *ПОДПИСКА ИСТЕКЛА!*\n\n"+
			"👤 *%s*\n"+
			"📱 %s\n"+
			"🆔 ID: `%d`\n"+
			"🔗 %s\n\n"+
			"⏰ *Автоматически удалён из канала*\n"+
			"🕐 Время: %s",
		profile.Name, profile.Link(), rec.UserID, profile.Username,
		now.Format("02.01.2006 15:04"),
	)
	if err := e.msgr.SendMessage(e.cfg.AdminID, text); err != nil {
		// Запись уже удалена, повторного уведомления не будет.
		e.log.Warn().Err(err).Int64("user", rec.UserID).Msg("уведомление об удалении не дошло")
	}
	e.history.Add(fmt.Sprintf("🗑️ Авто-удаление: истёк срок у %d", rec.UserID))
	return ""
}

// warnExpiring шлёт админу предупреждение о скором окончании, не чаще
// одного раза в WarnCooldown на пользователя.
func (e *Enforcer) warnExpiring(rec Record, now time.Time) (bool, string) {
	if last, ok := e.notified[rec.UserID]; ok && now.Sub(last) <= e.cfg.WarnCooldown {
		return false, ""
	}

	profile := e.msgr.Profile(rec.UserID)
	expires := time.Unix(int64(rec.ExpiresAt), 0)
	remaining := time.Duration(rec.ExpiresAt-unix(now)) * time.Second
	text := fmt.Sprintf(
		"⚠️ *СКОРО ИСТЕКАЕТ ПОДПИСКА!*\n\n"+
			"👤 *%s*\n"+
			"📱 %s\n"+
			"🆔 ID: `%d`\n"+
			"🔗 %s\n\n"+
			"⏳ Осталось: %s\n"+
			"📅 Истекает: %s\n\n"+
			"💡 Продлить: `/extend %d ДНИ`",
		profile.Name, profile.Link(), rec.UserID, profile.Username,
		remaining.Round(time.Minute), expires.Format("02.01.2006 15:04"), rec.UserID,
	)
	if err := e.msgr.SendMessage(e.cfg.AdminID, text); err != nil {
		// Памятка не обновляется: на следующем проходе попробуем снова.
		return false, fmt.Sprintf("предупреждение не отправлено: %v", err)
	}
	e.notified[rec.UserID] = now
	e.history.Add(fmt.Sprintf("⏰ Уведомление: у %d скоро истекает подписка", rec.UserID))
	return true, ""
}
