package main

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const historyLimit = 100

type HistoryEntry struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
}

type historyFile struct {
	Actions []HistoryEntry `json:"actions"`
}

// History — журнал действий для команды /history. Ведётся по принципу
// «лучшее из возможного»: хранятся последние historyLimit записей,
// новые впереди, ошибки записи не мешают основной работе. Источником
// правды не является.
type History struct {
	path string
	mu   sync.Mutex
	log  zerolog.Logger
	now  func() time.Time
}

func NewHistory(path string, log zerolog.Logger) *History {
	return &History{
		path: path,
		log:  log.With().Str("component", "history").Logger(),
		now:  time.Now,
	}
}

func (h *History) load() historyFile {
	var hf historyFile
	raw, err := os.ReadFile(h.path)
	if err != nil {
		return hf
	}
	if err := json.Unmarshal(raw, &hf); err != nil {
		h.log.Warn().Err(err).Str("file", h.path).Msg("журнал повреждён, начинаем заново")
		return historyFile{}
	}
	return hf
}

// Add записывает действие в начало журнала.
func (h *History) Add(action string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hf := h.load()
	entry := HistoryEntry{
		Timestamp: h.now().Format("02.01.2006 15:04:05"),
		Action:    action,
	}
	hf.Actions = append([]HistoryEntry{entry}, hf.Actions...)
	if len(hf.Actions) > historyLimit {
		hf.Actions = hf.Actions[:historyLimit]
	}

	raw, err := json.MarshalIndent(hf, "", "    ")
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось сериализовать журнал")
		return
	}
	if err := os.WriteFile(h.path, raw, 0644); err != nil {
		h.log.Error().Err(err).Str("file", h.path).Msg("не удалось сохранить журнал")
	}
}

// Recent возвращает до n последних записей, новые впереди.
// Отрицательное n равносильно нулю.
func (h *History) Recent(n int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	actions := h.load().Actions
	if n < 0 {
		n = 0
	}
	if n > len(actions) {
		n = len(actions)
	}
	return actions[:n]
}
