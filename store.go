package main

import (
	"encoding/json"
	"errors"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("пользователь не найден в базе")

const secondsPerDay = 86400

// Record — одна подписка: Telegram ID и момент окончания доступа
// (unix-секунды, дробная часть сохраняется).
type Record struct {
	UserID    int64
	ExpiresAt float64
}

// Store хранит подписки в одном JSON-файле: ключи — строковые ID,
// значения — unix-метки окончания. Каждая операция читает файл целиком,
// меняет данные в памяти и перезаписывает файл. Мьютекс не даёт
// обработчикам команд и фоновой проверке перемешать записи между собой.
type Store struct {
	path string
	mu   sync.Mutex
	log  zerolog.Logger
	now  func() time.Time
}

func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{
		path: path,
		log:  log.With().Str("component", "store").Logger(),
		now:  time.Now,
	}
}

// load читает базу целиком. Отсутствующий или битый файл — это пустая
// база, а не ошибка: бот продолжает работать и пересоздаст файл при
// следующем сохранении.
func (s *Store) load() map[int64]float64 {
	data := make(map[int64]float64)
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error().Err(err).Str("file", s.path).Msg("не удалось прочитать базу")
		}
		return data
	}
	var decoded map[string]float64
	if err := json.Unmarshal(raw, &decoded); err != nil {
		s.log.Error().Err(err).Str("file", s.path).Msg("база повреждена, начинаем с пустой")
		return data
	}
	for key, ts := range decoded {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.log.Warn().Str("key", key).Msg("пропущен некорректный ключ в базе")
			continue
		}
		data[id] = ts
	}
	return data
}

// save перезаписывает файл целиком. Ошибка записи логируется и
// проглатывается: мутация в памяти уже состоялась, следующая успешная
// запись её зафиксирует.
func (s *Store) save(data map[int64]float64) {
	encoded := make(map[string]float64, len(data))
	for id, ts := range data {
		encoded[strconv.FormatInt(id, 10)] = ts
	}
	raw, err := json.MarshalIndent(encoded, "", "    ")
	if err != nil {
		s.log.Error().Err(err).Msg("не удалось сериализовать базу")
		return
	}
	if err := os.WriteFile(s.path, raw, 0644); err != nil {
		s.log.Error().Err(err).Str("file", s.path).Msg("не удалось сохранить базу")
	}
}

// Grant выдаёт подписку на days дней. Если пользователь уже есть,
// дни прибавляются к текущему сроку (то же, что Extend) — так /adduser
// работает и как «продлить». Возвращает новый срок и признак того,
// что запись уже существовала.
func (s *Store) Grant(userID int64, days int) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	current, exists := data[userID]
	if exists {
		data[userID] = current + float64(days)*secondsPerDay
	} else {
		data[userID] = unix(s.now()) + float64(days)*secondsPerDay
	}
	s.save(data)
	s.log.Info().Int64("user", userID).Int("days", days).Bool("extended", exists).Msg("подписка выдана")
	return data[userID], exists
}

// Put ставит срок ровно now+days, независимо от текущего значения.
// Используется при массовом добавлении участников канала.
func (s *Store) Put(userID int64, days int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	data[userID] = unix(s.now()) + float64(days)*secondsPerDay
	s.save(data)
	return data[userID]
}

// Extend прибавляет days дней к текущему сроку. Срок считается от
// сохранённого значения, даже если оно уже в прошлом — без
// специальных случаев, как и в Grant.
func (s *Store) Extend(userID int64, days int) (oldTS, newTS float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	current, exists := data[userID]
	if !exists {
		return 0, 0, ErrNotFound
	}
	data[userID] = current + float64(days)*secondsPerDay
	s.save(data)
	s.log.Info().Int64("user", userID).Int("days", days).Msg("подписка продлена")
	return current, data[userID], nil
}

// Revoke удаляет запись. Возвращает false, если записи не было.
func (s *Store) Revoke(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	if _, exists := data[userID]; !exists {
		return false
	}
	delete(data, userID)
	s.save(data)
	s.log.Info().Int64("user", userID).Msg("подписка удалена")
	return true
}

// List возвращает все записи, отсортированные по сроку окончания:
// те, у кого подписка кончается раньше, идут первыми.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	records := make([]Record, 0, len(data))
	for id, ts := range data {
		records = append(records, Record{UserID: id, ExpiresAt: ts})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ExpiresAt < records[j].ExpiresAt
	})
	return records
}

// Get возвращает срок окончания подписки, если запись есть.
func (s *Store) Get(userID int64) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.load()[userID]
	return ts, ok
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.load())
}

func unix(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
