package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	chatID int64
	text   string
}

type kickCall struct {
	channelID int64
	userID    int64
}

// fakeMessenger подменяет Telegram в тестах и записывает все вызовы.
type fakeMessenger struct {
	sent       []sentMessage
	kicks      []kickCall
	sendErr    error
	kickErr    error
	members    map[int64][]Profile
	membersErr error
	title      string
	titleErr   error
	status     string
	statusErr  error
	botID      int64
}

func (f *fakeMessenger) SendMessage(chatID int64, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeMessenger) Profile(userID int64) Profile {
	return Profile{UserID: userID, Name: "Тест", Username: "@test"}
}

func (f *fakeMessenger) KickFromChannel(channelID, userID int64) error {
	if f.kickErr != nil {
		return f.kickErr
	}
	f.kicks = append(f.kicks, kickCall{channelID: channelID, userID: userID})
	return nil
}

func (f *fakeMessenger) ChannelMembers(channelID int64) ([]Profile, error) {
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	return f.members[channelID], nil
}

func (f *fakeMessenger) ChannelTitle(int64) (string, error) {
	return f.title, f.titleErr
}

func (f *fakeMessenger) BotStatus(int64) (string, error) {
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if f.status == "" {
		return "administrator", nil
	}
	return f.status, nil
}

func (f *fakeMessenger) BotID() int64 { return f.botID }

func testConfig() Config {
	return Config{
		AdminID:       42,
		ChannelIDs:    []int64{-100500},
		CheckInterval: 300 * time.Second,
		WarnWindow:    24 * time.Hour,
		WarnCooldown:  12 * time.Hour,
	}
}

func newTestEnforcer(t *testing.T, cfg Config, now time.Time) (*Enforcer, *Store, *fakeMessenger) {
	t.Helper()
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "users.json"), zerolog.Nop())
	store.now = func() time.Time { return now }
	history := NewHistory(filepath.Join(dir, "history.json"), zerolog.Nop())
	fake := &fakeMessenger{}
	return NewEnforcer(cfg, store, history, fake, zerolog.Nop()), store, fake
}

func TestTickRevokesExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e, store, fake := newTestEnforcer(t, testConfig(), now)
	store.Put(222, 1)

	report := e.Tick(now.Add(2 * 24 * time.Hour))

	assert.Equal(t, []int64{222}, report.Revoked)
	assert.Empty(t, report.Warned)
	assert.Empty(t, store.List())
	require.Len(t, fake.kicks, 1)
	assert.Equal(t, kickCall{channelID: -100500, userID: 222}, fake.kicks[0])
	require.Len(t, fake.sent, 1)
	assert.Equal(t, int64(42), fake.sent[0].chatID)
	assert.Contains(t, fake.sent[0].text, "ПОДПИСКА ИСТЕКЛА")
}

func TestTickIsIdempotent(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e, store, fake := newTestEnforcer(t, testConfig(), now)
	store.Put(222, 1)
	later := now.Add(2 * 24 * time.Hour)

	e.Tick(later)
	report := e.Tick(later)

	assert.Empty(t, report.Revoked)
	assert.Empty(t, report.Warned)
	assert.Empty(t, report.Skipped)
	assert.Len(t, fake.kicks, 1)
	assert.Len(t, fake.sent, 1)
}

func TestTickExpiryBoundary(t *testing.T) {
	// Срок, равный текущему моменту, уже истёк.
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e, store, _ := newTestEnforcer(t, testConfig(), now)
	store.Put(1, 1)

	report := e.Tick(now.Add(24 * time.Hour))

	assert.Equal(t, []int64{1}, report.Revoked)
	assert.Empty(t, store.List())
}

func TestTickWarnsWithCooldown(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e, store, fake := newTestEnforcer(t, testConfig(), now)
	store.Put(333, 1)

	start := now.Add(4 * time.Hour) // осталось 20 часов, внутри окна
	report := e.Tick(start)
	assert.Equal(t, []int64{333}, report.Warned)
	require.Len(t, fake.sent, 1)
	assert.Contains(t, fake.sent[0].text, "СКОРО ИСТЕКАЕТ")

	// Повторный проход сразу же — без нового предупреждения.
	report = e.Tick(start)
	assert.Empty(t, report.Warned)
	assert.Len(t, fake.sent, 1)

	// Через 13 часов кулдаун прошёл, осталось 7 часов — шлём снова.
	report = e.Tick(start.Add(13 * time.Hour))
	assert.Equal(t, []int64{333}, report.Warned)
	assert.Len(t, fake.sent, 2)
}

func TestTickWarnSendFailureRetries(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e, store, fake := newTestEnforcer(t, testConfig(), now)
	store.Put(333, 1)
	fake.sendErr = assert.AnError

	start := now.Add(4 * time.Hour)
	report := e.Tick(start)
	assert.Empty(t, report.Warned)
	assert.Contains(t, report.Skipped[333], "предупреждение не отправлено")

	// Памятка не обновилась, следующий проход предупреждает.
	fake.sendErr = nil
	report = e.Tick(start)
	assert.Equal(t, []int64{333}, report.Warned)
}

func TestTickKickFailureKeepsRecord(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e, store, fake := newTestEnforcer(t, testConfig(), now)
	store.Put(222, 1)
	fake.kickErr = assert.AnError
	later := now.Add(2 * 24 * time.Hour)

	report := e.Tick(later)

	assert.Empty(t, report.Revoked)
	assert.Contains(t, report.Skipped[222], "не удалось удалить из канала")
	assert.Len(t, store.List(), 1)
	assert.Empty(t, fake.sent)

	// Канал снова доступен — следующий проход дочищает запись.
	fake.kickErr = nil
	report = e.Tick(later)
	assert.Equal(t, []int64{222}, report.Revoked)
	assert.Empty(t, store.List())
}

func TestTickKicksFromEveryChannel(t *testing.T) {
	cfg := testConfig()
	cfg.ChannelIDs = []int64{-100500, -100501}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e, store, fake := newTestEnforcer(t, cfg, now)
	store.Put(222, 1)

	e.Tick(now.Add(2 * 24 * time.Hour))

	require.Len(t, fake.kicks, 2)
	assert.Equal(t, int64(-100500), fake.kicks[0].channelID)
	assert.Equal(t, int64(-100501), fake.kicks[1].channelID)
}

func TestGrantExtendExpireScenario(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e, store, fake := newTestEnforcer(t, testConfig(), now)

	store.Grant(111, 30)
	_, newTS, err := store.Extend(111, 10)
	require.NoError(t, err)
	assert.Equal(t, unix(now)+40*secondsPerDay, newTS)

	report := e.Tick(now.Add(41 * 24 * time.Hour))

	assert.Equal(t, []int64{111}, report.Revoked)
	assert.Empty(t, store.List())
	kicked := 0
	for _, k := range fake.kicks {
		if k.userID == 111 {
			kicked++
		}
	}
	assert.Equal(t, 1, kicked)
}

func TestTickWarnMessageMentionsExtend(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e, store, fake := newTestEnforcer(t, testConfig(), now)
	store.Put(333, 1)

	e.Tick(now.Add(4 * time.Hour))

	require.Len(t, fake.sent, 1)
	assert.True(t, strings.Contains(fake.sent[0].text, "/extend 333"))
}
