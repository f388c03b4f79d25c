package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parla-labs/parla/internal/providers"
	"github.com/parla-labs/parla/internal/quota"
	"github.com/parla-labs/parla/internal/users"
)

// memStore is a minimal in-memory quota.Store for wrapper tests.
type memStore struct {
	mu       sync.Mutex
	minutes  map[uuid.UUID]float64
	ttsCalls map[uuid.UUID]int
	settings map[string]string

	failWrites bool
}

func newMemStore() *memStore {
	return &memStore{
		minutes:  make(map[uuid.UUID]float64),
		ttsCalls: make(map[uuid.UUID]int),
		settings: make(map[string]string),
	}
}

func (m *memStore) MonthlyMinuteTotal(_ context.Context, userID uuid.UUID, _ time.Time) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.minutes[userID], nil
}

func (m *memStore) AddMinutes(_ context.Context, userID uuid.UUID, _ time.Time, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("write failed")
	}
	m.minutes[userID] += amount
	return nil
}

func (m *memStore) DailyTTSCount(_ context.Context, userID uuid.UUID, _ time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttsCalls[userID], nil
}

func (m *memStore) InsertTTSCall(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("write failed")
	}
	m.ttsCalls[userID]++
	return nil
}

func (m *memStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *memStore) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *memStore) PurgeMinutesBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeChat struct {
	reply string
	err   error
	calls int
}

func (f *fakeChat) Complete(_ context.Context, _ string, _ []providers.Message, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeTTS struct {
	audio    []byte
	err      error
	calls    int
	lastText string
}

func (f *fakeTTS) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	f.calls++
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

func newTestService(store *memStore, chat *fakeChat, tts *fakeTTS) *Service {
	quotaSvc := quota.NewService(store, nil, 15)
	return NewService(quotaSvc, chat, tts, 500)
}

func testStudent(limit float64) *users.User {
	return &users.User{ID: uuid.New(), Role: users.RoleStudent, MinutesLimit: limit}
}

func TestConverse_SuccessRecordsCost(t *testing.T) {
	store := newMemStore()
	chat := &fakeChat{reply: strings.Repeat("word ", 300)} // 300 words = 2.0 min
	svc := newTestService(store, chat, &fakeTTS{})
	user := testStudent(120)

	resp, err := svc.Converse(context.Background(), user, ChatRequest{Message: "hola"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, resp.CostApplied)
	assert.Equal(t, chat.reply, resp.Reply)
	assert.Equal(t, 2.0, store.minutes[user.ID])
}

func TestConverse_DeniedBeforeProviderCall(t *testing.T) {
	store := newMemStore()
	chat := &fakeChat{reply: "should never be seen"}
	svc := newTestService(store, chat, &fakeTTS{})
	user := testStudent(120)
	store.minutes[user.ID] = 120.5

	_, err := svc.Converse(context.Background(), user, ChatRequest{Message: "hola"})
	require.Error(t, err)

	var denied *QuotaDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "minutes", denied.Resource)
	assert.Equal(t, 120.5, denied.Used)
	assert.Equal(t, 120.0, denied.Limit)
	assert.False(t, denied.FallbackToLocal)
	assert.Equal(t, 0, chat.calls, "downstream must not run after denial")
}

func TestConverse_ProviderFailureRecordsNothing(t *testing.T) {
	store := newMemStore()
	chat := &fakeChat{err: &providers.ProviderError{Provider: "chat", Status: 503}}
	svc := newTestService(store, chat, &fakeTTS{})
	user := testStudent(120)

	_, err := svc.Converse(context.Background(), user, ChatRequest{Message: "hola"})
	require.Error(t, err)

	var provErr *providers.ProviderError
	assert.True(t, errors.As(err, &provErr))
	assert.Equal(t, 0.0, store.minutes[user.ID], "no cost on downstream failure")
}

func TestConverse_RecordingFailureStillDelivers(t *testing.T) {
	store := newMemStore()
	store.failWrites = true
	chat := &fakeChat{reply: strings.Repeat("word ", 150)}
	svc := newTestService(store, chat, &fakeTTS{})
	user := testStudent(120)

	resp, err := svc.Converse(context.Background(), user, ChatRequest{Message: "hola"})
	require.NoError(t, err, "ledger fault must not break response delivery")
	assert.Equal(t, 1.0, resp.CostApplied)
}

func TestConverse_EmptyReplyCostsNothing(t *testing.T) {
	store := newMemStore()
	chat := &fakeChat{reply: ""}
	svc := newTestService(store, chat, &fakeTTS{})
	user := testStudent(120)

	resp, err := svc.Converse(context.Background(), user, ChatRequest{Message: "hola"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.CostApplied)
	assert.Equal(t, 0.0, store.minutes[user.ID])
}

func TestSynthesize_SuccessRecordsOneCall(t *testing.T) {
	store := newMemStore()
	tts := &fakeTTS{audio: []byte{1, 2, 3}}
	svc := newTestService(store, &fakeChat{}, tts)
	user := testStudent(120)

	audio, err := svc.Synthesize(context.Background(), user, TTSRequest{Text: "buenos días"})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, audio)
	assert.Equal(t, 1, store.ttsCalls[user.ID])
}

func TestSynthesize_TruncatesLongInput(t *testing.T) {
	store := newMemStore()
	tts := &fakeTTS{audio: []byte{1}}
	svc := newTestService(store, &fakeChat{}, tts)
	user := testStudent(120)

	long := strings.Repeat("a", 2000)
	_, err := svc.Synthesize(context.Background(), user, TTSRequest{Text: long})
	require.NoError(t, err)
	assert.Len(t, tts.lastText, 500)
}

func TestSynthesize_DeniedSignalsFallback(t *testing.T) {
	store := newMemStore()
	tts := &fakeTTS{audio: []byte{1}}
	svc := newTestService(store, &fakeChat{}, tts)
	user := testStudent(120)
	store.ttsCalls[user.ID] = 15

	_, err := svc.Synthesize(context.Background(), user, TTSRequest{Text: "hola"})
	require.Error(t, err)

	var denied *QuotaDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "tts", denied.Resource)
	assert.Equal(t, 15.0, denied.Used)
	assert.Equal(t, 15.0, denied.Limit)
	assert.True(t, denied.FallbackToLocal)
	assert.Equal(t, 0, tts.calls)
}

func TestSynthesize_ProviderFailureRecordsNothing(t *testing.T) {
	store := newMemStore()
	tts := &fakeTTS{err: &providers.ProviderError{Provider: "tts", Status: 500}}
	svc := newTestService(store, &fakeChat{}, tts)
	user := testStudent(120)

	_, err := svc.Synthesize(context.Background(), user, TTSRequest{Text: "hola"})
	require.Error(t, err)
	assert.Equal(t, 0, store.ttsCalls[user.ID])
}

func TestSynthesize_AdminBypassesDailyLimit(t *testing.T) {
	store := newMemStore()
	tts := &fakeTTS{audio: []byte{1}}
	svc := newTestService(store, &fakeChat{}, tts)
	user := &users.User{ID: uuid.New(), Role: users.RoleAdmin, QuotaExempt: true}
	store.ttsCalls[user.ID] = 99

	_, err := svc.Synthesize(context.Background(), user, TTSRequest{Text: "hola"})
	require.NoError(t, err)
	assert.Equal(t, 100, store.ttsCalls[user.ID], "usage still recorded for exempt users")
}
