//go:build integration

package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parla-labs/parla/internal/quota"
	"github.com/parla-labs/parla/internal/users"
)

func createLedgerUser(t *testing.T, env *TestEnv) *users.User {
	t.Helper()
	email := fmt.Sprintf("ledger-%d@test.local", uniqueID())
	user, err := env.UserSvc.Create(context.Background(), email, "not-a-real-hash")
	require.NoError(t, err)
	return user
}

func TestAddMinutes_ConcurrentWritersAllLand(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()
	user := createLedgerUser(t, env)
	day := quota.Day(time.Now())

	const writers = 100
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, env.Store.AddMinutes(ctx, user.ID, day, 1))
		}()
	}
	wg.Wait()

	total, err := env.Store.MonthlyMinuteTotal(ctx, user.ID, quota.MonthStart(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, float64(writers), total)
}

func TestAddMinutes_FirstWriteCreatesExactAmount(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()
	user := createLedgerUser(t, env)

	require.NoError(t, env.Store.AddMinutes(ctx, user.ID, quota.Day(time.Now()), 3.5))

	total, err := env.Store.MonthlyMinuteTotal(ctx, user.ID, quota.MonthStart(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 3.5, total)
}

func TestMonthlyMinuteTotal_ExcludesPriorMonth(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()
	user := createLedgerUser(t, env)

	monthStart := quota.MonthStart(time.Now())
	priorDay := monthStart.AddDate(0, 0, -1)

	require.NoError(t, env.Store.AddMinutes(ctx, user.ID, priorDay, 50))
	require.NoError(t, env.Store.AddMinutes(ctx, user.ID, quota.Day(time.Now()), 7))

	total, err := env.Store.MonthlyMinuteTotal(ctx, user.ID, monthStart)
	require.NoError(t, err)
	assert.Equal(t, 7.0, total)
}

func TestDailyTTSCount_PerUserWindow(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()
	user := createLedgerUser(t, env)
	other := createLedgerUser(t, env)

	for i := 0; i < 4; i++ {
		require.NoError(t, env.Store.InsertTTSCall(ctx, user.ID))
	}

	day := quota.Day(time.Now())

	count, err := env.Store.DailyTTSCount(ctx, user.ID, day)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	count, err = env.Store.DailyTTSCount(ctx, other.ID, day)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSettings_LastWriteWins(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()
	key := fmt.Sprintf("test_setting_%d", uniqueID())

	_, found, err := env.Store.GetSetting(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, env.Store.SetSetting(ctx, key, "10"))
	require.NoError(t, env.Store.SetSetting(ctx, key, "25"))

	value, found, err := env.Store.GetSetting(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "25", value)
}

func TestPurgeMinutesBefore_KeepsCurrentMonth(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()
	user := createLedgerUser(t, env)

	monthStart := quota.MonthStart(time.Now())
	require.NoError(t, env.Store.AddMinutes(ctx, user.ID, monthStart.AddDate(0, 0, -3), 40))
	require.NoError(t, env.Store.AddMinutes(ctx, user.ID, quota.Day(time.Now()), 9))

	purged, err := env.Store.PurgeMinutesBefore(ctx, monthStart)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, purged, int64(1))

	total, err := env.Store.MonthlyMinuteTotal(ctx, user.ID, monthStart)
	require.NoError(t, err)
	assert.Equal(t, 9.0, total)
}
