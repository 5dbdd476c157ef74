package tenant

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/baytretail/core/internal/apperr"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&PeriodLock{}))
	return db
}

func TestAssertPeriodOpenBlocksLockedWindow(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, db.Create(&PeriodLock{
		ID: 1, CompanyID: 5, Start: now.AddDate(0, 0, -10), End: now.AddDate(0, 0, -1), Locked: true,
	}).Error)

	// A date inside the locked window fails with a precondition error.
	err := AssertPeriodOpen(ctx, db, 5, now.AddDate(0, 0, -5))
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindPrecondition))

	// Today is outside the window.
	require.NoError(t, AssertPeriodOpen(ctx, db, 5, now))

	// The same window for another company does not gate this one.
	require.NoError(t, AssertPeriodOpen(ctx, db, 6, now.AddDate(0, 0, -5)))
}

func TestAssertPeriodOpenIgnoresUnlockedWindows(t *testing.T) {
	db := setupDB(t)
	now := time.Now().UTC()

	require.NoError(t, db.Create(&PeriodLock{
		ID: 2, CompanyID: 5, Start: now.AddDate(0, 0, -1), End: now.AddDate(0, 0, 1), Locked: false,
	}).Error)
	require.NoError(t, AssertPeriodOpen(context.Background(), db, 5, now))
}
