package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
)

type pageRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
}

func rowCursor(r pageRow) Cursor {
	return Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	assert.Equal(t, 8, LimitWithBuffer(7))
}

func TestCursorIsURLSafe(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 30, 0, 123, time.UTC), ID: uuid.New()}
	encoded := EncodeCursor(cursor)
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")
	assert.NotContains(t, encoded, "=")

	decoded, err := ParseCursor(" " + encoded + " ")
	require.NoError(t, err)
	assert.True(t, cursor.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, cursor.ID, decoded.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	got, err := ParseCursor("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseCursor("%%%")
	assert.Error(t, err)

	_, err = ParseCursor(EncodeCursor(Cursor{})[:4])
	assert.Error(t, err)
}

func TestPageTrimsBufferedRow(t *testing.T) {
	rows := []pageRow{
		{ID: uuid.New(), CreatedAt: time.Now()},
		{ID: uuid.New(), CreatedAt: time.Now()},
		{ID: uuid.New(), CreatedAt: time.Now()},
	}

	page, next := Page(rows, 2, rowCursor)
	require.Len(t, page, 2)
	require.NotEmpty(t, next)
	decoded, err := ParseCursor(next)
	require.NoError(t, err)
	assert.Equal(t, rows[1].ID, decoded.ID)

	page, next = Page(rows, 3, rowCursor)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}

func TestKeysetWalksAllRowsNewestFirst(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, db.AutoMigrate(&pageRow{}))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Create(&pageRow{ID: uuid.New(), CreatedAt: base.Add(time.Duration(i) * time.Minute)}).Error)
	}

	var seen []pageRow
	params := Params{Limit: 2}
	for pages := 0; pages < 5; pages++ {
		query, err := Keyset(db.Model(&pageRow{}), params)
		require.NoError(t, err)
		var rows []pageRow
		require.NoError(t, query.Find(&rows).Error)

		page, next := Page(rows, params.Limit, rowCursor)
		seen = append(seen, page...)
		if next == "" {
			break
		}
		params.Cursor = next
	}

	require.Len(t, seen, 5)
	for i := 1; i < len(seen); i++ {
		assert.True(t, seen[i-1].CreatedAt.After(seen[i].CreatedAt), "rows out of order at %d", i)
	}
}

func TestKeysetRejectsBadCursor(t *testing.T) {
	db := dbtest.Open(t)
	_, err := Keyset(db, Params{Cursor: "not-a-cursor!"})
	assert.Error(t, err)
}
