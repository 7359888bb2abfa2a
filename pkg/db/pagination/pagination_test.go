package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", Seq: 7})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, int64(7), cursor.Seq)
	assert.Equal(t, "42", cursor.ID)
}

func TestDecodeCursorEmptyAndInvalid(t *testing.T) {
	cursor, err := DecodeCursor("  ")
	assert.NoError(t, err)
	assert.Nil(t, cursor)

	_, err = DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestBuildCursorPageInfo(t *testing.T) {
	items := []int64{10, 9, 8}

	page, info := BuildCursorPageInfo(items, 2, func(v int64) Cursor { return Cursor{Seq: v} })
	assert.Equal(t, []int64{10, 9}, page)
	assert.True(t, info.HasMore)

	next, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, int64(9), next.Seq)

	page, info = BuildCursorPageInfo(items, 5, func(v int64) Cursor { return Cursor{Seq: v} })
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestNormalizePageSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, NormalizePageSize(0))
	assert.Equal(t, MaxPageSize, NormalizePageSize(10_000))
	assert.Equal(t, 20, NormalizePageSize(20))
}
