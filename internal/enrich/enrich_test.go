package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/npezzotti/isupipe/internal/database"
	"github.com/npezzotti/isupipe/internal/testutil"
	"github.com/npezzotti/isupipe/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fallbackImage = []byte("fallback-icon")
	customImage   = []byte("custom-icon")
)

func sha(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// countingFallback counts how many times the provider was asked for the image.
func countingFallback(calls *int) FallbackIconFunc {
	return func(context.Context) ([]byte, error) {
		*calls++
		return fallbackImage, nil
	}
}

func user(id int64, name string) database.UserRow {
	return database.UserRow{Id: id, Name: name, DisplayName: name + " display", Description: name + " description"}
}

func expectUsers(mock sqlmock.Sqlmock, ids []int64, users ...database.UserRow) {
	rows := sqlmock.NewRows([]string{"id", "name", "display_name", "description", "password"})
	for _, u := range users {
		rows.AddRow(u.Id, u.Name, u.DisplayName, u.Description, "hashed")
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ANY($1)")).
		WithArgs(pq.Array(ids)).
		WillReturnRows(rows)
}

func expectThemes(mock sqlmock.Sqlmock, ids []int64) {
	rows := sqlmock.NewRows([]string{"id", "user_id", "dark_mode"})
	for _, id := range ids {
		rows.AddRow(id*10, id, id%2 == 0)
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM themes WHERE user_id = ANY($1)")).
		WithArgs(pq.Array(ids)).
		WillReturnRows(rows)
}

func expectIcons(mock sqlmock.Sqlmock, ids []int64, withIcon ...int64) {
	rows := sqlmock.NewRows([]string{"id", "user_id", "image"})
	for _, id := range withIcon {
		rows.AddRow(id*100, id, customImage)
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM icons WHERE user_id = ANY($1)")).
		WithArgs(pq.Array(ids)).
		WillReturnRows(rows)
}

func expectUserEnrichment(mock sqlmock.Sqlmock, ids []int64, users ...database.UserRow) {
	expectUsers(mock, ids, users...)
	expectThemes(mock, ids)
	expectIcons(mock, ids)
}

func livestream(id, userId int64) database.LivestreamRow {
	return database.LivestreamRow{
		Id:           id,
		UserId:       userId,
		Title:        "title",
		Description:  "description",
		PlaylistUrl:  "https://media.example.com/playlist.m3u8",
		ThumbnailUrl: "https://media.example.com/thumbnail.jpg",
		StartAt:      1700874000,
		EndAt:        1700877600,
	}
}

func expectLivestreams(mock sqlmock.Sqlmock, ids []int64, livestreams ...database.LivestreamRow) {
	rows := sqlmock.NewRows([]string{"id", "user_id", "title", "description", "playlist_url", "thumbnail_url", "start_at", "end_at"})
	for _, l := range livestreams {
		rows.AddRow(l.Id, l.UserId, l.Title, l.Description, l.PlaylistUrl, l.ThumbnailUrl, l.StartAt, l.EndAt)
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM livestreams WHERE id = ANY($1)")).
		WithArgs(pq.Array(ids)).
		WillReturnRows(rows)
}

func expectTags(mock sqlmock.Sqlmock, ids []int64, tags ...database.LivestreamTagRow) {
	rows := sqlmock.NewRows([]string{"livestream_id", "tag_id", "tag_name"})
	for _, t := range tags {
		rows.AddRow(t.LivestreamId, t.TagId, t.TagName)
	}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE lt.livestream_id = ANY($1)")).
		WithArgs(pq.Array(ids)).
		WillReturnRows(rows)
}

func TestIconHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", IconHash([]byte{}))
	assert.Equal(t, sha(fallbackImage), IconHash(fallbackImage))
	assert.Len(t, IconHash(customImage), 64)
	assert.Equal(t, IconHash(fallbackImage), IconHash(fallbackImage), "expected hash to be stable")
}

func TestFillUserResponses(t *testing.T) {
	t.Run("empty input issues no queries", func(t *testing.T) {
		db, _ := testutil.NewMockDB(t)
		calls := 0

		res, err := FillUserResponses(context.Background(), db, nil, countingFallback(&calls))
		require.NoError(t, err)
		assert.NotNil(t, res)
		assert.Empty(t, res)
		assert.Zero(t, calls)
	})

	t.Run("batch with duplicates keeps order and queries once per table", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		calls := 0

		expectThemes(mock, []int64{1, 2, 3})
		expectIcons(mock, []int64{1, 2, 3}, 2)

		input := []database.UserRow{user(1, "alice"), user(2, "bob"), user(1, "alice"), user(3, "carol")}
		res, err := FillUserResponses(context.Background(), db, input, countingFallback(&calls))
		require.NoError(t, err)

		require.Len(t, res, 4)
		assert.Equal(t, []int64{1, 2, 1, 3}, []int64{res[0].Id, res[1].Id, res[2].Id, res[3].Id})
		assert.Equal(t, sha(fallbackImage), res[0].IconHash)
		assert.Equal(t, sha(customImage), res[1].IconHash)
		assert.Equal(t, sha(fallbackImage), res[3].IconHash)
		assert.Equal(t, res[0], res[2])
		assert.Equal(t, types.Theme{Id: 20, DarkMode: true}, res[1].Theme)
		assert.Equal(t, "bob display", res[1].DisplayName)
		assert.Equal(t, 1, calls, "expected fallback provider to be invoked exactly once")
	})

	t.Run("fallback not requested when every user has an icon", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		calls := 0

		expectThemes(mock, []int64{1, 2})
		expectIcons(mock, []int64{1, 2}, 1, 2)

		res, err := FillUserResponses(context.Background(), db,
			[]database.UserRow{user(1, "alice"), user(2, "bob")}, countingFallback(&calls))
		require.NoError(t, err)
		assert.Len(t, res, 2)
		assert.Zero(t, calls)
	})

	t.Run("missing theme is an integrity error", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM themes WHERE user_id = ANY($1)")).
			WithArgs(pq.Array([]int64{1, 2})).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "dark_mode"}).AddRow(10, 1, false))

		_, err := FillUserResponses(context.Background(), db,
			[]database.UserRow{user(1, "alice"), user(2, "bob")}, StaticFallbackIcon(fallbackImage))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrIntegrity))

		var ie *IntegrityError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, "theme", ie.Entity)
		assert.Equal(t, []int64{2}, ie.Ids)
	})

	t.Run("query failure is wrapped", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		mock.ExpectQuery("FROM themes").WillReturnError(errors.New("connection reset"))

		_, err := FillUserResponses(context.Background(), db, []database.UserRow{user(1, "alice")}, StaticFallbackIcon(fallbackImage))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "get themes")
		assert.False(t, errors.Is(err, ErrIntegrity))
	})

	t.Run("fallback provider error", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		expectThemes(mock, []int64{1})
		expectIcons(mock, []int64{1})

		_, err := FillUserResponses(context.Background(), db, []database.UserRow{user(1, "alice")},
			func(context.Context) ([]byte, error) { return nil, errors.New("unreadable") })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "get fallback icon")
	})
}

func TestFillUserResponse(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	expectThemes(mock, []int64{7})
	expectIcons(mock, []int64{7}, 7)

	res, err := FillUserResponse(context.Background(), db, user(7, "grace"), StaticFallbackIcon(fallbackImage))
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Id)
	assert.Equal(t, "grace", res.Name)
	assert.Equal(t, sha(customImage), res.IconHash)
}

func TestFillLivestreamResponses(t *testing.T) {
	t.Run("tags are grouped per livestream", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)

		expectUserEnrichment(mock, []int64{1, 2}, user(1, "alice"), user(2, "bob"))
		expectTags(mock, []int64{10, 11, 12},
			database.LivestreamTagRow{LivestreamId: 10, TagId: 1, TagName: "ライブ配信"},
			database.LivestreamTagRow{LivestreamId: 10, TagId: 3, TagName: "生放送"},
			database.LivestreamTagRow{LivestreamId: 12, TagId: 2, TagName: "ゲーム実況"},
		)

		input := []database.LivestreamRow{livestream(10, 1), livestream(11, 2), livestream(12, 1)}
		res, err := FillLivestreamResponses(context.Background(), db, input, StaticFallbackIcon(fallbackImage))
		require.NoError(t, err)
		require.Len(t, res, 3)

		assert.Equal(t, []types.Tag{{Id: 1, Name: "ライブ配信"}, {Id: 3, Name: "生放送"}}, res[0].Tags)
		assert.NotNil(t, res[1].Tags)
		assert.Empty(t, res[1].Tags, "expected livestream without tags to get an empty list")
		assert.Equal(t, []types.Tag{{Id: 2, Name: "ゲーム実況"}}, res[2].Tags)

		assert.Equal(t, "alice", res[0].Owner.Name)
		assert.Equal(t, "bob", res[1].Owner.Name)
		assert.Equal(t, res[0].Owner, res[2].Owner)

		body, err := json.Marshal(res[1])
		require.NoError(t, err)
		assert.Contains(t, string(body), `"tags":[]`)
	})

	t.Run("missing owner fails the whole batch", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		expectUsers(mock, []int64{1, 2}, user(1, "alice"))

		res, err := FillLivestreamResponses(context.Background(), db,
			[]database.LivestreamRow{livestream(10, 1), livestream(11, 2)}, StaticFallbackIcon(fallbackImage))
		assert.Nil(t, res)
		require.Error(t, err)

		var ie *IntegrityError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, "user", ie.Entity)
		assert.Equal(t, []int64{2}, ie.Ids)
	})

	t.Run("enriching twice yields identical output", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		for range 2 {
			expectUserEnrichment(mock, []int64{1}, user(1, "alice"))
			expectTags(mock, []int64{10}, database.LivestreamTagRow{LivestreamId: 10, TagId: 5, TagName: "初心者歓迎"})
		}

		first, err := FillLivestreamResponse(context.Background(), db, livestream(10, 1), StaticFallbackIcon(fallbackImage))
		require.NoError(t, err)
		second, err := FillLivestreamResponse(context.Background(), db, livestream(10, 1), StaticFallbackIcon(fallbackImage))
		require.NoError(t, err)

		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		assert.Equal(t, string(a), string(b))
	})
}

func TestFillLivecommentResponses(t *testing.T) {
	t.Run("shared authors and livestreams are fetched once", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)

		expectUserEnrichment(mock, []int64{3, 4}, user(3, "carol"), user(4, "dave"))
		expectLivestreams(mock, []int64{10}, livestream(10, 1))
		expectUserEnrichment(mock, []int64{1}, user(1, "alice"))
		expectTags(mock, []int64{10})

		input := []database.LivecommentRow{
			{Id: 100, UserId: 3, LivestreamId: 10, Comment: "hello", Tip: 0, CreatedAt: 1},
			{Id: 101, UserId: 4, LivestreamId: 10, Comment: "nice", Tip: 500, CreatedAt: 2},
			{Id: 102, UserId: 3, LivestreamId: 10, Comment: "again", Tip: 10, CreatedAt: 3},
		}
		res, err := FillLivecommentResponses(context.Background(), db, input, StaticFallbackIcon(fallbackImage))
		require.NoError(t, err)
		require.Len(t, res, 3)

		assert.Equal(t, "carol", res[0].User.Name)
		assert.Equal(t, "dave", res[1].User.Name)
		assert.Equal(t, int64(500), res[1].Tip)
		assert.Equal(t, "again", res[2].Comment)
		assert.Equal(t, "alice", res[2].Livestream.Owner.Name)
		assert.Equal(t, res[0].Livestream, res[1].Livestream)
	})

	t.Run("missing livestream", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		expectUserEnrichment(mock, []int64{3}, user(3, "carol"))
		expectLivestreams(mock, []int64{10})

		_, err := FillLivecommentResponse(context.Background(), db,
			database.LivecommentRow{Id: 100, UserId: 3, LivestreamId: 10}, StaticFallbackIcon(fallbackImage))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrIntegrity))
		assert.Contains(t, err.Error(), "livestream")
	})
}

func TestFillReactionResponses(t *testing.T) {
	db, mock := testutil.NewMockDB(t)

	expectUserEnrichment(mock, []int64{3}, user(3, "carol"))
	expectLivestreams(mock, []int64{10, 11}, livestream(10, 1), livestream(11, 1))
	expectUserEnrichment(mock, []int64{1}, user(1, "alice"))
	expectTags(mock, []int64{10, 11})

	input := []database.ReactionRow{
		{Id: 1, UserId: 3, LivestreamId: 10, EmojiName: "innocent", CreatedAt: 5},
		{Id: 2, UserId: 3, LivestreamId: 11, EmojiName: "not-an-emoji 💥", CreatedAt: 6},
	}
	res, err := FillReactionResponses(context.Background(), db, input, StaticFallbackIcon(fallbackImage))
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, "innocent", res[0].EmojiName)
	assert.Equal(t, "not-an-emoji 💥", res[1].EmojiName)
	assert.Equal(t, int64(10), res[0].Livestream.Id)
	assert.Equal(t, int64(11), res[1].Livestream.Id)
	assert.Equal(t, res[0].User, res[1].User)

	empty, err := FillReactionResponses(context.Background(), db, nil, StaticFallbackIcon(fallbackImage))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFillLivecommentReportResponses(t *testing.T) {
	t.Run("two reporters share the nested livecomment", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)

		expectUserEnrichment(mock, []int64{5, 6}, user(5, "erin"), user(6, "frank"))
		mock.ExpectQuery(regexp.QuoteMeta("FROM livecomments WHERE id = ANY($1)")).
			WithArgs(pq.Array([]int64{100})).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "livestream_id", "comment", "tip", "created_at"}).
				AddRow(100, 3, 10, "spam", 0, 42))
		expectUserEnrichment(mock, []int64{3}, user(3, "carol"))
		expectLivestreams(mock, []int64{10}, livestream(10, 1))
		expectUserEnrichment(mock, []int64{1}, user(1, "alice"))
		expectTags(mock, []int64{10})

		input := []database.LivecommentReportRow{
			{Id: 1, UserId: 5, LivestreamId: 10, LivecommentId: 100, CreatedAt: 50},
			{Id: 2, UserId: 6, LivestreamId: 10, LivecommentId: 100, CreatedAt: 51},
		}
		res, err := FillLivecommentReportResponses(context.Background(), db, input, StaticFallbackIcon(fallbackImage))
		require.NoError(t, err)
		require.Len(t, res, 2)

		assert.NotEqual(t, res[0].Id, res[1].Id)
		assert.Equal(t, "erin", res[0].Reporter.Name)
		assert.Equal(t, "frank", res[1].Reporter.Name)

		a, _ := json.Marshal(res[0].Livecomment)
		b, _ := json.Marshal(res[1].Livecomment)
		assert.Equal(t, string(a), string(b))
		assert.Equal(t, "carol", res[0].Livecomment.User.Name)
		assert.Equal(t, "alice", res[0].Livecomment.Livestream.Owner.Name)
	})

	t.Run("missing livecomment", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		expectUserEnrichment(mock, []int64{5}, user(5, "erin"))
		mock.ExpectQuery(regexp.QuoteMeta("FROM livecomments WHERE id = ANY($1)")).
			WithArgs(pq.Array([]int64{100})).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "livestream_id", "comment", "tip", "created_at"}))

		_, err := FillLivecommentReportResponse(context.Background(), db,
			database.LivecommentReportRow{Id: 1, UserId: 5, LivestreamId: 10, LivecommentId: 100}, StaticFallbackIcon(fallbackImage))
		require.Error(t, err)

		var ie *IntegrityError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, "livecomment", ie.Entity)
	})
}
