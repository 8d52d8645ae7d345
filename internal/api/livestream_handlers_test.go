package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/npezzotti/isupipe/internal/reservation"
	"github.com/npezzotti/isupipe/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveLivestream(t *testing.T) {
	const hour = int64(3600)
	startAt := reservation.TermStartAt + hour
	endAt := startAt + hour

	req := reservation.ReserveRequest{
		Tags:         []int64{2},
		Title:        "evening stream",
		Description:  "chatting",
		PlaylistUrl:  "https://media.example.com/2/playlist.m3u8",
		ThumbnailUrl: "https://media.example.com/2/thumbnail.jpg",
		StartAt:      startAt,
		EndAt:        endAt,
	}

	t.Run("reserves the slot", func(t *testing.T) {
		app, mock := newTestApp(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM reservation_slots WHERE start_at < $2 AND end_at > $1")).
			WithArgs(startAt, endAt).
			WillReturnRows(sqlmock.NewRows([]string{"id", "slot", "start_at", "end_at"}).AddRow(1, 3, startAt, endAt))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE reservation_slots SET slot = slot - 1")).
			WithArgs(startAt, endAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO livestreams")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO livestream_tags")).
			WithArgs(42, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectUsersByIds(mock, userRow(7, "alice"))
		mock.ExpectQuery(regexp.QuoteMeta("WHERE lt.livestream_id = ANY($1)")).
			WithArgs(pq.Array([]int64{42})).
			WillReturnRows(sqlmock.NewRows([]string{"livestream_id", "tag_id", "tag_name"}).AddRow(42, 2, "ゲーム実況"))
		mock.ExpectCommit()

		rr := serve(app, authedRequest(t, http.MethodPost, "/api/livestream/reservation", req, 7))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var livestream types.Livestream
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&livestream))
		assert.Equal(t, int64(42), livestream.Id)
		assert.Equal(t, "alice", livestream.Owner.Name)
		assert.Equal(t, []types.Tag{{Id: 2, Name: "ゲーム実況"}}, livestream.Tags)
	})

	t.Run("outside the term", func(t *testing.T) {
		app, mock := newTestApp(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		bad := req
		bad.StartAt = reservation.TermEndAt
		bad.EndAt = reservation.TermEndAt + hour

		rr := serve(app, authedRequest(t, http.MethodPost, "/api/livestream/reservation", bad, 7))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "bad reservation time range", decodeApiError(t, rr).Message)
	})

	t.Run("slot exhausted", func(t *testing.T) {
		app, mock := newTestApp(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM reservation_slots")).
			WithArgs(startAt, endAt).
			WillReturnRows(sqlmock.NewRows([]string{"id", "slot", "start_at", "end_at"}).AddRow(1, 0, startAt, endAt))
		mock.ExpectRollback()

		rr := serve(app, authedRequest(t, http.MethodPost, "/api/livestream/reservation", req, 7))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, reservation.ErrSlotExhausted.Error(), decodeApiError(t, rr).Message)
	})

	t.Run("requires a session", func(t *testing.T) {
		app, _ := newTestApp(t)

		rr := serve(app, httptest.NewRequest(http.MethodPost, "/api/livestream/reservation", nil))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestSearchLivestreams(t *testing.T) {
	t.Run("by tag", func(t *testing.T) {
		app, mock := newTestApp(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE t.name = $1")).
			WithArgs("ゲーム実況").
			WillReturnRows(livestreamRows(livestreamRow(3, 7), livestreamRow(1, 7)))
		expectLivestreamEnrichment(mock, userRow(7, "alice"), 3, 1)
		mock.ExpectCommit()

		rr := serve(app, httptest.NewRequest(http.MethodGet, "/api/livestream/search?tag=%E3%82%B2%E3%83%BC%E3%83%A0%E5%AE%9F%E6%B3%81", nil))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var livestreams []types.Livestream
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&livestreams))
		require.Len(t, livestreams, 2)
		assert.Equal(t, int64(3), livestreams[0].Id)
		assert.Equal(t, int64(1), livestreams[1].Id)
		assert.Equal(t, []types.Tag{}, livestreams[0].Tags)
	})

	t.Run("newest with limit", func(t *testing.T) {
		app, mock := newTestApp(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM livestreams ORDER BY id DESC LIMIT $1")).
			WithArgs(1).
			WillReturnRows(livestreamRows(livestreamRow(5, 7)))
		expectLivestreamEnrichment(mock, userRow(7, "alice"), 5)
		mock.ExpectCommit()

		rr := serve(app, httptest.NewRequest(http.MethodGet, "/api/livestream/search?limit=1", nil))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	})

	t.Run("empty result", func(t *testing.T) {
		app, mock := newTestApp(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE t.name = $1")).
			WithArgs("none").
			WillReturnRows(livestreamRows())
		mock.ExpectCommit()

		rr := serve(app, httptest.NewRequest(http.MethodGet, "/api/livestream/search?tag=none", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	t.Run("bad limit", func(t *testing.T) {
		app, _ := newTestApp(t)

		rr := serve(app, httptest.NewRequest(http.MethodGet, "/api/livestream/search?limit=ten", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetUserLivestreams_UnknownUser(t *testing.T) {
	app, mock := newTestApp(t)

	mock.ExpectBegin()
	expectUserByName(mock, "nobody")
	mock.ExpectRollback()

	rr := serve(app, authedRequest(t, http.MethodGet, "/api/user/nobody/livestream", nil, 7))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetLivestream(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		app, mock := newTestApp(t)

		mock.ExpectBegin()
		expectLivestreamById(mock, 10, livestreamRow(10, 2))
		expectLivestreamEnrichment(mock, userRow(2, "bob"), 10)
		mock.ExpectCommit()

		rr := serve(app, authedRequest(t, http.MethodGet, "/api/livestream/10", nil, 7))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var livestream types.Livestream
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&livestream))
		assert.Equal(t, "bob", livestream.Owner.Name)
	})

	t.Run("not found", func(t *testing.T) {
		app, mock := newTestApp(t)

		mock.ExpectBegin()
		expectLivestreamById(mock, 10)
		mock.ExpectRollback()

		rr := serve(app, authedRequest(t, http.MethodGet, "/api/livestream/10", nil, 7))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "not found livestream that has the given id", decodeApiError(t, rr).Message)
	})
}

func TestEnterAndExitLivestream(t *testing.T) {
	app, mock := newTestApp(t)

	expectLivestreamById(mock, 10, livestreamRow(10, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO livestream_viewers_history")).
		WithArgs(7, 10, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM livestream_viewers_history")).
		WithArgs(7, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rr := serve(app, authedRequest(t, http.MethodPost, "/api/livestream/10/enter", nil, 7))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(app, authedRequest(t, http.MethodDelete, "/api/livestream/10/exit", nil, 7))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestEnterLivestream_NotFound(t *testing.T) {
	app, mock := newTestApp(t)
	expectLivestreamById(mock, 404)

	rr := serve(app, authedRequest(t, http.MethodPost, "/api/livestream/404/enter", nil, 7))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not found livestream that has the given id", decodeApiError(t, rr).Message)
}

func TestGetLivecommentReports(t *testing.T) {
	t.Run("other streamer", func(t *testing.T) {
		app, mock := newTestApp(t)

		mock.ExpectBegin()
		expectLivestreamById(mock, 10, livestreamRow(10, 2))
		mock.ExpectRollback()

		rr := serve(app, authedRequest(t, http.MethodGet, "/api/livestream/10/report", nil, 7))
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "can't get other streamer's livecomment reports", decodeApiError(t, rr).Message)
	})

	t.Run("owner without reports", func(t *testing.T) {
		app, mock := newTestApp(t)

		mock.ExpectBegin()
		expectLivestreamById(mock, 10, livestreamRow(10, 7))
		mock.ExpectQuery(regexp.QuoteMeta("FROM livecomment_reports WHERE livestream_id = $1")).
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "livestream_id", "livecomment_id", "created_at"}))
		mock.ExpectCommit()

		rr := serve(app, authedRequest(t, http.MethodGet, "/api/livestream/10/report", nil, 7))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})
}
