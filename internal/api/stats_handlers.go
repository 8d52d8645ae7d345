package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/npezzotti/isupipe/internal/database"
	"github.com/npezzotti/isupipe/internal/types"
	"golang.org/x/sync/errgroup"
)

// getUserStatistics computes the aggregates of a streamer. They are
// independent reads, so each runs on its own pooled connection.
func (s *App) getUserStatistics(w http.ResponseWriter, r *http.Request) {
	db := s.store.DB()

	user, err := database.GetUserByName(r.Context(), db, r.PathValue("username"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, r, NewNotFoundError().WithMessage("not found user that has the given username"))
			return
		}
		s.writeError(w, r, fmt.Errorf("get user: %w", err))
		return
	}

	var st types.UserStatistics
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		st.Rank, err = database.GetUserRank(ctx, db, user.Name)
		return wrap("get user rank", err)
	})
	g.Go(func() (err error) {
		st.ViewersCount, err = database.CountUserViewers(ctx, db, user.Id)
		return wrap("count viewers", err)
	})
	g.Go(func() (err error) {
		st.TotalReactions, err = database.CountUserReactions(ctx, db, user.Id)
		return wrap("count reactions", err)
	})
	g.Go(func() (err error) {
		st.TotalLivecomments, err = database.CountUserLivecomments(ctx, db, user.Id)
		return wrap("count livecomments", err)
	})
	g.Go(func() (err error) {
		st.TotalTip, err = database.SumUserTips(ctx, db, user.Id)
		return wrap("sum tips", err)
	})
	g.Go(func() (err error) {
		st.FavoriteEmoji, err = database.GetUserFavoriteEmoji(ctx, db, user.Id)
		return wrap("get favorite emoji", err)
	})
	if err := g.Wait(); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, st)
}

func (s *App) getLivestreamStatistics(w http.ResponseWriter, r *http.Request) {
	livestreamId, err := pathInt64(r, "livestream_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	db := s.store.DB()

	if _, err := database.GetLivestreamById(r.Context(), db, livestreamId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, r, NewNotFoundError().WithMessage("cannot get stats of not found livestream"))
			return
		}
		s.writeError(w, r, fmt.Errorf("get livestream: %w", err))
		return
	}

	var st types.LivestreamStatistics
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		st.Rank, err = database.GetLivestreamRank(ctx, db, livestreamId)
		return wrap("get livestream rank", err)
	})
	g.Go(func() (err error) {
		st.ViewersCount, err = database.CountLivestreamViewers(ctx, db, livestreamId)
		return wrap("count viewers", err)
	})
	g.Go(func() (err error) {
		st.MaxTip, err = database.GetLivestreamMaxTip(ctx, db, livestreamId)
		return wrap("get max tip", err)
	})
	g.Go(func() (err error) {
		st.TotalReactions, err = database.CountLivestreamReactions(ctx, db, livestreamId)
		return wrap("count reactions", err)
	})
	g.Go(func() (err error) {
		st.TotalReports, err = database.CountLivestreamReports(ctx, db, livestreamId)
		return wrap("count reports", err)
	})
	if err := g.Wait(); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, st)
}

func wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
