package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Scores are the number of reactions plus the total tips received across all
// of a user's livestreams. Ties are broken by name, descending.
const userRankQuery = `
	SELECT user_rank FROM (
		SELECT
			u.name,
			RANK() OVER (ORDER BY COALESCE(r.cnt, 0) + COALESCE(t.tips, 0) DESC, u.name DESC) AS user_rank
		FROM users u
		LEFT JOIN (
			SELECT l.user_id, COUNT(*) AS cnt
			FROM reactions r
			INNER JOIN livestreams l ON l.id = r.livestream_id
			GROUP BY l.user_id
		) r ON r.user_id = u.id
		LEFT JOIN (
			SELECT l.user_id, SUM(lc.tip) AS tips
			FROM livecomments lc
			INNER JOIN livestreams l ON l.id = lc.livestream_id
			GROUP BY l.user_id
		) t ON t.user_id = u.id
	) ranking
	WHERE name = $1`

const livestreamRankQuery = `
	SELECT livestream_rank FROM (
		SELECT
			l.id,
			RANK() OVER (ORDER BY COALESCE(r.cnt, 0) + COALESCE(t.tips, 0) DESC) AS livestream_rank
		FROM livestreams l
		LEFT JOIN (
			SELECT livestream_id, COUNT(*) AS cnt FROM reactions GROUP BY livestream_id
		) r ON r.livestream_id = l.id
		LEFT JOIN (
			SELECT livestream_id, SUM(tip) AS tips FROM livecomments GROUP BY livestream_id
		) t ON t.livestream_id = l.id
	) ranking
	WHERE id = $1`

func GetUserRank(ctx context.Context, q Queryer, username string) (int64, error) {
	var rank int64
	err := sqlx.GetContext(ctx, q, &rank, userRankQuery, username)
	return rank, err
}

func CountUserReactions(ctx context.Context, q Queryer, userId int64) (int64, error) {
	return count(ctx, q,
		"SELECT COUNT(*) FROM livestreams l INNER JOIN reactions r ON r.livestream_id = l.id WHERE l.user_id = $1",
		userId,
	)
}

func CountUserLivecomments(ctx context.Context, q Queryer, userId int64) (int64, error) {
	return count(ctx, q,
		"SELECT COUNT(*) FROM livestreams l INNER JOIN livecomments lc ON lc.livestream_id = l.id WHERE l.user_id = $1",
		userId,
	)
}

func SumUserTips(ctx context.Context, q Queryer, userId int64) (int64, error) {
	return count(ctx, q,
		"SELECT COALESCE(SUM(lc.tip), 0)::BIGINT FROM livestreams l INNER JOIN livecomments lc ON lc.livestream_id = l.id WHERE l.user_id = $1",
		userId,
	)
}

func CountUserViewers(ctx context.Context, q Queryer, userId int64) (int64, error) {
	return count(ctx, q,
		"SELECT COUNT(*) FROM livestreams l INNER JOIN livestream_viewers_history h ON h.livestream_id = l.id WHERE l.user_id = $1",
		userId,
	)
}

// GetUserFavoriteEmoji returns nil when nobody has reacted to the user's
// livestreams yet.
func GetUserFavoriteEmoji(ctx context.Context, q Queryer, userId int64) (*string, error) {
	var emoji string
	err := sqlx.GetContext(ctx, q, &emoji, `
		SELECT r.emoji_name
		FROM livestreams l
		INNER JOIN reactions r ON r.livestream_id = l.id
		WHERE l.user_id = $1
		GROUP BY r.emoji_name
		ORDER BY COUNT(*) DESC, r.emoji_name DESC
		LIMIT 1`,
		userId,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &emoji, nil
}

func GetLivestreamRank(ctx context.Context, q Queryer, livestreamId int64) (int64, error) {
	var rank int64
	err := sqlx.GetContext(ctx, q, &rank, livestreamRankQuery, livestreamId)
	return rank, err
}

func CountLivestreamViewers(ctx context.Context, q Queryer, livestreamId int64) (int64, error) {
	return count(ctx, q,
		"SELECT COUNT(*) FROM livestream_viewers_history WHERE livestream_id = $1",
		livestreamId,
	)
}

func GetLivestreamMaxTip(ctx context.Context, q Queryer, livestreamId int64) (int64, error) {
	return count(ctx, q,
		"SELECT COALESCE(MAX(tip), 0) FROM livecomments WHERE livestream_id = $1",
		livestreamId,
	)
}

func CountLivestreamReactions(ctx context.Context, q Queryer, livestreamId int64) (int64, error) {
	return count(ctx, q,
		"SELECT COUNT(*) FROM reactions WHERE livestream_id = $1",
		livestreamId,
	)
}

func CountLivestreamReports(ctx context.Context, q Queryer, livestreamId int64) (int64, error) {
	return count(ctx, q,
		"SELECT COUNT(*) FROM livecomment_reports WHERE livestream_id = $1",
		livestreamId,
	)
}

func count(ctx context.Context, q Queryer, query string, args ...any) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, q, &n, query, args...)
	return n, err
}
