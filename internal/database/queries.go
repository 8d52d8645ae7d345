package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	userColumns        = "id, name, display_name, description, password"
	livestreamColumns  = "id, user_id, title, description, playlist_url, thumbnail_url, start_at, end_at"
	livecommentColumns = "id, user_id, livestream_id, comment, tip, created_at"
	reactionColumns    = "id, user_id, livestream_id, emoji_name, created_at"
	reportColumns      = "id, user_id, livestream_id, livecomment_id, created_at"
)

func GetUserById(ctx context.Context, q Queryer, id int64) (UserRow, error) {
	var u UserRow
	err := sqlx.GetContext(ctx, q, &u, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return u, err
}

func GetUserByName(ctx context.Context, q Queryer, name string) (UserRow, error) {
	var u UserRow
	err := sqlx.GetContext(ctx, q, &u, "SELECT "+userColumns+" FROM users WHERE name = $1", name)
	return u, err
}

func GetUsersByIds(ctx context.Context, q Queryer, ids []int64) ([]UserRow, error) {
	users := make([]UserRow, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	err := sqlx.SelectContext(ctx, q, &users,
		"SELECT "+userColumns+" FROM users WHERE id = ANY($1)",
		pq.Array(ids),
	)
	return users, err
}

// CreateUser inserts the user together with its theme row.
func CreateUser(ctx context.Context, q Queryer, params CreateUserParams) (UserRow, error) {
	u := UserRow{
		Name:           params.Name,
		DisplayName:    params.DisplayName,
		Description:    params.Description,
		HashedPassword: params.HashedPassword,
	}

	err := sqlx.GetContext(ctx, q, &u.Id,
		"INSERT INTO users (name, display_name, description, password) "+
			"VALUES ($1, $2, $3, $4) RETURNING id",
		params.Name,
		params.DisplayName,
		params.Description,
		params.HashedPassword,
	)
	if err != nil {
		return UserRow{}, fmt.Errorf("insert user: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		"INSERT INTO themes (user_id, dark_mode) VALUES ($1, $2)",
		u.Id,
		params.DarkMode,
	); err != nil {
		return UserRow{}, fmt.Errorf("insert theme: %w", err)
	}

	return u, nil
}

func GetThemesByUserIds(ctx context.Context, q Queryer, userIds []int64) ([]ThemeRow, error) {
	themes := make([]ThemeRow, 0, len(userIds))
	err := sqlx.SelectContext(ctx, q, &themes,
		"SELECT id, user_id, dark_mode FROM themes WHERE user_id = ANY($1)",
		pq.Array(userIds),
	)
	return themes, err
}

func GetIconsByUserIds(ctx context.Context, q Queryer, userIds []int64) ([]IconRow, error) {
	icons := make([]IconRow, 0, len(userIds))
	err := sqlx.SelectContext(ctx, q, &icons,
		"SELECT id, user_id, image FROM icons WHERE user_id = ANY($1)",
		pq.Array(userIds),
	)
	return icons, err
}

func GetIconImage(ctx context.Context, q Queryer, userId int64) ([]byte, error) {
	var image []byte
	err := sqlx.GetContext(ctx, q, &image, "SELECT image FROM icons WHERE user_id = $1", userId)
	return image, err
}

// ReplaceIcon stores image as the user's only icon.
func ReplaceIcon(ctx context.Context, q Queryer, userId int64, image []byte) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id, `
		INSERT INTO icons (user_id, image) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET image = EXCLUDED.image
		RETURNING id`,
		userId,
		image,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert icon: %w", err)
	}

	return id, nil
}

func ListTags(ctx context.Context, q Queryer) ([]TagRow, error) {
	tags := make([]TagRow, 0)
	err := sqlx.SelectContext(ctx, q, &tags, "SELECT id, name FROM tags ORDER BY id")
	return tags, err
}

func GetLivestreamById(ctx context.Context, q Queryer, id int64) (LivestreamRow, error) {
	var l LivestreamRow
	err := sqlx.GetContext(ctx, q, &l, "SELECT "+livestreamColumns+" FROM livestreams WHERE id = $1", id)
	return l, err
}

func GetLivestreamsByIds(ctx context.Context, q Queryer, ids []int64) ([]LivestreamRow, error) {
	livestreams := make([]LivestreamRow, 0, len(ids))
	if len(ids) == 0 {
		return livestreams, nil
	}

	err := sqlx.SelectContext(ctx, q, &livestreams,
		"SELECT "+livestreamColumns+" FROM livestreams WHERE id = ANY($1)",
		pq.Array(ids),
	)
	return livestreams, err
}

// ListLivestreams returns the newest livestreams first. A limit <= 0 means no limit.
func ListLivestreams(ctx context.Context, q Queryer, limit int) ([]LivestreamRow, error) {
	livestreams := make([]LivestreamRow, 0)
	if limit > 0 {
		err := sqlx.SelectContext(ctx, q, &livestreams,
			"SELECT "+livestreamColumns+" FROM livestreams ORDER BY id DESC LIMIT $1",
			limit,
		)
		return livestreams, err
	}

	err := sqlx.SelectContext(ctx, q, &livestreams,
		"SELECT "+livestreamColumns+" FROM livestreams ORDER BY id DESC",
	)
	return livestreams, err
}

func SearchLivestreamsByTag(ctx context.Context, q Queryer, tagName string) ([]LivestreamRow, error) {
	livestreams := make([]LivestreamRow, 0)
	err := sqlx.SelectContext(ctx, q, &livestreams, `
		SELECT
			l.id, l.user_id, l.title, l.description, l.playlist_url,
			l.thumbnail_url, l.start_at, l.end_at
		FROM tags t
		JOIN livestream_tags lt ON lt.tag_id = t.id
		JOIN livestreams l ON l.id = lt.livestream_id
		WHERE t.name = $1
		ORDER BY l.id DESC`,
		tagName,
	)
	return livestreams, err
}

func ListLivestreamsByUserId(ctx context.Context, q Queryer, userId int64) ([]LivestreamRow, error) {
	livestreams := make([]LivestreamRow, 0)
	err := sqlx.SelectContext(ctx, q, &livestreams,
		"SELECT "+livestreamColumns+" FROM livestreams WHERE user_id = $1 ORDER BY id",
		userId,
	)
	return livestreams, err
}

// GetTagsByLivestreamIds returns the tags of every given livestream in a
// single round trip, ordered by livestream and tag id.
func GetTagsByLivestreamIds(ctx context.Context, q Queryer, livestreamIds []int64) ([]LivestreamTagRow, error) {
	tags := make([]LivestreamTagRow, 0)
	err := sqlx.SelectContext(ctx, q, &tags, `
		SELECT lt.livestream_id, t.id AS tag_id, t.name AS tag_name
		FROM livestream_tags lt
		INNER JOIN tags t ON t.id = lt.tag_id
		WHERE lt.livestream_id = ANY($1)
		ORDER BY lt.livestream_id, t.id`,
		pq.Array(livestreamIds),
	)
	return tags, err
}

func CreateLivestream(ctx context.Context, q Queryer, params CreateLivestreamParams) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id,
		"INSERT INTO livestreams (user_id, title, description, playlist_url, thumbnail_url, start_at, end_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id",
		params.UserId,
		params.Title,
		params.Description,
		params.PlaylistUrl,
		params.ThumbnailUrl,
		params.StartAt,
		params.EndAt,
	)
	return id, err
}

// InsertLivestreamTags writes all associations with one multi-row insert.
func InsertLivestreamTags(ctx context.Context, q Queryer, rows []LivestreamTagParams) error {
	if len(rows) == 0 {
		return nil
	}

	_, err := sqlx.NamedExecContext(ctx, q,
		"INSERT INTO livestream_tags (livestream_id, tag_id) VALUES (:livestream_id, :tag_id)",
		rows,
	)
	return err
}

// LockReservationSlots selects every slot overlapping [startAt, endAt) with
// FOR UPDATE, so concurrent reservations over the same range serialize.
func LockReservationSlots(ctx context.Context, q Queryer, startAt, endAt int64) ([]ReservationSlotRow, error) {
	slots := make([]ReservationSlotRow, 0)
	err := sqlx.SelectContext(ctx, q, &slots,
		"SELECT id, slot, start_at, end_at FROM reservation_slots "+
			"WHERE start_at < $2 AND end_at > $1 ORDER BY start_at FOR UPDATE",
		startAt,
		endAt,
	)
	return slots, err
}

func DecrementReservationSlots(ctx context.Context, q Queryer, startAt, endAt int64) (int64, error) {
	res, err := q.ExecContext(ctx,
		"UPDATE reservation_slots SET slot = slot - 1 WHERE start_at >= $1 AND end_at <= $2",
		startAt,
		endAt,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func GetLivecommentById(ctx context.Context, q Queryer, id int64) (LivecommentRow, error) {
	var lc LivecommentRow
	err := sqlx.GetContext(ctx, q, &lc, "SELECT "+livecommentColumns+" FROM livecomments WHERE id = $1", id)
	return lc, err
}

func GetLivecommentsByIds(ctx context.Context, q Queryer, ids []int64) ([]LivecommentRow, error) {
	livecomments := make([]LivecommentRow, 0, len(ids))
	if len(ids) == 0 {
		return livecomments, nil
	}

	err := sqlx.SelectContext(ctx, q, &livecomments,
		"SELECT "+livecommentColumns+" FROM livecomments WHERE id = ANY($1)",
		pq.Array(ids),
	)
	return livecomments, err
}

// ListLivecomments returns the comments of a livestream newest first. A limit
// <= 0 means no limit.
func ListLivecomments(ctx context.Context, q Queryer, livestreamId int64, limit int) ([]LivecommentRow, error) {
	livecomments := make([]LivecommentRow, 0)
	query := "SELECT " + livecommentColumns + " FROM livecomments WHERE livestream_id = $1 ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		err := sqlx.SelectContext(ctx, q, &livecomments, query+" LIMIT $2", livestreamId, limit)
		return livecomments, err
	}

	err := sqlx.SelectContext(ctx, q, &livecomments, query, livestreamId)
	return livecomments, err
}

func CreateLivecomment(ctx context.Context, q Queryer, params CreateLivecommentParams) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id,
		"INSERT INTO livecomments (user_id, livestream_id, comment, tip, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id",
		params.UserId,
		params.LivestreamId,
		params.Comment,
		params.Tip,
		params.CreatedAt,
	)
	return id, err
}

func ListReactions(ctx context.Context, q Queryer, livestreamId int64, limit int) ([]ReactionRow, error) {
	reactions := make([]ReactionRow, 0)
	query := "SELECT " + reactionColumns + " FROM reactions WHERE livestream_id = $1 ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		err := sqlx.SelectContext(ctx, q, &reactions, query+" LIMIT $2", livestreamId, limit)
		return reactions, err
	}

	err := sqlx.SelectContext(ctx, q, &reactions, query, livestreamId)
	return reactions, err
}

func CreateReaction(ctx context.Context, q Queryer, params CreateReactionParams) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id,
		"INSERT INTO reactions (user_id, livestream_id, emoji_name, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id",
		params.UserId,
		params.LivestreamId,
		params.EmojiName,
		params.CreatedAt,
	)
	return id, err
}

func ListLivecommentReports(ctx context.Context, q Queryer, livestreamId int64) ([]LivecommentReportRow, error) {
	reports := make([]LivecommentReportRow, 0)
	err := sqlx.SelectContext(ctx, q, &reports,
		"SELECT "+reportColumns+" FROM livecomment_reports WHERE livestream_id = $1 ORDER BY id",
		livestreamId,
	)
	return reports, err
}

func CreateLivecommentReport(ctx context.Context, q Queryer, params CreateReportParams) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id,
		"INSERT INTO livecomment_reports (user_id, livestream_id, livecomment_id, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id",
		params.UserId,
		params.LivestreamId,
		params.LivecommentId,
		params.CreatedAt,
	)
	return id, err
}

func CreateViewerHistory(ctx context.Context, q Queryer, userId, livestreamId, createdAt int64) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO livestream_viewers_history (user_id, livestream_id, created_at) VALUES ($1, $2, $3)",
		userId,
		livestreamId,
		createdAt,
	)
	return err
}

func DeleteViewerHistory(ctx context.Context, q Queryer, userId, livestreamId int64) error {
	_, err := q.ExecContext(ctx,
		"DELETE FROM livestream_viewers_history WHERE user_id = $1 AND livestream_id = $2",
		userId,
		livestreamId,
	)
	return err
}
