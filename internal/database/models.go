package database

type UserRow struct {
	Id             int64  `db:"id"`
	Name           string `db:"name"`
	DisplayName    string `db:"display_name"`
	Description    string `db:"description"`
	HashedPassword string `db:"password"`
}

type ThemeRow struct {
	Id       int64 `db:"id"`
	UserId   int64 `db:"user_id"`
	DarkMode bool  `db:"dark_mode"`
}

type IconRow struct {
	Id     int64  `db:"id"`
	UserId int64  `db:"user_id"`
	Image  []byte `db:"image"`
}

type TagRow struct {
	Id   int64  `db:"id"`
	Name string `db:"name"`
}

// LivestreamTagRow is a tag joined with the livestream it belongs to.
type LivestreamTagRow struct {
	LivestreamId int64  `db:"livestream_id"`
	TagId        int64  `db:"tag_id"`
	TagName      string `db:"tag_name"`
}

type LivestreamRow struct {
	Id           int64  `db:"id"`
	UserId       int64  `db:"user_id"`
	Title        string `db:"title"`
	Description  string `db:"description"`
	PlaylistUrl  string `db:"playlist_url"`
	ThumbnailUrl string `db:"thumbnail_url"`
	StartAt      int64  `db:"start_at"`
	EndAt        int64  `db:"end_at"`
}

type ReservationSlotRow struct {
	Id      int64 `db:"id"`
	Slot    int64 `db:"slot"`
	StartAt int64 `db:"start_at"`
	EndAt   int64 `db:"end_at"`
}

type LivecommentRow struct {
	Id           int64  `db:"id"`
	UserId       int64  `db:"user_id"`
	LivestreamId int64  `db:"livestream_id"`
	Comment      string `db:"comment"`
	Tip          int64  `db:"tip"`
	CreatedAt    int64  `db:"created_at"`
}

type ReactionRow struct {
	Id           int64  `db:"id"`
	UserId       int64  `db:"user_id"`
	LivestreamId int64  `db:"livestream_id"`
	EmojiName    string `db:"emoji_name"`
	CreatedAt    int64  `db:"created_at"`
}

type LivecommentReportRow struct {
	Id            int64 `db:"id"`
	UserId        int64 `db:"user_id"`
	LivestreamId  int64 `db:"livestream_id"`
	LivecommentId int64 `db:"livecomment_id"`
	CreatedAt     int64 `db:"created_at"`
}

type CreateUserParams struct {
	Name           string
	DisplayName    string
	Description    string
	HashedPassword string
	DarkMode       bool
}

type CreateLivestreamParams struct {
	UserId       int64
	Title        string
	Description  string
	PlaylistUrl  string
	ThumbnailUrl string
	StartAt      int64
	EndAt        int64
}

type CreateLivecommentParams struct {
	UserId       int64
	LivestreamId int64
	Comment      string
	Tip          int64
	CreatedAt    int64
}

type CreateReactionParams struct {
	UserId       int64
	LivestreamId int64
	EmojiName    string
	CreatedAt    int64
}

type CreateReportParams struct {
	UserId        int64
	LivestreamId  int64
	LivecommentId int64
	CreatedAt     int64
}

// LivestreamTagParams is one row of the livestream_tags bulk insert.
type LivestreamTagParams struct {
	LivestreamId int64 `db:"livestream_id"`
	TagId        int64 `db:"tag_id"`
}
