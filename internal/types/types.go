package types

type Theme struct {
	Id       int64 `json:"id"`
	DarkMode bool  `json:"dark_mode"`
}

type User struct {
	Id          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Theme       Theme  `json:"theme"`
	IconHash    string `json:"icon_hash"`
}

type Tag struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
}

type Livestream struct {
	Id           int64  `json:"id"`
	Owner        User   `json:"owner"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	PlaylistUrl  string `json:"playlist_url"`
	ThumbnailUrl string `json:"thumbnail_url"`
	Tags         []Tag  `json:"tags"`
	StartAt      int64  `json:"start_at"`
	EndAt        int64  `json:"end_at"`
}

type Livecomment struct {
	Id         int64      `json:"id"`
	User       User       `json:"user"`
	Livestream Livestream `json:"livestream"`
	Comment    string     `json:"comment"`
	Tip        int64      `json:"tip"`
	CreatedAt  int64      `json:"created_at"`
}

type Reaction struct {
	Id         int64      `json:"id"`
	EmojiName  string     `json:"emoji_name"`
	User       User       `json:"user"`
	Livestream Livestream `json:"livestream"`
	CreatedAt  int64      `json:"created_at"`
}

type LivecommentReport struct {
	Id          int64       `json:"id"`
	Reporter    User        `json:"reporter"`
	Livecomment Livecomment `json:"livecomment"`
	CreatedAt   int64       `json:"created_at"`
}

type UserStatistics struct {
	Rank              int64   `json:"rank"`
	ViewersCount      int64   `json:"viewers_count"`
	TotalReactions    int64   `json:"total_reactions"`
	TotalLivecomments int64   `json:"total_livecomments"`
	TotalTip          int64   `json:"total_tip"`
	FavoriteEmoji     *string `json:"favorite_emoji,omitempty"`
}

type LivestreamStatistics struct {
	Rank           int64 `json:"rank"`
	ViewersCount   int64 `json:"viewers_count"`
	TotalReactions int64 `json:"total_reactions"`
	TotalReports   int64 `json:"total_reports"`
	MaxTip         int64 `json:"max_tip"`
}
