package enrich

import (
	"context"

	"github.com/npezzotti/isupipe/internal/database"
	"github.com/npezzotti/isupipe/internal/stats"
	"github.com/npezzotti/isupipe/internal/types"
)

func FillLivecommentResponses(ctx context.Context, q database.Queryer, livecomments []database.LivecommentRow, fallback FallbackIconFunc) ([]types.Livecomment, error) {
	responses := make([]types.Livecomment, 0, len(livecomments))
	if len(livecomments) == 0 {
		return responses, nil
	}
	stats.RecordEnrichment("livecomment", len(livecomments))

	userIds := uniqueIds(livecomments, func(l database.LivecommentRow) int64 { return l.UserId })
	users, err := userResponsesByIds(ctx, q, userIds, fallback)
	if err != nil {
		return nil, err
	}

	livestreamIds := uniqueIds(livecomments, func(l database.LivecommentRow) int64 { return l.LivestreamId })
	livestreams, err := livestreamResponsesByIds(ctx, q, livestreamIds, fallback)
	if err != nil {
		return nil, err
	}

	for _, lc := range livecomments {
		responses = append(responses, types.Livecomment{
			Id:         lc.Id,
			User:       users[lc.UserId],
			Livestream: livestreams[lc.LivestreamId],
			Comment:    lc.Comment,
			Tip:        lc.Tip,
			CreatedAt:  lc.CreatedAt,
		})
	}

	return responses, nil
}

func FillLivecommentResponse(ctx context.Context, q database.Queryer, livecomment database.LivecommentRow, fallback FallbackIconFunc) (types.Livecomment, error) {
	responses, err := FillLivecommentResponses(ctx, q, []database.LivecommentRow{livecomment}, fallback)
	if err != nil {
		return types.Livecomment{}, err
	}

	return responses[0], nil
}
