package enrich

import (
	"context"

	"github.com/npezzotti/isupipe/internal/database"
	"github.com/npezzotti/isupipe/internal/stats"
	"github.com/npezzotti/isupipe/internal/types"
)

// FillReactionResponses passes emoji names through untouched.
func FillReactionResponses(ctx context.Context, q database.Queryer, reactions []database.ReactionRow, fallback FallbackIconFunc) ([]types.Reaction, error) {
	responses := make([]types.Reaction, 0, len(reactions))
	if len(reactions) == 0 {
		return responses, nil
	}
	stats.RecordEnrichment("reaction", len(reactions))

	userIds := uniqueIds(reactions, func(r database.ReactionRow) int64 { return r.UserId })
	users, err := userResponsesByIds(ctx, q, userIds, fallback)
	if err != nil {
		return nil, err
	}

	livestreamIds := uniqueIds(reactions, func(r database.ReactionRow) int64 { return r.LivestreamId })
	livestreams, err := livestreamResponsesByIds(ctx, q, livestreamIds, fallback)
	if err != nil {
		return nil, err
	}

	for _, r := range reactions {
		responses = append(responses, types.Reaction{
			Id:         r.Id,
			EmojiName:  r.EmojiName,
			User:       users[r.UserId],
			Livestream: livestreams[r.LivestreamId],
			CreatedAt:  r.CreatedAt,
		})
	}

	return responses, nil
}

func FillReactionResponse(ctx context.Context, q database.Queryer, reaction database.ReactionRow, fallback FallbackIconFunc) (types.Reaction, error) {
	responses, err := FillReactionResponses(ctx, q, []database.ReactionRow{reaction}, fallback)
	if err != nil {
		return types.Reaction{}, err
	}

	return responses[0], nil
}
