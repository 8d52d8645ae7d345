package enrich

import (
	"context"
	"fmt"

	"github.com/npezzotti/isupipe/internal/database"
	"github.com/npezzotti/isupipe/internal/stats"
	"github.com/npezzotti/isupipe/internal/types"
)

// FillLivestreamResponses attaches owner and tags to every livestream. Tags
// are fetched for exactly the given livestream ids and grouped per
// livestream; a livestream without tags gets an empty list.
func FillLivestreamResponses(ctx context.Context, q database.Queryer, livestreams []database.LivestreamRow, fallback FallbackIconFunc) ([]types.Livestream, error) {
	responses := make([]types.Livestream, 0, len(livestreams))
	if len(livestreams) == 0 {
		return responses, nil
	}
	stats.RecordEnrichment("livestream", len(livestreams))

	ownerIds := uniqueIds(livestreams, func(l database.LivestreamRow) int64 { return l.UserId })
	owners, err := userResponsesByIds(ctx, q, ownerIds, fallback)
	if err != nil {
		return nil, err
	}

	livestreamIds := uniqueIds(livestreams, func(l database.LivestreamRow) int64 { return l.Id })
	tagRows, err := database.GetTagsByLivestreamIds(ctx, q, livestreamIds)
	if err != nil {
		return nil, fmt.Errorf("get livestream tags: %w", err)
	}

	tagMap := make(map[int64][]types.Tag, len(livestreamIds))
	for _, t := range tagRows {
		tagMap[t.LivestreamId] = append(tagMap[t.LivestreamId], types.Tag{Id: t.TagId, Name: t.TagName})
	}

	for _, l := range livestreams {
		tags, ok := tagMap[l.Id]
		if !ok {
			tags = []types.Tag{}
		}

		responses = append(responses, types.Livestream{
			Id:           l.Id,
			Owner:        owners[l.UserId],
			Title:        l.Title,
			Description:  l.Description,
			PlaylistUrl:  l.PlaylistUrl,
			ThumbnailUrl: l.ThumbnailUrl,
			Tags:         tags,
			StartAt:      l.StartAt,
			EndAt:        l.EndAt,
		})
	}

	return responses, nil
}

func FillLivestreamResponse(ctx context.Context, q database.Queryer, livestream database.LivestreamRow, fallback FallbackIconFunc) (types.Livestream, error) {
	responses, err := FillLivestreamResponses(ctx, q, []database.LivestreamRow{livestream}, fallback)
	if err != nil {
		return types.Livestream{}, err
	}

	return responses[0], nil
}

func livestreamResponsesByIds(ctx context.Context, q database.Queryer, ids []int64, fallback FallbackIconFunc) (map[int64]types.Livestream, error) {
	livestreams, err := database.GetLivestreamsByIds(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("get livestreams: %w", err)
	}

	found := make(map[int64]struct{}, len(livestreams))
	for _, l := range livestreams {
		found[l.Id] = struct{}{}
	}
	if missing := missingIds(ids, found); len(missing) > 0 {
		return nil, &IntegrityError{Entity: "livestream", Ids: missing}
	}

	responses, err := FillLivestreamResponses(ctx, q, livestreams, fallback)
	if err != nil {
		return nil, err
	}

	byId := make(map[int64]types.Livestream, len(responses))
	for _, r := range responses {
		byId[r.Id] = r
	}

	return byId, nil
}
