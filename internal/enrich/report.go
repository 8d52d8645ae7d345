package enrich

import (
	"context"
	"fmt"

	"github.com/npezzotti/isupipe/internal/database"
	"github.com/npezzotti/isupipe/internal/stats"
	"github.com/npezzotti/isupipe/internal/types"
)

func FillLivecommentReportResponses(ctx context.Context, q database.Queryer, reports []database.LivecommentReportRow, fallback FallbackIconFunc) ([]types.LivecommentReport, error) {
	responses := make([]types.LivecommentReport, 0, len(reports))
	if len(reports) == 0 {
		return responses, nil
	}
	stats.RecordEnrichment("livecomment_report", len(reports))

	reporterIds := uniqueIds(reports, func(r database.LivecommentReportRow) int64 { return r.UserId })
	reporters, err := userResponsesByIds(ctx, q, reporterIds, fallback)
	if err != nil {
		return nil, err
	}

	livecommentIds := uniqueIds(reports, func(r database.LivecommentReportRow) int64 { return r.LivecommentId })
	livecommentRows, err := database.GetLivecommentsByIds(ctx, q, livecommentIds)
	if err != nil {
		return nil, fmt.Errorf("get livecomments: %w", err)
	}

	found := make(map[int64]struct{}, len(livecommentRows))
	for _, lc := range livecommentRows {
		found[lc.Id] = struct{}{}
	}
	if missing := missingIds(livecommentIds, found); len(missing) > 0 {
		return nil, &IntegrityError{Entity: "livecomment", Ids: missing}
	}

	livecomments, err := FillLivecommentResponses(ctx, q, livecommentRows, fallback)
	if err != nil {
		return nil, err
	}

	livecommentMap := make(map[int64]types.Livecomment, len(livecomments))
	for _, lc := range livecomments {
		livecommentMap[lc.Id] = lc
	}

	for _, r := range reports {
		responses = append(responses, types.LivecommentReport{
			Id:          r.Id,
			Reporter:    reporters[r.UserId],
			Livecomment: livecommentMap[r.LivecommentId],
			CreatedAt:   r.CreatedAt,
		})
	}

	return responses, nil
}

func FillLivecommentReportResponse(ctx context.Context, q database.Queryer, report database.LivecommentReportRow, fallback FallbackIconFunc) (types.LivecommentReport, error) {
	responses, err := FillLivecommentReportResponses(ctx, q, []database.LivecommentReportRow{report}, fallback)
	if err != nil {
		return types.LivecommentReport{}, err
	}

	return responses[0], nil
}
