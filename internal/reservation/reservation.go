// Package reservation books livestream time against the finite capacity of
// the hourly reservation slots.
package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/npezzotti/isupipe/internal/database"
	"github.com/npezzotti/isupipe/internal/enrich"
	"github.com/npezzotti/isupipe/internal/stats"
	"github.com/npezzotti/isupipe/internal/types"
)

// The reservation term runs for one year from 2023-11-25T01:00:00Z, in unix
// seconds.
const (
	TermStartAt int64 = 1700874000
	TermEndAt   int64 = 1732496400
)

var (
	ErrOutOfTerm     = errors.New("bad reservation time range")
	ErrPartialSlot   = errors.New("reservation must cover whole slots")
	ErrSlotExhausted = errors.New("no reservation slot available")
)

type ReserveRequest struct {
	Tags         []int64 `json:"tags"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	PlaylistUrl  string  `json:"playlist_url"`
	ThumbnailUrl string  `json:"thumbnail_url"`
	StartAt      int64   `json:"start_at"`
	EndAt        int64   `json:"end_at"`
}

// CheckTerm reports ErrOutOfTerm unless [startAt, endAt) is non-empty and lies
// entirely inside the reservation term.
func CheckTerm(startAt, endAt int64) error {
	if startAt >= endAt || startAt < TermStartAt || endAt > TermEndAt {
		return ErrOutOfTerm
	}
	return nil
}

// Reserve books the requested interval and creates the livestream. tx must be
// a transaction: the slot rows are locked with FOR UPDATE and only released
// when the caller commits or rolls back. On any error the caller must roll
// back; nothing is decremented unless every slot has capacity left.
func Reserve(ctx context.Context, tx database.Queryer, req ReserveRequest, ownerId int64, fallback enrich.FallbackIconFunc) (types.Livestream, error) {
	livestream, err := reserve(ctx, tx, req, ownerId, fallback)
	switch {
	case err == nil:
		stats.RecordReservation(stats.ReservationAccepted)
	case errors.Is(err, ErrOutOfTerm), errors.Is(err, ErrPartialSlot):
		stats.RecordReservation(stats.ReservationRejected)
	case errors.Is(err, ErrSlotExhausted):
		stats.RecordReservation(stats.ReservationExhausted)
	default:
		stats.RecordReservation(stats.ReservationFailed)
	}

	return livestream, err
}

func reserve(ctx context.Context, tx database.Queryer, req ReserveRequest, ownerId int64, fallback enrich.FallbackIconFunc) (types.Livestream, error) {
	if err := CheckTerm(req.StartAt, req.EndAt); err != nil {
		return types.Livestream{}, err
	}

	slots, err := database.LockReservationSlots(ctx, tx, req.StartAt, req.EndAt)
	if err != nil {
		return types.Livestream{}, fmt.Errorf("get reservation slots: %w", err)
	}

	if err := checkSlots(slots, req.StartAt, req.EndAt); err != nil {
		return types.Livestream{}, err
	}

	n, err := database.DecrementReservationSlots(ctx, tx, req.StartAt, req.EndAt)
	if err != nil {
		return types.Livestream{}, fmt.Errorf("update reservation slots: %w", err)
	}
	if n != int64(len(slots)) {
		return types.Livestream{}, fmt.Errorf("update reservation slots: expected %d rows, updated %d", len(slots), n)
	}

	row := database.LivestreamRow{
		UserId:       ownerId,
		Title:        req.Title,
		Description:  req.Description,
		PlaylistUrl:  req.PlaylistUrl,
		ThumbnailUrl: req.ThumbnailUrl,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
	}

	row.Id, err = database.CreateLivestream(ctx, tx, database.CreateLivestreamParams{
		UserId:       row.UserId,
		Title:        row.Title,
		Description:  row.Description,
		PlaylistUrl:  row.PlaylistUrl,
		ThumbnailUrl: row.ThumbnailUrl,
		StartAt:      row.StartAt,
		EndAt:        row.EndAt,
	})
	if err != nil {
		return types.Livestream{}, fmt.Errorf("insert livestream: %w", err)
	}

	if err := database.InsertLivestreamTags(ctx, tx, tagParams(row.Id, req.Tags)); err != nil {
		return types.Livestream{}, fmt.Errorf("insert livestream tags: %w", err)
	}

	livestream, err := enrich.FillLivestreamResponse(ctx, tx, row, fallback)
	if err != nil {
		return types.Livestream{}, fmt.Errorf("fill livestream: %w", err)
	}

	return livestream, nil
}

// checkSlots requires the locked slots to tile [startAt, endAt) exactly, each
// with at least one seat left. A slot sticking out of the interval is a
// partial booking; a gap or an empty slot is no capacity.
func checkSlots(slots []database.ReservationSlotRow, startAt, endAt int64) error {
	for _, s := range slots {
		if s.StartAt < startAt || s.EndAt > endAt {
			return ErrPartialSlot
		}
	}

	if len(slots) == 0 {
		return ErrSlotExhausted
	}

	next := startAt
	for _, s := range slots {
		if s.StartAt != next {
			return ErrSlotExhausted
		}
		if s.Slot < 1 {
			return ErrSlotExhausted
		}
		next = s.EndAt
	}

	if next != endAt {
		return ErrSlotExhausted
	}

	return nil
}

func tagParams(livestreamId int64, tagIds []int64) []database.LivestreamTagParams {
	seen := make(map[int64]struct{}, len(tagIds))
	params := make([]database.LivestreamTagParams, 0, len(tagIds))
	for _, id := range tagIds {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		params = append(params, database.LivestreamTagParams{LivestreamId: livestreamId, TagId: id})
	}

	return params
}
