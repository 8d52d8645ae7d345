// Package enrich assembles nested API responses from raw database rows.
//
// Every Fill*Responses function works on a batch: related ids are
// de-duplicated and fetched with one query per related table, so the number
// of round trips does not grow with the number of rows. Results keep the
// order (and duplicates) of the input. The single-row Fill*Response forms
// delegate to the batch forms.
//
// A referenced row that must exist but does not is reported as an
// *IntegrityError, which matches ErrIntegrity with errors.Is.
package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
)

var ErrIntegrity = errors.New("data integrity violation")

type IntegrityError struct {
	Entity string
	Ids    []int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("not found %s that has the given id: %v", e.Entity, e.Ids)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// FallbackIconFunc returns the image used for users without an icon.
type FallbackIconFunc func(ctx context.Context) ([]byte, error)

// StaticFallbackIcon returns a FallbackIconFunc serving image.
func StaticFallbackIcon(image []byte) FallbackIconFunc {
	return func(context.Context) ([]byte, error) {
		return image, nil
	}
}

// IconHash is the lowercase hex SHA-256 of image.
func IconHash(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

func uniqueIds[T any](rows []T, id func(T) int64) []int64 {
	seen := make(map[int64]struct{}, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		v := id(row)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ids = append(ids, v)
	}

	return ids
}

func missingIds[V any](want []int64, have map[int64]V) []int64 {
	var missing []int64
	for _, id := range want {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}

	slices.Sort(missing)
	return missing
}
