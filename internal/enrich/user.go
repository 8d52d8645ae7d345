package enrich

import (
	"context"
	"fmt"

	"github.com/npezzotti/isupipe/internal/database"
	"github.com/npezzotti/isupipe/internal/stats"
	"github.com/npezzotti/isupipe/internal/types"
)

// FillUserResponses attaches theme and icon hash to every user. Themes and
// icons are each fetched with a single query; the fallback icon is requested
// at most once, and only if some user has no icon.
func FillUserResponses(ctx context.Context, q database.Queryer, users []database.UserRow, fallback FallbackIconFunc) ([]types.User, error) {
	responses := make([]types.User, 0, len(users))
	if len(users) == 0 {
		return responses, nil
	}
	stats.RecordEnrichment("user", len(users))

	userIds := uniqueIds(users, func(u database.UserRow) int64 { return u.Id })

	themes, err := database.GetThemesByUserIds(ctx, q, userIds)
	if err != nil {
		return nil, fmt.Errorf("get themes: %w", err)
	}

	themeMap := make(map[int64]types.Theme, len(themes))
	for _, t := range themes {
		themeMap[t.UserId] = types.Theme{Id: t.Id, DarkMode: t.DarkMode}
	}

	if missing := missingIds(userIds, themeMap); len(missing) > 0 {
		return nil, &IntegrityError{Entity: "theme", Ids: missing}
	}

	icons, err := database.GetIconsByUserIds(ctx, q, userIds)
	if err != nil {
		return nil, fmt.Errorf("get icons: %w", err)
	}

	hashMap := make(map[int64]string, len(userIds))
	for _, icon := range icons {
		hashMap[icon.UserId] = IconHash(icon.Image)
	}

	if len(hashMap) < len(userIds) {
		if fallback == nil {
			return nil, fmt.Errorf("no fallback icon provider")
		}

		image, err := fallback(ctx)
		if err != nil {
			return nil, fmt.Errorf("get fallback icon: %w", err)
		}

		fallbackHash := IconHash(image)
		for _, id := range userIds {
			if _, ok := hashMap[id]; !ok {
				hashMap[id] = fallbackHash
			}
		}
	}

	for _, u := range users {
		responses = append(responses, types.User{
			Id:          u.Id,
			Name:        u.Name,
			DisplayName: u.DisplayName,
			Description: u.Description,
			Theme:       themeMap[u.Id],
			IconHash:    hashMap[u.Id],
		})
	}

	return responses, nil
}

func FillUserResponse(ctx context.Context, q database.Queryer, user database.UserRow, fallback FallbackIconFunc) (types.User, error) {
	responses, err := FillUserResponses(ctx, q, []database.UserRow{user}, fallback)
	if err != nil {
		return types.User{}, err
	}

	return responses[0], nil
}

// userResponsesByIds loads the users with the given distinct ids and enriches
// them. Every id must exist.
func userResponsesByIds(ctx context.Context, q database.Queryer, ids []int64, fallback FallbackIconFunc) (map[int64]types.User, error) {
	users, err := database.GetUsersByIds(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}

	found := make(map[int64]struct{}, len(users))
	for _, u := range users {
		found[u.Id] = struct{}{}
	}
	if missing := missingIds(ids, found); len(missing) > 0 {
		return nil, &IntegrityError{Entity: "user", Ids: missing}
	}

	responses, err := FillUserResponses(ctx, q, users, fallback)
	if err != nil {
		return nil, err
	}

	byId := make(map[int64]types.User, len(responses))
	for _, r := range responses {
		byId[r.Id] = r
	}

	return byId, nil
}
