package application

import (
	"context"
	"fmt"

	"github.com/bnema/pathfinder/internal/cache"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

const profilesTable = "profiles"

// ProfileEdit lists the profile fields a signed-in user can change. Empty
// fields are left as stored.
type ProfileEdit struct {
	FullName       string
	School         string
	Major          string
	GraduationYear int
	Bio            string
}

func (e ProfileEdit) IsZero() bool {
	return e == ProfileEdit{}
}

type ProfileService struct {
	entityService
	identity *IdentityService
}

func (s *ProfileService) DetailQuery(id domain.UserID) cache.Query {
	return cache.Query{
		Key:        domain.ProfileKeys.Detail(string(id)),
		StaleAfter: s.staleness.Detail,
		Fetch: func(ctx context.Context) (any, error) {
			return selectOne[domain.Profile](ctx, s.data, profilesTable, ports.ByID(string(id)))
		},
	}
}

func (s *ProfileService) Get(ctx context.Context, id domain.UserID) (domain.Profile, error) {
	return fetchTyped[domain.Profile](ctx, s.store, s.DetailQuery(id))
}

// Update writes edit to the signed-in user's profile and reloads the
// session's copy once stored.
func (s *ProfileService) Update(ctx context.Context, edit ProfileEdit) (domain.Profile, error) {
	identity, ok := s.session.Session().Authenticated()
	if !ok {
		return domain.Profile{}, domain.ErrNoAuthenticatedUser
	}
	if edit.IsZero() {
		return domain.Profile{}, domain.NewError(domain.KindValidation, "update profile", "nothing to change")
	}
	id := identity.ID

	res, err := s.coord.Run(ctx, cache.Mutation{
		Kind:    KindProfileUpdate,
		Subject: cache.Subject{ID: string(id), UserID: id},
		Target:  domain.ProfileKeys.Detail(string(id)),
		Optimistic: cache.Patch(func(profile domain.Profile) domain.Profile {
			return applyProfileEdit(profile, edit)
		}),
		Remote: func(ctx context.Context) (any, error) {
			patch := profileEditRow(edit)
			patch["updated_at"] = s.now()
			n, err := s.data.Update(ctx, profilesTable, ports.ByID(string(id)), patch)
			if err != nil {
				return nil, fmt.Errorf("update profile: %w", err)
			}
			if n == 0 {
				return nil, domain.NewError(domain.KindNotFound, "update profile", string(id))
			}
			return selectOne[domain.Profile](ctx, s.data, profilesTable, ports.ByID(string(id)))
		},
		OnSuccess: func(store *cache.Store, result any) {
			if profile, ok := result.(domain.Profile); ok {
				store.Set(domain.ProfileKeys.Detail(string(id)), profile)
			}
		},
	})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("update profile %s: %w", id, err)
	}

	if _, err := s.identity.RefreshProfile(ctx); err != nil {
		s.logger.Warn("reload session profile failed", "user_id", id, "error", err)
	}
	profile, _ := res.Value.(domain.Profile)
	return profile, nil
}

func profileEditRow(edit ProfileEdit) ports.Row {
	row := ports.Row{}
	fields := map[string]string{
		"full_name": edit.FullName,
		"school":    edit.School,
		"major":     edit.Major,
		"bio":       edit.Bio,
	}
	for column, value := range fields {
		if value != "" {
			row[column] = value
		}
	}
	if edit.GraduationYear > 0 {
		row["graduation_year"] = edit.GraduationYear
	}
	return row
}

func applyProfileEdit(profile domain.Profile, edit ProfileEdit) domain.Profile {
	if edit.FullName != "" {
		profile.FullName = edit.FullName
	}
	if edit.School != "" {
		profile.School = edit.School
	}
	if edit.Major != "" {
		profile.Major = edit.Major
	}
	if edit.GraduationYear > 0 {
		profile.GraduationYear = edit.GraduationYear
	}
	if edit.Bio != "" {
		profile.Bio = edit.Bio
	}
	return profile
}
