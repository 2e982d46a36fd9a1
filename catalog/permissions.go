package catalog

import (
	"context"
	"errors"

	"github.com/goliatone/go-kino"
	"github.com/goliatone/go-kino/store"
	"github.com/google/uuid"
)

// Permissions is the catalog's rule table. Fields missing from it fall back
// to the registry default, which requires authentication.
func Permissions() kino.Permissions {
	return kino.Permissions{
		"Query.films": kino.Allow(),
		"Query.film":  kino.Allow(),
		"Query.me":    kino.Allow(),

		"Mutation.signup":        kino.Allow(),
		"Mutation.login":         kino.Allow(),
		"Mutation.createProfile": kino.RequireAuthenticated(),
		"Mutation.updateProfile": kino.All(
			kino.RequireAuthenticated(),
			kino.RequireOwner("profile", profileOwner),
		),
		"Mutation.createComment": kino.RequireAuthenticated(),

		"AuthPayload.*": kino.Allow(),
		"Film.*":        kino.Allow(),
		"Comment.*":     kino.Allow(),
		"Profile.*":     kino.Allow(),

		"User.*":       kino.Allow(),
		"User.email":   kino.Any(issuedToCaller(), kino.RequireOwner("user", userOwner)),
		"User.Profile": kino.Any(issuedToCaller(), kino.RequireOwner("user", userOwner)),
	}
}

const profileStateKey = "profile"

// profileOwner loads the profile addressed by the id argument and keeps it
// for the resolver.
func profileOwner(ctx context.Context, req kino.RuleRequest) (string, error) {
	id, err := req.Args.EntityID("id", "profile")
	if err != nil {
		return "", err
	}
	_, st, err := session(ctx)
	if err != nil {
		return "", err
	}
	profile, err := st.ProfileByID(ctx, id)
	if err != nil {
		return "", err
	}
	req.State.Store(profileStateKey, profile)
	return profile.UserID.String(), nil
}

func loadedProfile(state *kino.FieldState, id uuid.UUID) (*store.Profile, bool) {
	value, ok := state.Load(profileStateKey)
	if !ok {
		return nil, false
	}
	profile, ok := value.(*store.Profile)
	if !ok || profile == nil || profile.ID != id {
		return nil, false
	}
	return profile, true
}

// userOwner treats the parent user as owning itself.
func userOwner(_ context.Context, req kino.RuleRequest) (string, error) {
	user, ok := userOf(req.Source)
	if !ok {
		return "", errors.New("parent is not a user")
	}
	return user.ID.String(), nil
}

// issuedToCaller grants access to the account returned by signup or login
// in the same operation.
func issuedToCaller() kino.Rule {
	return kino.NewRule("issuedToCaller", func(_ context.Context, req kino.RuleRequest) error {
		if u, ok := req.Source.(*issuedUser); ok && u != nil {
			return nil
		}
		return kino.ErrNotOwner
	})
}
