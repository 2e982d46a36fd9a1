package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-kino"
	"github.com/goliatone/go-kino/auth"
	"github.com/goliatone/go-kino/store"
	"github.com/google/uuid"
)

// AuthPayload is returned by signup and login. It is never stored.
type AuthPayload struct {
	Token string      `json:"token"`
	User  *issuedUser `json:"user"`
}

// issuedUser marks the account a token was just issued for, so its private
// fields resolve before the caller presents that token.
type issuedUser struct {
	*store.User
}

func userOf(source any) (*store.User, bool) {
	switch u := source.(type) {
	case *store.User:
		return u, u != nil
	case *issuedUser:
		if u == nil || u.User == nil {
			return nil, false
		}
		return u.User, true
	}
	return nil, false
}

func resolveFilms(ctx context.Context, _ kino.ResolveParams) (any, error) {
	_, st, err := session(ctx)
	if err != nil {
		return nil, err
	}
	films, err := st.Films(ctx)
	if err != nil {
		return nil, translate(err, "film")
	}
	return films, nil
}

func resolveFilm(ctx context.Context, p kino.ResolveParams) (any, error) {
	id, err := p.Args.EntityID("id", "film")
	if err != nil {
		return nil, err
	}
	_, st, err := session(ctx)
	if err != nil {
		return nil, err
	}
	film, err := st.FilmByID(ctx, id)
	if err != nil {
		return nil, translate(err, "film")
	}
	return film, nil
}

// resolveMe reads the identity from the session only; anonymous callers get
// null without an error.
func resolveMe(ctx context.Context, _ kino.ResolveParams) (any, error) {
	s, st, err := session(ctx)
	if err != nil {
		return nil, err
	}
	subject, ok := s.CurrentUserID()
	if !ok {
		return nil, nil
	}
	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, nil
	}
	user, err := st.UserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "user")
	}
	return user, nil
}

func (c *Catalog) signup(ctx context.Context, p kino.ResolveParams) (any, error) {
	in := newSignupInput(p.Args)
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}
	if c.auth == nil {
		return nil, kino.NewInternalError(errors.New("signup: auth service not configured"))
	}
	_, st, err := session(ctx)
	if err != nil {
		return nil, err
	}

	hash, err := c.auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) || errors.Is(err, auth.ErrEmptyPassword) {
			return nil, kino.NewValidationError("password", err.Error())
		}
		return nil, kino.NewInternalError(err)
	}

	user, err := st.CreateUser(ctx, &store.User{
		ID:       uuid.New(),
		Name:     in.Name,
		Email:    in.Email,
		Password: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, kino.NewDuplicateError("email already registered")
		}
		return nil, translate(err, "user")
	}

	return c.issue(user)
}

// login reports unknown emails and wrong passwords with the same external
// error. A placeholder comparison runs for unknown emails.
func (c *Catalog) login(ctx context.Context, p kino.ResolveParams) (any, error) {
	if c.auth == nil {
		return nil, kino.NewInternalError(errors.New("login: auth service not configured"))
	}
	_, st, err := session(ctx)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(p.Args.String("email"))
	password := p.Args.String("password")

	user, err := st.UserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.auth.VerifyPassword(password, "")
		return nil, c.rejectLogin(ctx, errors.New("no account for email"))
	case err != nil:
		return nil, translate(err, "user")
	}

	if !c.auth.VerifyPassword(password, user.Password) {
		return nil, c.rejectLogin(ctx, fmt.Errorf("password mismatch for user %s", user.ID))
	}
	return c.issue(user)
}

func (c *Catalog) rejectLogin(ctx context.Context, reason error) error {
	fields := kino.Fields{"reason": reason.Error()}
	if requestID := kino.RequestIDFromContext(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	kino.WithFields(c.logger, fields).Info("login rejected")
	return kino.NewAuthenticationError(reason)
}

func (c *Catalog) issue(user *store.User) (*AuthPayload, error) {
	token, err := c.auth.IssueToken(user.ID.String())
	if err != nil {
		return nil, kino.NewInternalError(err)
	}
	return &AuthPayload{Token: token, User: &issuedUser{User: user}}, nil
}

func createProfile(ctx context.Context, p kino.ResolveParams) (any, error) {
	s, st, err := session(ctx)
	if err != nil {
		return nil, err
	}
	owner, err := currentUserID(s)
	if err != nil {
		return nil, err
	}

	profile, err := st.CreateProfile(ctx, &store.Profile{
		ID:            uuid.New(),
		UserID:        owner,
		Info:          p.Args.OptionalString("info"),
		SubscribeType: p.Args.OptionalString("subscribeType"),
		Avatar:        p.Args.OptionalString("avatar"),
	})
	if err != nil {
		return nil, translate(err, "profile")
	}
	return profile, nil
}

// updateProfile only changes the arguments that were supplied; an explicit
// null clears the value. Ownership is enforced by the field rule, which
// leaves the profile it loaded in the field state.
func updateProfile(ctx context.Context, p kino.ResolveParams) (any, error) {
	id, err := p.Args.EntityID("id", "profile")
	if err != nil {
		return nil, err
	}
	_, st, err := session(ctx)
	if err != nil {
		return nil, err
	}

	profile, ok := loadedProfile(p.State, id)
	if !ok {
		if profile, err = st.ProfileByID(ctx, id); err != nil {
			return nil, translate(err, "profile")
		}
	}
	if p.Args.Has("info") {
		profile.Info = p.Args.OptionalString("info")
	}
	if p.Args.Has("avatar") {
		profile.Avatar = p.Args.OptionalString("avatar")
	}

	updated, err := st.UpdateProfile(ctx, profile)
	if err != nil {
		return nil, translate(err, "profile")
	}
	return updated, nil
}

func createComment(ctx context.Context, p kino.ResolveParams) (any, error) {
	filmID, err := p.Args.EntityID("id", "film")
	if err != nil {
		return nil, err
	}
	in := commentInput{Content: trimmedString(p.Args.String("content"))}
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	s, st, err := session(ctx)
	if err != nil {
		return nil, err
	}
	author, err := currentUserID(s)
	if err != nil {
		return nil, err
	}

	comment, err := st.CreateComment(ctx, &store.Comment{
		ID:      uuid.New(),
		Content: in.Content,
		UserID:  author,
		FilmID:  filmID,
	})
	if err != nil {
		return nil, translate(err, "film")
	}
	return comment, nil
}

func resolveUserProfile(ctx context.Context, p kino.ResolveParams) (any, error) {
	user, ok := userOf(p.Source)
	if !ok {
		return nil, nil
	}
	_, st, err := session(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := st.ProfileByUser(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "profile")
	}
	return profile, nil
}

func resolveUserComments(ctx context.Context, p kino.ResolveParams) (any, error) {
	user, ok := userOf(p.Source)
	if !ok {
		return []*store.Comment{}, nil
	}
	_, st, err := session(ctx)
	if err != nil {
		return nil, err
	}
	comments, err := st.CommentsByUser(ctx, user.ID)
	if err != nil {
		return nil, translate(err, "comment")
	}
	return comments, nil
}

func resolveFilmComments(ctx context.Context, p kino.ResolveParams) (any, error) {
	film, ok := p.Source.(*store.Film)
	if !ok || film == nil {
		return []*store.Comment{}, nil
	}
	_, st, err := session(ctx)
	if err != nil {
		return nil, err
	}
	comments, err := st.CommentsByFilm(ctx, film.ID)
	if err != nil {
		return nil, translate(err, "comment")
	}
	return comments, nil
}

func resolveCommentAuthor(ctx context.Context, p kino.ResolveParams) (any, error) {
	comment, ok := p.Source.(*store.Comment)
	if !ok || comment == nil {
		return nil, nil
	}
	_, st, err := session(ctx)
	if err != nil {
		return nil, err
	}
	user, err := st.UserByID(ctx, comment.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "user")
	}
	return user, nil
}

func resolveCommentFilm(ctx context.Context, p kino.ResolveParams) (any, error) {
	comment, ok := p.Source.(*store.Comment)
	if !ok || comment == nil {
		return nil, nil
	}
	_, st, err := session(ctx)
	if err != nil {
		return nil, err
	}
	film, err := st.FilmByID(ctx, comment.FilmID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "film")
	}
	return film, nil
}
