package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
)

// BunStore implements Store on top of go-repository-bun repositories.
type BunStore struct {
	db       *bun.DB
	users    repository.Repository[*User]
	profiles repository.Repository[*Profile]
	films    repository.Repository[*Film]
	comments repository.Repository[*Comment]
	now      func() time.Time
}

var _ Store = (*BunStore)(nil)

// NewBunStore wires the repositories for every model on db.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{
		db: db,
		users: repository.NewRepository(db, repository.ModelHandlers[*User]{
			NewRecord: func() *User { return &User{} },
			GetID: func(u *User) uuid.UUID {
				if u == nil {
					return uuid.Nil
				}
				return u.ID
			},
			SetID: func(u *User, id uuid.UUID) {
				if u != nil {
					u.ID = id
				}
			},
			GetIdentifier: func() string { return "email" },
			GetIdentifierValue: func(u *User) string {
				if u == nil {
					return ""
				}
				return u.Email
			},
		}),
		profiles: repository.NewRepository(db, repository.ModelHandlers[*Profile]{
			NewRecord: func() *Profile { return &Profile{} },
			GetID: func(p *Profile) uuid.UUID {
				if p == nil {
					return uuid.Nil
				}
				return p.ID
			},
			SetID: func(p *Profile, id uuid.UUID) {
				if p != nil {
					p.ID = id
				}
			},
		}),
		films: repository.NewRepository(db, repository.ModelHandlers[*Film]{
			NewRecord: func() *Film { return &Film{} },
			GetID: func(f *Film) uuid.UUID {
				if f == nil {
					return uuid.Nil
				}
				return f.ID
			},
			SetID: func(f *Film, id uuid.UUID) {
				if f != nil {
					f.ID = id
				}
			},
		}),
		comments: repository.NewRepository(db, repository.ModelHandlers[*Comment]{
			NewRecord: func() *Comment { return &Comment{} },
			GetID: func(c *Comment) uuid.UUID {
				if c == nil {
					return uuid.Nil
				}
				return c.ID
			},
			SetID: func(c *Comment, id uuid.UUID) {
				if c != nil {
					c.ID = id
				}
			},
		}),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *BunStore) CreateUser(ctx context.Context, user *User) (*User, error) {
	if user == nil {
		return nil, fmt.Errorf("create user: nil record")
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, classify("create user", err)
	}
	return created, nil
}

func (s *BunStore) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return first(ctx, s.users, "user", byColumn("id", id.String()))
}

func (s *BunStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return first(ctx, s.users, "user", byColumn("email", email))
}

func (s *BunStore) CreateProfile(ctx context.Context, profile *Profile) (*Profile, error) {
	if profile == nil {
		return nil, fmt.Errorf("create profile: nil record")
	}
	if profile.UserID == uuid.Nil {
		return nil, fmt.Errorf("create profile: owner is required")
	}
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	now := s.now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	var created *Profile
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, _, err := s.profiles.ListTx(ctx, tx, byColumn("user_id", profile.UserID.String()), limitOne)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrDuplicate
		}

		created, err = s.profiles.CreateTx(ctx, tx, profile)
		return err
	})
	if err != nil {
		return nil, classify("create profile", err)
	}
	return created, nil
}

func (s *BunStore) ProfileByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return first(ctx, s.profiles, "profile", byColumn("id", id.String()))
}

func (s *BunStore) ProfileByUser(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return first(ctx, s.profiles, "profile", byColumn("user_id", userID.String()))
}

func (s *BunStore) UpdateProfile(ctx context.Context, profile *Profile) (*Profile, error) {
	if profile == nil || profile.ID == uuid.Nil {
		return nil, fmt.Errorf("update profile: id is required")
	}
	profile.UpdatedAt = s.now()

	updated, err := s.profiles.Update(ctx, profile)
	if err != nil {
		return nil, classify("update profile", err)
	}
	return updated, nil
}

func (s *BunStore) CreateFilm(ctx context.Context, film *Film) (*Film, error) {
	if film == nil {
		return nil, fmt.Errorf("create film: nil record")
	}
	if film.ID == uuid.Nil {
		film.ID = uuid.New()
	}
	if film.Added.IsZero() {
		film.Added = s.now()
	}

	created, err := s.films.Create(ctx, film)
	if err != nil {
		return nil, classify("create film", err)
	}
	return created, nil
}

func (s *BunStore) Films(ctx context.Context) ([]*Film, error) {
	films, _, err := s.films.List(ctx, orderBy("added DESC", "title ASC"))
	if err != nil {
		return nil, classify("list films", err)
	}
	return films, nil
}

func (s *BunStore) FilmByID(ctx context.Context, id uuid.UUID) (*Film, error) {
	return first(ctx, s.films, "film", byColumn("id", id.String()))
}

func (s *BunStore) CreateComment(ctx context.Context, comment *Comment) (*Comment, error) {
	if comment == nil {
		return nil, fmt.Errorf("create comment: nil record")
	}
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	comment.CreatedAt = s.now()

	var created *Comment
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		films, _, err := s.films.ListTx(ctx, tx, byColumn("id", comment.FilmID.String()), limitOne)
		if err != nil {
			return err
		}
		if len(films) == 0 {
			return fmt.Errorf("film %s: %w", comment.FilmID, ErrNotFound)
		}

		users, _, err := s.users.ListTx(ctx, tx, byColumn("id", comment.UserID.String()), limitOne)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return fmt.Errorf("user %s: %w", comment.UserID, ErrNotFound)
		}

		created, err = s.comments.CreateTx(ctx, tx, comment)
		return err
	})
	if err != nil {
		return nil, classify("create comment", err)
	}
	return created, nil
}

func (s *BunStore) CommentsByFilm(ctx context.Context, filmID uuid.UUID) ([]*Comment, error) {
	comments, _, err := s.comments.List(ctx, byColumn("film_id", filmID.String()), orderBy("created_at ASC"))
	if err != nil {
		return nil, classify("list comments", err)
	}
	return comments, nil
}

func (s *BunStore) CommentsByUser(ctx context.Context, userID uuid.UUID) ([]*Comment, error) {
	comments, _, err := s.comments.List(ctx, byColumn("user_id", userID.String()), orderBy("created_at ASC"))
	if err != nil {
		return nil, classify("list comments", err)
	}
	return comments, nil
}

func first[T any](ctx context.Context, repo repository.Repository[T], kind string, criteria ...repository.SelectCriteria) (T, error) {
	var zero T
	records, _, err := repo.List(ctx, append(criteria, limitOne)...)
	if err != nil {
		return zero, classify("find "+kind, err)
	}
	if len(records) == 0 {
		return zero, fmt.Errorf("%s: %w", kind, ErrNotFound)
	}
	return records[0], nil
}

func byColumn(column, value string) repository.SelectCriteria {
	return repository.SelectBy(column, "=", value)
}

func orderBy(orders ...string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order(orders...)
	}
}

func limitOne(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Limit(1)
}

// classify folds driver and repository errors into ErrNotFound and
// ErrDuplicate, keeping the original error in the chain.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate):
		return fmt.Errorf("%s: %w", op, err)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrDuplicate, err)
	case isNotFound(err):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var mapped *goerrors.Error
	if errors.As(err, &mapped) && mapped.Category == goerrors.CategoryConflict {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isNotFound(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var mapped *goerrors.Error
	return errors.As(err, &mapped) && mapped.Category == goerrors.CategoryNotFound
}
