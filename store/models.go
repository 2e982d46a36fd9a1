package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is an account. Password holds the bcrypt hash only.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name          *string   `bun:"name" json:"name"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	Password      string    `bun:"password,notnull" json:"-"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Profile belongs to exactly one user.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	UserID        uuid.UUID `bun:"user_id,type:uuid,notnull,unique" json:"user_id"`
	Info          *string   `bun:"info" json:"info"`
	SubscribeType *string   `bun:"subscribe_type" json:"subscribeType"`
	Avatar        *string   `bun:"avatar" json:"avatar"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Comment is immutable once written.
type Comment struct {
	bun.BaseModel `bun:"table:comments,alias:c"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Content       string    `bun:"content,notnull" json:"content"`
	UserID        uuid.UUID `bun:"user_id,type:uuid,notnull" json:"user_id"`
	FilmID        uuid.UUID `bun:"film_id,type:uuid,notnull" json:"film_id"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// Film is a catalog entry. Structured attributes are stored as documents.
type Film struct {
	bun.BaseModel   `bun:"table:films,alias:f"`
	ID              uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Img             string    `bun:"img" json:"img"`
	Title           string    `bun:"title,notnull" json:"title"`
	Description     string    `bun:"description" json:"description"`
	Categories      string    `bun:"categories" json:"categories"`
	ItemTitle       string    `bun:"item_title" json:"itemTitle"`
	RatingKinopoisk string    `bun:"rating_kinopoisk" json:"ratingKinopoisk"`
	RatingIMDb      string    `bun:"rating_imdb" json:"ratingIMDb"`
	Trailer         string    `bun:"trailer" json:"trailer"`
	More            string    `bun:"more" json:"more"`
	ReleaseYear     int       `bun:"release_year" json:"releaseYear"`
	MiniImg         string    `bun:"mini_img" json:"miniImg"`
	Added           time.Time `bun:"added,nullzero,notnull,default:current_timestamp" json:"added"`
	Country         Document  `bun:"country,type:text,notnull" json:"country"`
	Directors       Document  `bun:"directors,type:text,notnull" json:"directors"`
	Genres          Document  `bun:"genres,type:text,notnull" json:"genres"`
	Cast            Document  `bun:"cast,type:text,notnull" json:"cast"`
	Kino            Document  `bun:"kino,type:text,notnull" json:"kino"`
}

// Models lists every table owned by the store, in creation order.
func Models() []any {
	return []any{
		(*User)(nil),
		(*Profile)(nil),
		(*Film)(nil),
		(*Comment)(nil),
	}
}
