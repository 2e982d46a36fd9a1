package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/*.yaml
var fixturesFS embed.FS

type filmFixture struct {
	Title           string    `yaml:"title"`
	ItemTitle       string    `yaml:"itemTitle"`
	Description     string    `yaml:"description"`
	Categories      string    `yaml:"categories"`
	Img             string    `yaml:"img"`
	MiniImg         string    `yaml:"miniImg"`
	Trailer         string    `yaml:"trailer"`
	More            string    `yaml:"more"`
	RatingKinopoisk string    `yaml:"ratingKinopoisk"`
	RatingIMDb      string    `yaml:"ratingIMDb"`
	ReleaseYear     int       `yaml:"releaseYear"`
	Added           time.Time `yaml:"added"`
	Country         any       `yaml:"country"`
	Directors       any       `yaml:"directors"`
	Genres          any       `yaml:"genres"`
	Cast            any       `yaml:"cast"`
	Kino            any       `yaml:"kino"`
}

func (f filmFixture) film() (*Film, error) {
	film := &Film{
		Title:           f.Title,
		ItemTitle:       f.ItemTitle,
		Description:     f.Description,
		Categories:      f.Categories,
		Img:             f.Img,
		MiniImg:         f.MiniImg,
		Trailer:         f.Trailer,
		More:            f.More,
		RatingKinopoisk: f.RatingKinopoisk,
		RatingIMDb:      f.RatingIMDb,
		ReleaseYear:     f.ReleaseYear,
		Added:           f.Added.UTC(),
	}

	docs := []struct {
		dst *Document
		src any
	}{
		{&film.Country, f.Country},
		{&film.Directors, f.Directors},
		{&film.Genres, f.Genres},
		{&film.Cast, f.Cast},
		{&film.Kino, f.Kino},
	}
	for _, d := range docs {
		if d.src == nil {
			d.src = map[string]any{}
		}
		doc, err := NewDocument(d.src)
		if err != nil {
			return nil, fmt.Errorf("film %q: %w", f.Title, err)
		}
		*d.dst = doc
	}

	return film, nil
}

// LoadFilmFixtures decodes the embedded film catalog.
func LoadFilmFixtures() ([]*Film, error) {
	return loadFilmFixtures(fixturesFS, "fixtures")
}

func loadFilmFixtures(fsys fs.FS, dir string) ([]*Film, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}

	var films []*Film
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", entry.Name(), err)
		}

		var fixtures []filmFixture
		if err := yaml.Unmarshal(raw, &fixtures); err != nil {
			return nil, fmt.Errorf("decode fixture %s: %w", entry.Name(), err)
		}
		for _, fixture := range fixtures {
			film, err := fixture.film()
			if err != nil {
				return nil, err
			}
			films = append(films, film)
		}
	}
	return films, nil
}

// SeedFilms inserts the embedded catalog when the films table is empty and
// reports how many rows were written.
func SeedFilms(ctx context.Context, s Store) (int, error) {
	existing, err := s.Films(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	films, err := LoadFilmFixtures()
	if err != nil {
		return 0, err
	}
	for _, film := range films {
		if _, err := s.CreateFilm(ctx, film); err != nil {
			return 0, err
		}
	}
	return len(films), nil
}
