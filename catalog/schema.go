package catalog

import "github.com/goliatone/go-kino"

var (
	idType       = kino.NonNull(kino.Named("ID"))
	stringType   = kino.Named("String")
	stringNN     = kino.NonNull(kino.Named("String"))
	intType      = kino.Named("Int")
	dateTimeType = kino.Named("DateTime")
	jsonNN       = kino.NonNull(kino.Named("JSONObject"))
)

func listOf(name string) kino.TypeRef {
	return kino.NonNull(kino.ListOf(kino.NonNull(kino.Named(name))))
}

// Types returns every object type of the catalog, roots first.
func (c *Catalog) Types() []*kino.TypeDescriptor {
	return []*kino.TypeDescriptor{
		c.queryType(),
		c.mutationType(),
		authPayloadType(),
		userType(),
		profileType(),
		filmType(),
		commentType(),
	}
}

func (c *Catalog) queryType() *kino.TypeDescriptor {
	return &kino.TypeDescriptor{
		Name: kino.QueryType,
		Fields: []*kino.FieldDescriptor{
			{
				Name:        "films",
				Description: "Every film in the catalog, newest first.",
				Type:        listOf("Film"),
				Resolve:     resolveFilms,
			},
			{
				Name: "film",
				Type: kino.Named("Film"),
				Args: []kino.ArgumentDescriptor{
					{Name: "id", Type: idType},
				},
				Resolve: resolveFilm,
			},
			{
				Name:        "me",
				Description: "The caller's account, null when anonymous.",
				Type:        kino.Named("User"),
				Resolve:     resolveMe,
			},
		},
	}
}

func (c *Catalog) mutationType() *kino.TypeDescriptor {
	return &kino.TypeDescriptor{
		Name: kino.MutationType,
		Fields: []*kino.FieldDescriptor{
			{
				Name: "signup",
				Type: kino.NonNull(kino.Named("AuthPayload")),
				Args: []kino.ArgumentDescriptor{
					{Name: "name", Type: stringType},
					{Name: "email", Type: stringNN},
					{Name: "password", Type: stringNN},
				},
				Resolve: c.signup,
			},
			{
				Name: "login",
				Type: kino.NonNull(kino.Named("AuthPayload")),
				Args: []kino.ArgumentDescriptor{
					{Name: "email", Type: stringNN},
					{Name: "password", Type: stringNN},
				},
				Resolve: c.login,
			},
			{
				Name:        "createProfile",
				Description: "Creates the caller's profile. Each account has at most one.",
				Type:        kino.NonNull(kino.Named("Profile")),
				Args: []kino.ArgumentDescriptor{
					{Name: "info", Type: stringType},
					{Name: "subscribeType", Type: stringType},
					{Name: "avatar", Type: stringType},
				},
				Resolve: createProfile,
			},
			{
				Name: "updateProfile",
				Type: kino.NonNull(kino.Named("Profile")),
				Args: []kino.ArgumentDescriptor{
					{Name: "id", Type: idType},
					{Name: "info", Type: stringType},
					{Name: "avatar", Type: stringType},
				},
				Resolve: updateProfile,
			},
			{
				Name: "createComment",
				Type: kino.NonNull(kino.Named("Comment")),
				Args: []kino.ArgumentDescriptor{
					{Name: "id", Type: idType, Description: "The film being commented on."},
					{Name: "content", Type: stringNN},
				},
				Resolve: createComment,
			},
		},
	}
}

func authPayloadType() *kino.TypeDescriptor {
	return &kino.TypeDescriptor{
		Name: "AuthPayload",
		Fields: []*kino.FieldDescriptor{
			{Name: "token", Type: stringNN},
			{Name: "user", Type: kino.NonNull(kino.Named("User"))},
		},
	}
}

func userType() *kino.TypeDescriptor {
	return &kino.TypeDescriptor{
		Name: "User",
		Fields: []*kino.FieldDescriptor{
			{Name: "id", Type: idType},
			{Name: "name", Type: stringType},
			{Name: "email", Type: stringNN},
			{
				Name:    "Profile",
				Type:    kino.Named("Profile"),
				Resolve: resolveUserProfile,
			},
			{
				Name:    "comments",
				Type:    listOf("Comment"),
				Resolve: resolveUserComments,
			},
		},
	}
}

func profileType() *kino.TypeDescriptor {
	return &kino.TypeDescriptor{
		Name: "Profile",
		Fields: []*kino.FieldDescriptor{
			{Name: "id", Type: idType},
			{Name: "info", Type: stringType},
			{Name: "subscribeType", Type: stringType},
			{Name: "avatar", Type: stringType},
		},
	}
}

func filmType() *kino.TypeDescriptor {
	fields := []*kino.FieldDescriptor{{Name: "id", Type: idType}}
	for _, name := range []string{
		"img", "title", "description", "categories", "itemTitle",
		"ratingKinopoisk", "ratingIMDb", "trailer", "more",
	} {
		fields = append(fields, &kino.FieldDescriptor{Name: name, Type: stringType})
	}
	fields = append(fields,
		&kino.FieldDescriptor{Name: "releaseYear", Type: intType},
		&kino.FieldDescriptor{Name: "country", Type: jsonNN},
		&kino.FieldDescriptor{Name: "directors", Type: jsonNN},
		&kino.FieldDescriptor{Name: "geners", Type: jsonNN, Property: "genres"},
		&kino.FieldDescriptor{Name: "cast", Type: jsonNN},
		&kino.FieldDescriptor{Name: "kino", Type: jsonNN},
		&kino.FieldDescriptor{Name: "miniImg", Type: stringType},
		&kino.FieldDescriptor{Name: "added", Type: dateTimeType},
		&kino.FieldDescriptor{
			Name:    "comments",
			Type:    listOf("Comment"),
			Resolve: resolveFilmComments,
		},
	)
	return &kino.TypeDescriptor{
		Name:        "Film",
		Description: "A catalog entry.",
		Fields:      fields,
	}
}

func commentType() *kino.TypeDescriptor {
	return &kino.TypeDescriptor{
		Name: "Comment",
		Fields: []*kino.FieldDescriptor{
			{Name: "id", Type: idType},
			{Name: "content", Type: stringNN},
			{Name: "createdAt", Type: dateTimeType},
			{
				Name:        "User",
				Description: "The comment's author.",
				Type:        kino.Named("User"),
				Resolve:     resolveCommentAuthor,
			},
			{
				Name:    "film",
				Type:    kino.Named("Film"),
				Resolve: resolveCommentFilm,
			},
		},
	}
}
