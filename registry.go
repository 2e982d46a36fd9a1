package kino

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"

	gql "github.com/graphql-go/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

const (
	QueryType    = "Query"
	MutationType = "Mutation"
)

var nameRE = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// ResolverFunc produces the value of one field.
type ResolverFunc func(ctx context.Context, p ResolveParams) (any, error)

// TypeRef names a GraphQL type, optionally wrapped in list or non-null.
type TypeRef struct {
	name    string
	nonNull bool
	elem    *TypeRef
}

func Named(name string) TypeRef {
	return TypeRef{name: name}
}

func NonNull(t TypeRef) TypeRef {
	t.nonNull = true
	return t
}

func ListOf(t TypeRef) TypeRef {
	elem := t
	return TypeRef{elem: &elem}
}

// NamedType returns the innermost type name.
func (t TypeRef) NamedType() string {
	if t.elem != nil {
		return t.elem.NamedType()
	}
	return t.name
}

func (t TypeRef) String() string {
	return t.astType().String()
}

func (t TypeRef) astType() *ast.Type {
	if t.elem != nil {
		return &ast.Type{Elem: t.elem.astType(), NonNull: t.nonNull}
	}
	return &ast.Type{NamedType: t.name, NonNull: t.nonNull}
}

type ArgumentDescriptor struct {
	Name        string
	Description string
	Type        TypeRef
}

// FieldDescriptor declares a field, its arguments, resolver and rule.
// Fields without a resolver read Property (or the field name) from the
// parent value.
type FieldDescriptor struct {
	Name        string
	Description string
	Type        TypeRef
	Args        []ArgumentDescriptor
	Resolve     ResolverFunc
	Property    string
	Rule        Rule
}

// TypeDescriptor declares an object type. Rule applies to every field that
// sets none of its own.
type TypeDescriptor struct {
	Name        string
	Description string
	Fields      []*FieldDescriptor
	Rule        Rule
}

func (t *TypeDescriptor) field(name string) *FieldDescriptor {
	for _, f := range t.Fields {
		if f != nil && f.Name == name {
			return f
		}
	}
	return nil
}

// RegistryConfig lists everything the registry knows. Nothing is
// registered implicitly.
type RegistryConfig struct {
	Types       []*TypeDescriptor
	Scalars     []ScalarDescriptor
	Permissions Permissions
	// Fallback guards fields no other rule covers. Defaults to
	// RequireAuthenticated.
	Fallback Rule
}

// Registry is the immutable, validated schema. Build it once at startup and
// share it freely.
type Registry struct {
	types      map[string]*TypeDescriptor
	order      []string
	scalars    map[string]ScalarDescriptor
	rules      map[string]Rule
	fallback   Rule
	sdl        string
	schema     *ast.Schema
	executable *gql.Schema
}

// NewRegistry validates cfg, compiles the validation schema and builds the
// executable one.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	r := &Registry{
		types:    make(map[string]*TypeDescriptor, len(cfg.Types)),
		scalars:  builtinScalars(),
		rules:    map[string]Rule{},
		fallback: cfg.Fallback,
	}
	if r.fallback == nil {
		r.fallback = RequireAuthenticated()
	}

	var custom []ScalarDescriptor
	for _, scalar := range cfg.Scalars {
		if err := checkName("scalar", scalar.Name); err != nil {
			return nil, err
		}
		if _, exists := r.scalars[scalar.Name]; exists {
			return nil, fmt.Errorf("registry: duplicate scalar %s", scalar.Name)
		}
		if scalar.Serialize == nil {
			return nil, fmt.Errorf("registry: scalar %s has no serializer", scalar.Name)
		}
		r.scalars[scalar.Name] = scalar
		custom = append(custom, scalar)
	}

	for _, desc := range cfg.Types {
		if desc == nil {
			continue
		}
		if err := checkName("type", desc.Name); err != nil {
			return nil, err
		}
		if _, exists := r.types[desc.Name]; exists {
			return nil, fmt.Errorf("registry: duplicate type %s", desc.Name)
		}
		if _, exists := r.scalars[desc.Name]; exists {
			return nil, fmt.Errorf("registry: type %s collides with a scalar", desc.Name)
		}
		copied, err := copyType(desc)
		if err != nil {
			return nil, err
		}
		r.types[desc.Name] = copied
		r.order = append(r.order, desc.Name)
	}

	if _, ok := r.types[QueryType]; !ok {
		return nil, errors.New("registry: a Query type is required")
	}

	for _, name := range r.order {
		for _, field := range r.types[name].Fields {
			target := field.Type.NamedType()
			_, isType := r.types[target]
			_, isScalar := r.scalars[target]
			if !isType && !isScalar {
				return nil, fmt.Errorf("registry: %s.%s references unknown type %s", name, field.Name, target)
			}
			for _, arg := range field.Args {
				if _, ok := r.scalars[arg.Type.NamedType()]; !ok {
					return nil, fmt.Errorf("registry: argument %s.%s(%s) must be a scalar", name, field.Name, arg.Name)
				}
			}
		}
	}

	if err := cfg.Permissions.validate(r.types); err != nil {
		return nil, err
	}

	for _, name := range r.order {
		typ := r.types[name]
		for _, field := range typ.Fields {
			r.rules[name+"."+field.Name] = resolveRule(field, typ, cfg.Permissions, r.fallback)
		}
	}

	if err := r.compile(custom); err != nil {
		return nil, err
	}
	executable, err := r.buildExecutable()
	if err != nil {
		return nil, err
	}
	r.executable = executable
	return r, nil
}

// resolveRule applies precedence: field descriptor, permission table
// coordinate, permission table wildcard, type descriptor, fallback.
func resolveRule(field *FieldDescriptor, typ *TypeDescriptor, perms Permissions, fallback Rule) Rule {
	if field.Rule != nil {
		return field.Rule
	}
	if rule, ok := perms.lookup(typ.Name, field.Name); ok {
		return rule
	}
	if typ.Rule != nil {
		return typ.Rule
	}
	return fallback
}

func copyType(desc *TypeDescriptor) (*TypeDescriptor, error) {
	copied := *desc
	copied.Fields = make([]*FieldDescriptor, 0, len(desc.Fields))
	seen := map[string]bool{}

	for _, field := range desc.Fields {
		if field == nil {
			continue
		}
		if err := checkName("field "+desc.Name, field.Name); err != nil {
			return nil, err
		}
		if seen[field.Name] {
			return nil, fmt.Errorf("registry: duplicate field %s.%s", desc.Name, field.Name)
		}
		seen[field.Name] = true
		if field.Type.NamedType() == "" {
			return nil, fmt.Errorf("registry: %s.%s has no type", desc.Name, field.Name)
		}

		args := map[string]bool{}
		for _, arg := range field.Args {
			if err := checkName("argument "+desc.Name+"."+field.Name, arg.Name); err != nil {
				return nil, err
			}
			if args[arg.Name] {
				return nil, fmt.Errorf("registry: duplicate argument %s.%s(%s)", desc.Name, field.Name, arg.Name)
			}
			args[arg.Name] = true
		}

		f := *field
		f.Args = append([]ArgumentDescriptor(nil), field.Args...)
		copied.Fields = append(copied.Fields, &f)
	}

	if len(copied.Fields) == 0 {
		return nil, fmt.Errorf("registry: type %s declares no fields", desc.Name)
	}
	return &copied, nil
}

func checkName(kind, name string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("registry: invalid %s name %q", kind, name)
	}
	if len(name) > 1 && name[:2] == "__" {
		return fmt.Errorf("registry: %s name %q is reserved", kind, name)
	}
	return nil
}

func (r *Registry) compile(custom []ScalarDescriptor) error {
	doc := &ast.SchemaDocument{}
	for _, scalar := range custom {
		doc.Definitions = append(doc.Definitions, &ast.Definition{
			Kind:        ast.Scalar,
			Name:        scalar.Name,
			Description: scalar.Description,
		})
	}

	for _, name := range r.order {
		typ := r.types[name]
		def := &ast.Definition{
			Kind:        ast.Object,
			Name:        typ.Name,
			Description: typ.Description,
		}
		for _, field := range typ.Fields {
			fd := &ast.FieldDefinition{
				Name:        field.Name,
				Description: field.Description,
				Type:        field.Type.astType(),
			}
			for _, arg := range field.Args {
				fd.Arguments = append(fd.Arguments, &ast.ArgumentDefinition{
					Name:        arg.Name,
					Description: arg.Description,
					Type:        arg.Type.astType(),
				})
			}
			def.Fields = append(def.Fields, fd)
		}
		doc.Definitions = append(doc.Definitions, def)
	}

	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)
	r.sdl = buf.String()

	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: r.sdl})
	if err != nil {
		return fmt.Errorf("registry: compile schema: %w", err)
	}
	r.schema = schema
	return nil
}

// Schema returns the compiled schema used for validation.
func (r *Registry) Schema() *ast.Schema {
	return r.schema
}

// SDL returns the schema in GraphQL schema definition language.
func (r *Registry) SDL() string {
	return r.sdl
}

// Types returns type names in declaration order.
func (r *Registry) Types() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Type(name string) (*TypeDescriptor, bool) {
	typ, ok := r.types[name]
	return typ, ok
}

func (r *Registry) Field(typeName, fieldName string) (*FieldDescriptor, bool) {
	typ, ok := r.types[typeName]
	if !ok {
		return nil, false
	}
	field := typ.field(fieldName)
	return field, field != nil
}

// RuleFor returns the rule guarding typeName.fieldName. Unknown
// coordinates get the fallback rule.
func (r *Registry) RuleFor(typeName, fieldName string) Rule {
	if rule, ok := r.rules[typeName+"."+fieldName]; ok {
		return rule
	}
	return r.fallback
}
