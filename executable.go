package kino

import (
	"fmt"

	gql "github.com/graphql-go/graphql"
	gqlast "github.com/graphql-go/graphql/language/ast"
)

// buildExecutable turns the registered descriptors into a graphql-go schema.
// Every field shares one resolve function that enforces the field's rule
// before its resolver runs.
func (r *Registry) buildExecutable() (*gql.Schema, error) {
	named := make(map[string]gql.Output, len(r.scalars)+len(r.types))
	for name, scalar := range r.scalars {
		named[name] = executableScalar(scalar)
	}

	objects := make(map[string]*gql.Object, len(r.types))
	for _, name := range r.order {
		typ := r.types[name]
		obj := gql.NewObject(gql.ObjectConfig{
			Name:        typ.Name,
			Description: typ.Description,
			Fields: gql.FieldsThunk(func() gql.Fields {
				return r.executableFields(typ, named)
			}),
		})
		objects[name] = obj
		named[name] = obj
	}

	cfg := gql.SchemaConfig{Query: objects[QueryType]}
	if mutation, ok := objects[MutationType]; ok {
		cfg.Mutation = mutation
	}
	schema, err := gql.NewSchema(cfg)
	if err != nil {
		return nil, fmt.Errorf("registry: build executable schema: %w", err)
	}
	return &schema, nil
}

func (r *Registry) executableFields(typ *TypeDescriptor, named map[string]gql.Output) gql.Fields {
	fields := make(gql.Fields, len(typ.Fields))
	for _, field := range typ.Fields {
		args := gql.FieldConfigArgument{}
		for _, arg := range field.Args {
			input, _ := executableType(arg.Type, named).(gql.Input)
			args[arg.Name] = &gql.ArgumentConfig{
				Type:        input,
				Description: arg.Description,
			}
		}
		_, leaf := r.scalars[field.Type.NamedType()]
		fields[field.Name] = &gql.Field{
			Name:        field.Name,
			Description: field.Description,
			Type:        executableType(field.Type, named),
			Args:        args,
			Resolve:     fieldResolver(typ.Name, field, leaf),
		}
	}
	return fields
}

func executableType(t TypeRef, named map[string]gql.Output) gql.Output {
	var out gql.Output
	if t.elem != nil {
		out = gql.NewList(executableType(*t.elem, named))
	} else {
		out = named[t.name]
	}
	if t.nonNull {
		out = gql.NewNonNull(out)
	}
	return out
}

// executableScalar maps built-in scalars onto graphql-go's own and wraps
// custom descriptors. A serializer error yields null, which the executor
// reports when the field is non-null.
func executableScalar(desc ScalarDescriptor) *gql.Scalar {
	switch desc.Name {
	case "ID":
		return gql.ID
	case "String":
		return gql.String
	case "Int":
		return gql.Int
	case "Float":
		return gql.Float
	case "Boolean":
		return gql.Boolean
	}

	return gql.NewScalar(gql.ScalarConfig{
		Name:        desc.Name,
		Description: desc.Description,
		Serialize: func(value interface{}) interface{} {
			out, err := desc.Serialize(unwrapValue(value))
			if err != nil {
				return nil
			}
			return out
		},
		ParseValue: func(value interface{}) interface{} {
			return value
		},
		ParseLiteral: func(valueAST gqlast.Value) interface{} {
			if v, ok := valueAST.(*gqlast.StringValue); ok {
				return v.Value
			}
			return nil
		},
	})
}
