package kino

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrNotOwner        = errors.New("identity does not own the resource")
	ErrNoRuleMatched   = errors.New("no rule granted access")
)

// RuleRequest is everything a rule may inspect. Rules run before the
// field's resolver, so Source is the parent value, never the field value.
type RuleRequest struct {
	Identity  Identity
	TypeName  string
	FieldName string
	Source    any
	Args      Args
	Path      ast.Path
	// State is handed to the resolver when the rule allows the field.
	State *FieldState
}

// Coordinate returns the "Type.field" name of the guarded field.
func (r RuleRequest) Coordinate() string {
	return r.TypeName + "." + r.FieldName
}

// Rule decides whether a field may be resolved. A nil error allows access.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, req RuleRequest) error
}

type ruleFunc struct {
	name string
	fn   func(context.Context, RuleRequest) error
}

func (r ruleFunc) Name() string { return r.name }

func (r ruleFunc) Evaluate(ctx context.Context, req RuleRequest) error {
	return r.fn(ctx, req)
}

// NewRule builds a named rule from fn.
func NewRule(name string, fn func(context.Context, RuleRequest) error) Rule {
	return ruleFunc{name: name, fn: fn}
}

// Allow grants access to everyone, including anonymous callers.
func Allow() Rule {
	return ruleFunc{name: "allow", fn: func(context.Context, RuleRequest) error { return nil }}
}

// RequireAuthenticated grants access to any verified identity.
func RequireAuthenticated() Rule {
	return ruleFunc{name: "requireAuthenticated", fn: func(_ context.Context, req RuleRequest) error {
		if !req.Identity.Authenticated() {
			return ErrUnauthenticated
		}
		return nil
	}}
}

// OwnerFunc returns the subject owning the resource addressed by req.
type OwnerFunc func(ctx context.Context, req RuleRequest) (string, error)

// RequireOwner grants access when the acting identity owns the resource.
// The owner lookup only runs for authenticated callers.
func RequireOwner(resource string, owner OwnerFunc) Rule {
	name := "requireOwner"
	if resource != "" {
		name = fmt.Sprintf("requireOwner(%s)", resource)
	}
	return ruleFunc{name: name, fn: func(ctx context.Context, req RuleRequest) error {
		if !req.Identity.Authenticated() {
			return ErrUnauthenticated
		}
		if owner == nil {
			return fmt.Errorf("%s: no owner lookup configured", name)
		}
		ownerID, err := owner(ctx, req)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if ownerID == "" || ownerID != req.Identity.Subject {
			return ErrNotOwner
		}
		return nil
	}}
}

// All grants access only when every rule does. Evaluation stops at the
// first rejection.
func All(rules ...Rule) Rule {
	return ruleFunc{name: compositeName("all", rules), fn: func(ctx context.Context, req RuleRequest) error {
		for _, rule := range rules {
			if rule == nil {
				continue
			}
			if err := rule.Evaluate(ctx, req); err != nil {
				return err
			}
		}
		return nil
	}}
}

// Any grants access when at least one rule does.
func Any(rules ...Rule) Rule {
	return ruleFunc{name: compositeName("any", rules), fn: func(ctx context.Context, req RuleRequest) error {
		var errs []error
		for _, rule := range rules {
			if rule == nil {
				continue
			}
			err := rule.Evaluate(ctx, req)
			if err == nil {
				return nil
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return ErrNoRuleMatched
		}
		return errors.Join(errs...)
	}}
}

func compositeName(kind string, rules []Rule) string {
	names := make([]string, 0, len(rules))
	for _, rule := range rules {
		if rule != nil {
			names = append(names, rule.Name())
		}
	}
	return kind + "(" + strings.Join(names, ",") + ")"
}
