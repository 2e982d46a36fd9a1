package kino

import (
	"fmt"
	"sort"
	"strings"
)

// Permissions maps "Type.field" or "Type.*" to the rule guarding it. It is
// consulted after a rule set on the field descriptor and before the type's
// rule.
type Permissions map[string]Rule

// Keys returns the coordinates in sorted order.
func (p Permissions) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p Permissions) lookup(typeName, fieldName string) (Rule, bool) {
	if rule, ok := p[typeName+"."+fieldName]; ok && rule != nil {
		return rule, true
	}
	if rule, ok := p[typeName+".*"]; ok && rule != nil {
		return rule, true
	}
	return nil, false
}

func (p Permissions) validate(types map[string]*TypeDescriptor) error {
	for _, key := range p.Keys() {
		typeName, fieldName, ok := strings.Cut(key, ".")
		if !ok || typeName == "" || fieldName == "" {
			return fmt.Errorf("permissions: malformed coordinate %q", key)
		}
		if p[key] == nil {
			return fmt.Errorf("permissions: nil rule for %q", key)
		}
		typ, ok := types[typeName]
		if !ok {
			return fmt.Errorf("permissions: unknown type in %q", key)
		}
		if fieldName == "*" {
			continue
		}
		if typ.field(fieldName) == nil {
			return fmt.Errorf("permissions: unknown field in %q", key)
		}
	}
	return nil
}

// PermissionAudit captures one rule decision for logging.
type PermissionAudit struct {
	Rule      string
	TypeName  string
	FieldName string
	Path      string
	Subject   string
	RequestID string
	Allowed   bool
	Reason    error
}

// LogPermissionDecision writes the audit entry using the provided logger.
// Denials log at info; grants only at debug.
func LogPermissionDecision(logger Logger, audit PermissionAudit) {
	if logger == nil {
		return
	}

	fields := Fields{
		"rule":  audit.Rule,
		"field": audit.TypeName + "." + audit.FieldName,
	}
	if audit.Path != "" {
		fields["path"] = audit.Path
	}
	if audit.Subject != "" {
		fields["subject"] = audit.Subject
	} else {
		fields["subject"] = "anonymous"
	}
	if audit.RequestID != "" {
		fields["request_id"] = audit.RequestID
	}
	if audit.Reason != nil {
		fields["reason"] = audit.Reason.Error()
	}

	log := WithFields(logger, fields)
	if audit.Allowed {
		log.Debug("permission granted")
		return
	}
	if _, ok := logger.(loggerWithFields); ok {
		log.Info("permission denied")
		return
	}
	logger.Info("permission denied: %s.%s by %s", audit.TypeName, audit.FieldName, audit.Rule)
}
