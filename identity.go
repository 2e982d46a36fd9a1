package kino

import "maps"

// Identity is the acting principal of a request. The zero value is the
// anonymous identity.
type Identity struct {
	// Subject is the user id carried by a verified token.
	Subject  string
	Metadata map[string]any
}

// Anonymous returns the identity used when no valid token is presented.
func Anonymous() Identity {
	return Identity{}
}

// Authenticated reports whether a verified subject is present.
func (i Identity) Authenticated() bool {
	return i.Subject != ""
}

// Clone returns a copy guarding the metadata map from mutation.
func (i Identity) Clone() Identity {
	clone := i
	if len(i.Metadata) > 0 {
		clone.Metadata = maps.Clone(i.Metadata)
	}
	return clone
}
