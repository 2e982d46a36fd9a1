package store

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// DocumentKind tags the shape held by a Document.
type DocumentKind string

const (
	DocumentNull   DocumentKind = "null"
	DocumentObject DocumentKind = "object"
	DocumentArray  DocumentKind = "array"
)

var ErrInvalidDocument = errors.New("document must be a JSON object or array")

// Document is a structured JSON value limited to objects and arrays.
// The zero value is a null document.
type Document struct {
	kind DocumentKind
	raw  json.RawMessage
}

// NewDocument encodes v and checks the result is an object or array.
func NewDocument(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("encode document: %w", err)
	}
	return ParseDocument(raw)
}

// MustDocument is NewDocument for values known to be valid.
func MustDocument(v any) Document {
	doc, err := NewDocument(v)
	if err != nil {
		panic(err)
	}
	return doc
}

// ParseDocument validates raw JSON text.
func ParseDocument(raw []byte) (Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Document{}, nil
	}
	if !json.Valid(trimmed) {
		return Document{}, ErrInvalidDocument
	}

	var kind DocumentKind
	switch trimmed[0] {
	case '{':
		kind = DocumentObject
	case '[':
		kind = DocumentArray
	default:
		return Document{}, ErrInvalidDocument
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return Document{}, ErrInvalidDocument
	}

	return Document{kind: kind, raw: compact.Bytes()}, nil
}

func (d Document) Kind() DocumentKind {
	if d.kind == "" {
		return DocumentNull
	}
	return d.kind
}

func (d Document) IsNull() bool {
	return d.Kind() == DocumentNull
}

// Raw returns a copy of the encoded document.
func (d Document) Raw() json.RawMessage {
	if d.IsNull() {
		return json.RawMessage("null")
	}
	out := make(json.RawMessage, len(d.raw))
	copy(out, d.raw)
	return out
}

// Decode unmarshals the document into out.
func (d Document) Decode(out any) error {
	return json.Unmarshal(d.Raw(), out)
}

func (d Document) MarshalJSON() ([]byte, error) {
	return d.Raw(), nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

func (d Document) Value() (driver.Value, error) {
	return string(d.Raw()), nil
}

func (d *Document) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = Document{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan document: unsupported type %T", src)
	}

	doc, err := ParseDocument(raw)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}
