// Package envelope recognises the response wrappers used by the contacts
// backend and unwraps them into canonical values.
//
// The backend is inconsistent about how it wraps collections: a paginator
// wrapper, a flat {success, data: [...]} wrapper or a bare array may all come
// back from the same endpoint. Each shape is described by a JSON schema and the
// first schema that validates decides how the body is decoded.
package envelope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/contactdesk/pkg/models"
)

var ErrUnexpectedFormat = errors.New("unexpected response format")

type Shape int

const (
	ShapeUnknown Shape = iota
	ShapePaginated
	ShapeFlat
	ShapeBare
	ShapeRecordWrapped
	ShapeRecord
	ShapeExport
)

func (s Shape) String() string {
	switch s {
	case ShapePaginated:
		return "paginated"
	case ShapeFlat:
		return "flat"
	case ShapeBare:
		return "bare"
	case ShapeRecordWrapped:
		return "record_wrapped"
	case ShapeRecord:
		return "record"
	case ShapeExport:
		return "export"
	default:
		return "unknown"
	}
}

var schemaSources = map[Shape]string{
	ShapePaginated: `{
		"type": "object",
		"required": ["data"],
		"properties": {
			"data": {
				"type": "object",
				"required": ["data"],
				"properties": {"data": {"type": "array"}}
			}
		}
	}`,
	ShapeFlat: `{
		"type": "object",
		"required": ["data"],
		"properties": {"data": {"type": "array"}}
	}`,
	ShapeBare: `{"type": "array"}`,
	ShapeRecordWrapped: `{
		"type": "object",
		"required": ["data"],
		"properties": {
			"data": {"type": "object", "required": ["id"]}
		}
	}`,
	ShapeRecord: `{"type": "object", "required": ["id"]}`,
	ShapeExport: `{
		"type": "object",
		"required": ["success", "data"],
		"properties": {
			"success": {"const": true},
			"data": {"type": "string"}
		}
	}`,
}

// Candidate orders per use. Paginated must be tried before record_wrapped
// because both have an object under "data".
var (
	listShapes   = []Shape{ShapePaginated, ShapeFlat, ShapeBare}
	recordShapes = []Shape{ShapeRecordWrapped, ShapeRecord}
	exportShapes = []Shape{ShapeExport}
)

// Classifier holds the compiled envelope schemas.
type Classifier struct {
	mu      sync.RWMutex
	schemas map[Shape]*jsonschema.Schema
}

func NewClassifier() (*Classifier, error) {
	c := &Classifier{schemas: make(map[Shape]*jsonschema.Schema)}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustClassifier is NewClassifier for the built-in schemas, which always compile.
func MustClassifier() *Classifier {
	c, err := NewClassifier()
	if err != nil {
		panic(err)
	}
	return c
}

// Reload compiles all envelope schemas.
func (c *Classifier) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	compiled := make(map[Shape]*jsonschema.Schema, len(schemaSources))
	for shape, src := range schemaSources {
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal([]byte(src), rs); err != nil {
			return fmt.Errorf("compile %s schema: %w", shape, err)
		}
		compiled[shape] = rs
	}

	c.schemas = compiled
	return nil
}

// Classify returns the first candidate shape raw satisfies, or ShapeUnknown.
func (c *Classifier) Classify(ctx context.Context, raw []byte, candidates ...Shape) (Shape, error) {
	if len(candidates) == 0 {
		candidates = listShapes
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, shape := range candidates {
		rs, ok := c.schemas[shape]
		if !ok {
			continue
		}
		keyErrs, err := rs.ValidateBytes(ctx, raw)
		if err != nil {
			return ShapeUnknown, fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
		}
		if len(keyErrs) == 0 {
			return shape, nil
		}
	}
	return ShapeUnknown, nil
}

type paginatedEnvelope struct {
	Data struct {
		Data []models.Contact `json:"data"`
	} `json:"data"`
}

type flatEnvelope struct {
	Data []models.Contact `json:"data"`
}

// Contacts unwraps a list response into one flat ordered slice, whatever the
// envelope. Unknown envelopes return ErrUnexpectedFormat.
func (c *Classifier) Contacts(ctx context.Context, raw []byte) ([]models.Contact, Shape, error) {
	shape, err := c.Classify(ctx, raw, listShapes...)
	if err != nil {
		return nil, ShapeUnknown, err
	}

	var out []models.Contact
	switch shape {
	case ShapePaginated:
		var env paginatedEnvelope
		err = json.Unmarshal(raw, &env)
		out = env.Data.Data
	case ShapeFlat:
		var env flatEnvelope
		err = json.Unmarshal(raw, &env)
		out = env.Data
	case ShapeBare:
		err = json.Unmarshal(raw, &out)
	default:
		return nil, ShapeUnknown, ErrUnexpectedFormat
	}
	if err != nil {
		return nil, shape, fmt.Errorf("%w: decode %s envelope: %v", ErrUnexpectedFormat, shape, err)
	}

	if out == nil {
		out = []models.Contact{}
	}
	return out, shape, nil
}

// Single unwraps a detail response: {data: {...}} or the bare record.
func (c *Classifier) Single(ctx context.Context, raw []byte) (*models.Contact, error) {
	shape, err := c.Classify(ctx, raw, recordShapes...)
	if err != nil {
		return nil, err
	}

	var rec models.Contact
	switch shape {
	case ShapeRecordWrapped:
		var env struct {
			Data models.Contact `json:"data"`
		}
		err = json.Unmarshal(raw, &env)
		rec = env.Data
	case ShapeRecord:
		err = json.Unmarshal(raw, &rec)
	default:
		return nil, ErrUnexpectedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnexpectedFormat, shape, err)
	}
	return &rec, nil
}

// CSV extracts the export text from {success: true, data: "<csv>"}.
func (c *Classifier) CSV(ctx context.Context, raw []byte) (string, error) {
	shape, err := c.Classify(ctx, raw, exportShapes...)
	if err != nil {
		return "", err
	}
	if shape != ShapeExport {
		return "", ErrUnexpectedFormat
	}

	var env struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("%w: decode export: %v", ErrUnexpectedFormat, err)
	}
	return env.Data, nil
}

// Result is the success/message pair mutation endpoints answer with.
type Result struct {
	OK      bool
	Message string
}

// Status reads a mutation response. A missing success field counts as
// success: the backend answers some deletes with an empty object. Only a
// string message is reported; lists or objects under "message" are ignored.
func Status(raw []byte) Result {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		// not an object, so there is no success field either
		return Result{OK: true}
	}

	var msg string
	if m, ok := body["message"]; ok {
		if err := json.Unmarshal(m, &msg); err != nil {
			msg = ""
		}
	}

	var success any
	if v, ok := body["success"]; ok {
		if err := json.Unmarshal(v, &success); err != nil {
			return Result{OK: false, Message: msg}
		}
	}

	switch v := success.(type) {
	case nil:
		return Result{OK: true, Message: msg}
	case bool:
		return Result{OK: v, Message: msg}
	default:
		return Result{OK: false, Message: msg}
	}
}
