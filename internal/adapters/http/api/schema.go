package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/okian/sessiontrack/pkg/logger"
)

// bodySchema is a JSON Schema for a request body and the message returned
// when a body does not match it.
type bodySchema struct {
	Name       string
	Definition string
	Message    string
}

// Request body schemas. They check JSON types only; required domain fields
// are enforced by the service so callers get field-level validation errors.
var (
	clientSchema = bodySchema{
		Name:    "client",
		Message: "name and birthdate must be strings",
		Definition: `{
			"type": "object",
			"properties": {
				"name": {"type": "string"},
				"birthdate": {"type": "string"},
				"info": {"type": ["string", "null"]}
			}
		}`,
	}
	behaviorSchema = bodySchema{
		Name:    "behavior",
		Message: "name and method must be strings; settings must be an object",
		Definition: `{
			"type": "object",
			"properties": {
				"name": {"type": "string"},
				"method": {"type": "string"},
				"description": {"type": ["string", "null"]},
				"settings": {"type": ["object", "null"]}
			}
		}`,
	}
	skillSchema = bodySchema{
		Name:    "skill",
		Message: "name, method and skill_type must be strings",
		Definition: `{
			"type": "object",
			"properties": {
				"name": {"type": "string"},
				"method": {"type": ["string", "null"]},
				"skill_type": {"type": ["string", "null"]},
				"description": {"type": ["string", "null"]}
			}
		}`,
	}
	startSchema = bodySchema{
		Name:    "session_start",
		Message: "client_id (int) is required",
		Definition: `{
			"type": "object",
			"properties": {
				"client_id": {"type": "integer"}
			},
			"required": ["client_id"]
		}`,
	}
	eventsSchema = bodySchema{
		Name:    "session_events",
		Message: "events must be a list",
		Definition: `{
			"type": "object",
			"properties": {
				"events": {"type": ["array", "null"]}
			}
		}`,
	}
	endSchema = bodySchema{
		Name:    "session_end",
		Message: "events and skill_events must be lists",
		Definition: `{
			"type": "object",
			"properties": {
				"events": {"type": ["array", "null"]},
				"skill_events": {"type": ["array", "null"]}
			}
		}`,
	}
)

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// getCompiledSchema returns a cached compiled schema or compiles and caches it.
func getCompiledSchema(schema bodySchema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	var def any
	if err := json.Unmarshal([]byte(schema.Definition), &def); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	schemaURL := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(schemaURL, def); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}

	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}

// decodeBody reads the request body, checks it against schema and decodes
// it into dst. Numbers are kept as json.Number so event values are not
// rounded through float64. An empty body is treated as {}.
func (o responder) decodeBody(op string, r *http.Request, schema bodySchema, dst any) error {
	raw, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, o.maxBodyLength))
	if err != nil {
		return WrapKind(op, ErrBadRequest, fmt.Errorf("read body: %w", err))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	var doc any
	if err := newDecoder(raw).Decode(&doc); err != nil {
		return WrapKind(op, ErrBadRequest, errInvalidJSON)
	}
	if _, ok := doc.(map[string]any); !ok {
		return WrapKind(op, ErrBadRequest, errInvalidJSON)
	}

	compiled, err := getCompiledSchema(schema)
	if err != nil {
		return Wrap(op, err)
	}
	if err := compiled.Validate(doc); err != nil {
		o.logger.Debug(r.Context(), "request body rejected by schema",
			logger.String("schema", schema.Name),
			logger.Error(err),
		)
		return WrapKind(op, ErrBadRequest, errors.New(schema.Message))
	}

	if err := newDecoder(raw).Decode(dst); err != nil {
		return WrapKind(op, ErrBadRequest, errInvalidJSON)
	}
	return nil
}

func newDecoder(raw []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec
}
