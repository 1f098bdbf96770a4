// Package schema validates JSON request bodies against a fixed set of named
// JSON Schemas compiled once at startup.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/inkpost/apiserver/internal/apperr"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	LoginUser        = "login-user"
	RegisterUser     = "register-user"
	CreateUpdatePost = "create-update-post"
)

const baseURL = "https://inkpost.dev/schemas/"

//go:embed schemas/*.json
var schemaFiles embed.FS

// FieldError is a single schema violation.
type FieldError struct {
	Path    string
	Message string
}

// FieldErrors holds every violation found for a payload, in evaluation order.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.String())
	}
	return strings.Join(parts, "; ")
}

func (fe FieldError) String() string {
	if fe.Path == "" {
		return fe.Message
	}
	return fe.Path + ": " + fe.Message
}

// Validator is an immutable registry of compiled schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles every embedded schema.
func New() (*Validator, error) {
	return NewFromFS(schemaFiles, "schemas")
}

// NewFromFS compiles every *.json file under dir; each schema is registered
// under its file name without the extension.
func NewFromFS(fsys fs.FS, dir string) (*Validator, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		if err := compiler.AddResource(baseURL+entry.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		names = append(names, name)
	}

	schemas := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		compiled, err := compiler.Compile(baseURL + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		schemas[name] = compiled
	}

	return &Validator{schemas: schemas}, nil
}

// Validate strips top-level fields the named schema does not declare and then
// validates what is left. The returned error carries the first violation.
func (v *Validator) Validate(name string, payload map[string]any) error {
	compiled, ok := v.schemas[name]
	if !ok {
		return apperr.Internal("Unknown schema.", fmt.Errorf("schema %q is not registered", name))
	}

	stripUndeclared(compiled, payload)

	err := compiled.Validate(payload)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return apperr.Internal("Schema validation failed.", err)
	}

	fieldErrors := collect(verr, nil)
	if len(fieldErrors) == 0 {
		fieldErrors = FieldErrors{{Message: verr.Message}}
	}
	return &apperr.Error{
		Kind:    apperr.KindValidation,
		Message: fieldErrors[0].String(),
		Err:     fieldErrors,
	}
}

// Decode reads a single JSON object from r, validates it against the named
// schema and stores the stripped payload into dst. A body cut short by
// http.MaxBytesReader is reported as too large.
func (v *Validator) Decode(name string, r io.Reader, dst any) error {
	payload := map[string]any{}
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return decodeError(err)
	}
	if payload == nil {
		return errInvalidJSON
	}
	// The body must hold exactly one value.
	if err := decoder.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		if err != nil {
			return decodeError(err)
		}
		return errInvalidJSON
	}

	if err := v.Validate(name, payload); err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return apperr.Internal("Failed to read payload.", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errInvalidJSON
	}
	return nil
}

var errInvalidJSON = apperr.Validation("Invalid JSON body.")

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.TooLarge("Request entity too large.")
	}
	return errInvalidJSON
}

func stripUndeclared(compiled *jsonschema.Schema, payload map[string]any) {
	declared := compiled.Properties
	if len(declared) == 0 && compiled.Ref != nil {
		declared = compiled.Ref.Properties
	}
	for key := range payload {
		if _, ok := declared[key]; !ok {
			delete(payload, key)
		}
	}
}

func collect(verr *jsonschema.ValidationError, out FieldErrors) FieldErrors {
	if len(verr.Causes) == 0 {
		return append(out, FieldError{
			Path:    strings.TrimPrefix(verr.InstanceLocation, "/"),
			Message: verr.Message,
		})
	}
	for _, cause := range verr.Causes {
		out = collect(cause, out)
	}
	return out
}
