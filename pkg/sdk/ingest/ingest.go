// Package ingest validates user-edited structured input before it is
// uploaded for manual ingestion. Failures come back as *ValidationError
// values that point at the offending location, never as raw parser output.
package ingest

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/sync/singleflight"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Kind names a manual ingestion payload. It is also the import kind of
// POST /imports/{kind}.
type Kind string

const (
	KindFormResponses Kind = "form-responses"
	KindTankInventory Kind = "tank-inventory"
)

// Kinds lists every kind with a bundled schema.
func Kinds() []Kind {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil
	}
	kinds := make([]Kind, 0, len(entries))
	for _, e := range entries {
		kinds = append(kinds, Kind(strings.TrimSuffix(e.Name(), ".json")))
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// maxMessage bounds the length of a reported message.
const maxMessage = 200

// ValidationError is a user-correctable problem with manual input.
type ValidationError struct {
	Kind Kind
	// Path is a JSON path into the input, e.g. "$.0.week".
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s input at '%s': %s", e.Kind, e.Path, e.Message)
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// Validator checks input against the bundled schemas. Compiled schemas are
// cached; concurrent first uses of one kind compile it once.
type Validator struct {
	schemas *lru.Cache[Kind, *jsonschema.Schema]
	compile singleflight.Group
}

// NewValidator creates a validator caching up to cacheSize compiled schemas.
func NewValidator(cacheSize int) (*Validator, error) {
	cache, err := lru.New[Kind, *jsonschema.Schema](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create schema cache: %w", err)
	}
	return &Validator{schemas: cache}, nil
}

// Validate parses raw and checks it against the schema of kind. It returns
// the decoded document on success and a *ValidationError when the input
// is malformed. Other errors (unknown kind, broken schema) are not the
// user's to fix.
func (v *Validator) Validate(kind Kind, raw []byte) (any, error) {
	schema, err := v.schema(kind)
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, &ValidationError{Kind: kind, Path: "$", Message: truncate("not valid JSON: " + err.Error())}
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return nil, fmt.Errorf("validate %s input: %w", kind, err)
		}
		leaf := deepest(ve)
		return nil, &ValidationError{Kind: kind, Path: jsonPath(leaf.InstanceLocation), Message: truncate(leaf.Error())}
	}
	return doc, nil
}

// Len returns the number of cached compiled schemas.
func (v *Validator) Len() int {
	return v.schemas.Len()
}

func (v *Validator) schema(kind Kind) (*jsonschema.Schema, error) {
	if s, ok := v.schemas.Get(kind); ok {
		return s, nil
	}

	compiled, err, _ := v.compile.Do(string(kind), func() (any, error) {
		s, err := compileSchema(kind)
		if err != nil {
			return nil, err
		}
		v.schemas.Add(kind, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return compiled.(*jsonschema.Schema), nil
}

func compileSchema(kind Kind) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile("schemas/" + string(kind) + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown ingestion kind %q", kind)
	}

	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s schema: %w", kind, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)

	url := string(kind) + ".json"
	if err := compiler.AddResource(url, parsed); err != nil {
		return nil, fmt.Errorf("add %s schema resource: %w", kind, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", kind, err)
	}
	return schema, nil
}

// deepest follows the first cause down to the most specific failure.
func deepest(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// jsonPath turns ["", "0", "week"] into "$.0.week".
func jsonPath(location []string) string {
	parts := make([]string, 0, len(location))
	for _, part := range location {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "$"
	}
	return "$." + strings.Join(parts, ".")
}

func truncate(msg string) string {
	if len(msg) > maxMessage {
		return msg[:maxMessage] + "... (truncated)"
	}
	return msg
}
