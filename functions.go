package convexgen

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// FunctionKind is the registration kind of an entry point.
type FunctionKind string

// Function kinds.
const (
	KindQuery            FunctionKind = "query"
	KindMutation         FunctionKind = "mutation"
	KindAction           FunctionKind = "action"
	KindInternalQuery    FunctionKind = "internalQuery"
	KindInternalMutation FunctionKind = "internalMutation"
	KindInternalAction   FunctionKind = "internalAction"
)

// FunctionKinds lists every registration kind in a stable order.
var FunctionKinds = []FunctionKind{
	KindQuery, KindMutation, KindAction,
	KindInternalQuery, KindInternalMutation, KindInternalAction,
}

// Valid reports whether k is a known registration kind.
func (k FunctionKind) Valid() bool {
	for _, known := range FunctionKinds {
		if k == known {
			return true
		}
	}

	return false
}

// Internal reports whether the function is only callable from other functions.
func (k FunctionKind) Internal() bool {
	return strings.HasPrefix(string(k), "internal")
}

// HandlerFunc is the opaque implementation of an entry point. It receives
// arguments that already passed validation.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Function is a registered entry point.
type Function struct {
	// Module is the module path without extension, e.g. "users" or "admin/users".
	Module string
	// Name is the export name; the default export is named "default".
	Name string
	Kind FunctionKind

	// Args are the declared arguments. A nil slice means the function declares
	// no args validator and accepts any record.
	Args []*Field

	// Returns is the declared return type, or nil. Return values are not validated.
	Returns *Type

	Handler HandlerFunc

	// Source is the handler's source text when the function was parsed.
	Source string
	Span   Span
}

// Path returns the function's address, "module:name".
func (f *Function) Path() string {
	return f.Module + ":" + f.Name
}

// Registry holds the entry points of a deployment, keyed by path.
type Registry struct {
	schema *Schema

	mu    sync.RWMutex
	funcs map[string]*Function
}

// NewRegistry creates an empty registry whose argument references resolve
// against schema. A nil schema accepts no id<T> arguments.
func NewRegistry(schema *Schema) *Registry {
	return &Registry{
		schema: schema,
		funcs:  make(map[string]*Function),
	}
}

// Schema returns the schema the registry resolves references against.
func (r *Registry) Schema() *Schema {
	return r.schema
}

// Register adds fn to the registry.
func (r *Registry) Register(fn *Function) error {
	if err := r.check(fn); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path := fn.Path()
	if _, ok := r.funcs[path]; ok {
		return &DuplicateFunctionError{Path: path}
	}

	r.funcs[path] = fn

	return nil
}

func (r *Registry) check(fn *Function) error {
	if fn == nil {
		return fmt.Errorf("%w: nil function", ErrInvalidName)
	}

	if fn.Module == "" || !isIdentifier(fn.Name) {
		return fmt.Errorf("%w: function %q", ErrInvalidName, fn.Path())
	}

	if !fn.Kind.Valid() {
		return fmt.Errorf("%s: unknown function kind %q", fn.Path(), fn.Kind)
	}

	if err := checkFields(fn.Path(), fn.Args); err != nil {
		return err
	}

	if fn.Returns != nil {
		if err := checkType(fn.Path()+".returns", fn.Returns); err != nil {
			return err
		}
	}

	var errs []error

	visit := func(path string, t *Type) {
		if t.Kind == KindID && (r.schema == nil || !r.schema.HasTable(t.Table)) {
			errs = append(errs, &UnresolvedReferenceError{Path: path, Table: t.Table})
		}
	}

	for _, f := range fn.Args {
		f.Type.walk(fn.Path()+"."+f.Name, visit)
	}

	fn.Returns.walk(fn.Path()+".returns", visit)

	return errors.Join(errs...)
}

// Bind attaches a handler to a registered function.
func (r *Registry) Bind(path string, handler HandlerFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn, ok := r.funcs[path]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFunction, path)
	}

	bound := *fn
	bound.Handler = handler
	r.funcs[path] = &bound

	return nil
}

// Lookup returns the function registered at path.
func (r *Registry) Lookup(path string) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.funcs[path]

	return fn, ok
}

// Functions returns every registered function sorted by path.
func (r *Registry) Functions() []*Function {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Function, 0, len(r.funcs))
	for _, fn := range r.funcs {
		out = append(out, fn)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })

	return out
}

// Modules returns the distinct module paths, sorted.
func (r *Registry) Modules() []string {
	seen := make(map[string]bool)

	var out []string

	for _, fn := range r.Functions() {
		if !seen[fn.Module] {
			seen[fn.Module] = true
			out = append(out, fn.Module)
		}
	}

	return out
}

// ValidateArgs checks args against the declared arguments of the function at
// path. The record is closed: undeclared arguments are errors.
func (r *Registry) ValidateArgs(path string, args map[string]any) error {
	fn, ok := r.Lookup(path)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFunction, path)
	}

	if fn.Args == nil {
		return nil
	}

	return ValidateFields(path, fn.Args, args)
}

// Call validates args and invokes the function's handler.
func (r *Registry) Call(ctx context.Context, path string, args map[string]any) (any, error) {
	if err := r.ValidateArgs(path, args); err != nil {
		return nil, err
	}

	fn, _ := r.Lookup(path)
	if fn.Handler == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoHandler, path)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}

	return fn.Handler(ctx, args)
}
