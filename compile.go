package convexgen

import (
	"errors"
	"fmt"
)

// validatorNamespace is the import name of the validator builder, as in
// `import { v } from "convex/values"`.
const validatorNamespace = "v"

// Validator kinds accepted in declarations. float64 is an alias of number.
const (
	validatorOptional = "optional"
	validatorFloat64  = "float64"
)

// OptionSchemaValidation is the defineSchema option that toggles write validation.
const OptionSchemaValidation = "schemaValidation"

// CompileSchema builds a Schema from the defineSchema export of file. Errors are
// wrapped in *DeclError carrying the offending declaration's position; every
// error found is reported.
func CompileSchema(file *File) (*Schema, error) {
	call := file.Schema()
	if call == nil {
		return nil, ErrNoSchema
	}

	c := &compiler{refs: make(map[string]Span)}
	b := NewSchemaBuilder()

	if enabled, ok := call.Options.Option(OptionSchemaValidation); ok {
		b.SetSchemaValidation(enabled)
	}

	var errs []error

	for _, decl := range call.Tables {
		fields, err := c.object(decl.Name, decl.Fields)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		table, err := b.DefineTable(decl.Name, fields...)
		if err != nil {
			errs = append(errs, declErrorf(decl, err))

			continue
		}

		for _, idx := range decl.Indexes {
			if _, err := table.DefineIndex(idx.Name, idx.Fields...); err != nil {
				errs = append(errs, declErrorf(idx, err))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	schema, err := b.Build()
	if err != nil {
		return nil, c.locate(err, call.Span())
	}

	return schema, nil
}

// CompileFunctions returns the exported registrations of a function module.
// Argument references are resolved later, when the functions are registered.
func CompileFunctions(module string, file *File) ([]*Function, error) {
	c := &compiler{refs: make(map[string]Span)}

	var (
		out  []*Function
		errs []error
		seen = make(map[string]bool)
	)

	for _, named := range file.Registrations() {
		reg := named.Registration
		fn := &Function{
			Module: module,
			Name:   named.Name,
			Kind:   FunctionKind(reg.Kind),
			Span:   reg.Span(),
		}

		if !fn.Kind.Valid() {
			errs = append(errs, declErrorf(reg, fmt.Errorf("%s: unknown function kind %q", fn.Path(), reg.Kind)))

			continue
		}

		if seen[fn.Name] {
			errs = append(errs, declErrorf(reg, &DuplicateFunctionError{Path: fn.Path()}))

			continue
		}

		seen[fn.Name] = true

		if args := reg.Args(); args != nil {
			fields, err := c.object(fn.Path(), args)
			if err != nil {
				errs = append(errs, err)

				continue
			}

			if fields == nil {
				fields = []*Field{}
			}

			fn.Args = fields

			if err := checkFields(fn.Path(), fields); err != nil {
				errs = append(errs, declErrorf(args, err))

				continue
			}
		}

		if ret := reg.Returns(); ret != nil {
			typ, optional, err := c.validator(fn.Path()+".returns", ret)
			if err != nil {
				errs = append(errs, err)

				continue
			}

			if optional {
				errs = append(errs, declErrorf(ret, fmt.Errorf("%s.returns: %w", fn.Path(), ErrMisplacedOptional)))

				continue
			}

			fn.Returns = typ
		}

		if h := reg.Handler(); h != nil {
			fn.Source = h.Text
		}

		out = append(out, fn)
	}

	if len(errs) > 0 {
		return out, errors.Join(errs...)
	}

	return out, nil
}

// compiler converts validator expressions into Types, remembering where each
// id<T> reference was declared so unresolved references can be located.
type compiler struct {
	refs map[string]Span
}

func (c *compiler) object(base string, obj *ObjectLiteral) ([]*Field, error) {
	if obj == nil {
		return nil, nil
	}

	var (
		fields []*Field
		errs   []error
	)

	for _, p := range obj.Properties {
		path := joinPath(base, p.Name)

		typ, optional, err := c.validator(path, p.Value)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		fields = append(fields, &Field{Name: p.Name, Type: typ, Optional: optional})
	}

	return fields, errors.Join(errs...)
}

// validator compiles one v.* call. optional is true for v.optional(...), which
// is only meaningful to the caller when the validator is a field value.
func (c *compiler) validator(path string, v *Validator) (typ *Type, optional bool, err error) {
	if v.Namespace != validatorNamespace {
		return nil, false, declErrorf(v, fmt.Errorf("%s: %w: %s.%s", path, ErrUnknownValidator, v.Namespace, v.Kind))
	}

	noArgs := v.Table == nil && v.Object == nil && v.Elem == nil

	switch Kind(v.Kind) {
	case KindString, KindNumber, KindBoolean, KindNull, KindBytes:
		if !noArgs {
			return nil, false, declErrorf(v, fmt.Errorf("%s: v.%s() takes no arguments", path, v.Kind))
		}

		return &Type{Kind: Kind(v.Kind)}, false, nil
	case KindID:
		if v.Table == nil {
			return nil, false, declErrorf(v, fmt.Errorf("%s: %w: v.id needs a table name", path, ErrInvalidIDType))
		}

		c.refs[path] = v.Span()

		return Reference(*v.Table), false, nil
	case KindArray:
		if v.Elem == nil {
			return nil, false, declErrorf(v, fmt.Errorf("%s: %w: v.array needs an element validator", path, ErrInvalidArrayType))
		}

		elem, elemOptional, err := c.validator(path+"[]", v.Elem)
		if err != nil {
			return nil, false, err
		}

		if elemOptional {
			return nil, false, declErrorf(v.Elem, fmt.Errorf("%s[]: %w", path, ErrMisplacedOptional))
		}

		return Array(elem), false, nil
	case KindObject:
		if v.Object == nil {
			return nil, false, declErrorf(v, fmt.Errorf("%s: v.object needs a field map", path))
		}

		fields, err := c.object(path, v.Object)
		if err != nil {
			return nil, false, err
		}

		return Object(fields...), false, nil
	}

	switch v.Kind {
	case validatorFloat64:
		if !noArgs {
			return nil, false, declErrorf(v, fmt.Errorf("%s: v.float64() takes no arguments", path))
		}

		return Number(), false, nil
	case validatorOptional:
		if v.Elem == nil {
			return nil, false, declErrorf(v, fmt.Errorf("%s: v.optional needs a validator", path))
		}

		inner, innerOptional, err := c.validator(path, v.Elem)
		if err != nil {
			return nil, false, err
		}

		if innerOptional {
			return nil, false, declErrorf(v.Elem, fmt.Errorf("%s: %w", path, ErrMisplacedOptional))
		}

		return inner, true, nil
	}

	return nil, false, declErrorf(v, fmt.Errorf("%s: %w: v.%s", path, ErrUnknownValidator, v.Kind))
}

// locate attaches declaration positions to the unresolved references in a
// joined build error. Other errors are positioned at fallback.
func (c *compiler) locate(err error, fallback Span) error {
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}

	out := make([]error, 0, len(errs))

	for _, e := range errs {
		span := fallback

		var unresolved *UnresolvedReferenceError
		if errors.As(e, &unresolved) {
			if s, ok := c.refs[unresolved.Path]; ok {
				span = s
			}
		}

		out = append(out, &DeclError{Span: span, Err: e})
	}

	return errors.Join(out...)
}
