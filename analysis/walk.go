package analysis

import (
	"github.com/rlch/convexgen"
)

// site is where a validator appears.
type site int

const (
	// siteField is the value of a table, object or argument field.
	siteField site = iota
	// siteElem is the element of v.array.
	siteElem
	// siteOptional is the inner validator of v.optional.
	siteOptional
	// siteReturns is a function's returns validator.
	siteReturns
)

func forEachTable(file *convexgen.File, fn func(decl *convexgen.TableDecl)) {
	call := file.Schema()
	if call == nil {
		return
	}

	for _, decl := range call.Tables {
		fn(decl)
	}
}

// walkValidators visits every validator in table fields, function arguments and
// returns, with the dotted path of the value it describes.
func walkValidators(file *convexgen.File, fn func(v *convexgen.Validator, path string, at site)) {
	forEachTable(file, func(decl *convexgen.TableDecl) {
		walkObjectValidators(decl.Fields, decl.Name, fn)
	})

	for _, reg := range file.Registrations() {
		walkObjectValidators(reg.Registration.Args(), reg.Name, fn)

		if ret := reg.Registration.Returns(); ret != nil {
			walkValidator(ret, reg.Name+".returns", siteReturns, fn)
		}
	}
}

func walkObjectValidators(obj *convexgen.ObjectLiteral, base string, fn func(*convexgen.Validator, string, site)) {
	if obj == nil {
		return
	}

	for _, p := range obj.Properties {
		walkValidator(p.Value, joinPath(base, p.Name), siteField, fn)
	}
}

func walkValidator(v *convexgen.Validator, path string, at site, fn func(*convexgen.Validator, string, site)) {
	if v == nil {
		return
	}

	fn(v, path, at)

	if v.Elem != nil {
		switch v.Kind {
		case "array":
			walkValidator(v.Elem, path+"[]", siteElem, fn)
		case "optional":
			walkValidator(v.Elem, path, siteOptional, fn)
		default:
			walkValidator(v.Elem, path, siteField, fn)
		}
	}

	walkObjectValidators(v.Object, path, fn)
}

// walkObjects visits every object literal: table field maps, argument maps and
// the field maps of v.object, with the path of the object.
func walkObjects(file *convexgen.File, fn func(obj *convexgen.ObjectLiteral, path string)) {
	forEachTable(file, func(decl *convexgen.TableDecl) {
		if decl.Fields != nil {
			fn(decl.Fields, decl.Name)
		}
	})

	for _, reg := range file.Registrations() {
		if args := reg.Registration.Args(); args != nil {
			fn(args, reg.Name)
		}
	}

	walkValidators(file, func(v *convexgen.Validator, path string, _ site) {
		if v.Object != nil {
			fn(v.Object, path)
		}
	})
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}

	return base + "." + name
}
