package template

import (
	"fmt"
	"strings"
)

// Context is the namespace a template resolves against: a value per
// name per reference type. Values are either scalars or nested
// string-keyed maps walked by the reference's property path.
type Context map[RefType]map[string]interface{}

// ResolveResult reports the outcome of substituting every reference
// in a template. Success is true only if every reference resolved;
// on failure Resolved still carries the template with whatever could
// be substituted, and each unresolved reference is left verbatim.
type ResolveResult struct {
	Success  bool
	Resolved string
	Errors   []Error
}

// Resolve substitutes each parsed reference with its value from the
// context. Resolution does not fail fast: every reference is
// attempted and every miss contributes its own resolution_error
// naming the exact unresolved path.
func Resolve(template string, ctx Context) ResolveResult {
	parsed := Parse(template)
	result := ResolveResult{Success: true, Resolved: template}
	result.Errors = append(result.Errors, parsed.Errors...)

	// Substitute back-to-front so earlier positions stay valid.
	for i := len(parsed.References) - 1; i >= 0; i-- {
		ref := parsed.References[i]
		value, err := lookup(ctx, ref)
		if err != nil {
			result.Errors = append(result.Errors, *err)
			continue
		}
		result.Resolved = result.Resolved[:ref.Position] +
			fmt.Sprintf("%v", value) +
			result.Resolved[ref.Position+len(ref.Raw):]
	}

	result.Success = len(result.Errors) == 0
	return result
}

// lookup walks context[type][name] then the property path one
// segment at a time. The returned error names the deepest path that
// could be followed before the miss.
func lookup(ctx Context, ref Reference) (interface{}, *Error) {
	miss := func(at string) *Error {
		return &Error{
			Kind:     ErrResolution,
			Message:  fmt.Sprintf("cannot resolve %s: %s is undefined", ref.String(), at),
			Position: ref.Position,
			Raw:      ref.Raw,
		}
	}

	names, ok := ctx[ref.Type]
	if !ok {
		return nil, miss(string(ref.Type))
	}
	value, ok := names[ref.Name]
	if !ok {
		return nil, miss(string(ref.Type) + "." + ref.Name)
	}

	walked := []string{string(ref.Type), ref.Name}
	for _, segment := range ref.Path {
		walked = append(walked, segment)
		m, ok := value.(map[string]interface{})
		if !ok {
			return nil, miss(strings.Join(walked, "."))
		}
		value, ok = m[segment]
		if !ok {
			return nil, miss(strings.Join(walked, "."))
		}
	}
	return value, nil
}
