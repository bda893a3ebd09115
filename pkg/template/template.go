// Package template implements the variable reference syntax used by
// routing templates and environment configuration. A template is a
// string containing zero or more `${type.name.property...}` spans
// interleaved with literal text, where type is one of `services`,
// `projects` or `env`.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

// RefType is the namespace a reference resolves against.
type RefType string

const (
	RefServices RefType = "services"
	RefProjects RefType = "projects"
	RefEnv      RefType = "env"
)

// Kinds of problems reported while parsing, validating or resolving.
const (
	ErrInvalidReference = "invalid_reference"
	ErrSyntax           = "syntax_error"
	ErrResolution       = "resolution_error"
	WarnDeepNesting     = "deep_nesting_warning"
)

// Reference is one parsed `${...}` span.
type Reference struct {
	Type RefType
	Name string
	// Path holds the dot-separated property segments after the name;
	// may be empty.
	Path []string
	// Raw is the span as it appeared, including the `${` and `}`.
	Raw string
	// Position is the byte offset of the span's `${` in the template.
	Position int
}

// String reconstructs the dotted path without the surrounding
// markers, e.g. "services.api.port".
func (r Reference) String() string {
	parts := append([]string{string(r.Type), r.Name}, r.Path...)
	return strings.Join(parts, ".")
}

// Error is one problem found in a template. Kind is one of the Err*
// or Warn* constants above.
type Error struct {
	Kind     string
	Message  string
	Position int
	// Raw is the offending span, when the problem is span-scoped.
	Raw string
}

// ParseResult collects everything found in one scan of a template.
// Errors holds every problem, not just the first.
type ParseResult struct {
	Valid      bool
	References []Reference
	Errors     []Error
}

var refInterior = regexp.MustCompile(`^(services|projects|env)\.([A-Za-z0-9_-]+)((?:\.[A-Za-z0-9_-]+)*)$`)

// Parse scans the template for `${...}` spans. Each span's interior
// must be a well-formed `type.name[.property...]` path; a span that
// is not is recorded as an invalid_reference error and scanning
// continues. Unbalanced braces over the whole template are reported
// separately as a syntax_error pointing at the last unmatched opener.
func Parse(template string) ParseResult {
	result := ParseResult{Valid: true}

	lastUnclosed := -1
	for i := 0; i+1 < len(template); i++ {
		if template[i] != '$' || template[i+1] != '{' {
			continue
		}
		end := strings.IndexByte(template[i+2:], '}')
		if end < 0 {
			lastUnclosed = i
			break
		}
		raw := template[i : i+2+end+1]
		interior := template[i+2 : i+2+end]

		m := refInterior.FindStringSubmatch(interior)
		if m == nil {
			result.Errors = append(result.Errors, Error{
				Kind:     ErrInvalidReference,
				Message:  "reference " + raw + " is not a well-formed type.name[.property...] path",
				Position: i,
				Raw:      raw,
			})
		} else {
			ref := Reference{
				Type:     RefType(m[1]),
				Name:     m[2],
				Raw:      raw,
				Position: i,
			}
			if m[3] != "" {
				ref.Path = strings.Split(strings.TrimPrefix(m[3], "."), ".")
			}
			result.References = append(result.References, ref)
		}
		i += 2 + end
	}

	if lastUnclosed >= 0 {
		result.Errors = append(result.Errors, Error{
			Kind:     ErrSyntax,
			Message:  fmt.Sprintf("unmatched ${ at offset %d", lastUnclosed),
			Position: lastUnclosed,
		})
	}

	result.Valid = len(result.Errors) == 0
	return result
}
