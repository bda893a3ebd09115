package template

import "fmt"

// maxNesting is the property depth beyond which a reference gets a
// style warning. Deeply nested references usually mean configuration
// that belongs in its own variable.
const maxNesting = 4

// ValidateResult separates hard errors from style warnings; a
// template with only warnings is still valid.
type ValidateResult struct {
	Valid    bool
	Errors   []Error
	Warnings []Error
}

// Validate layers style checks on top of parsing: a reference nested
// more than four property segments deep yields a non-fatal
// deep_nesting_warning.
func Validate(template string) ValidateResult {
	parsed := Parse(template)
	result := ValidateResult{
		Valid:  parsed.Valid,
		Errors: parsed.Errors,
	}
	for _, ref := range parsed.References {
		if len(ref.Path) > maxNesting {
			result.Warnings = append(result.Warnings, Error{
				Kind:     WarnDeepNesting,
				Message:  fmt.Sprintf("reference %s is nested %d properties deep", ref.String(), len(ref.Path)),
				Position: ref.Position,
				Raw:      ref.Raw,
			})
		}
	}
	return result
}
