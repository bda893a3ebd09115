package template

import (
	"sort"
	"strings"
)

// Suggest returns the next-level completions for a partial reference
// (the text between `${` and the cursor), walking the three-tier
// namespace: reference types, then names, then properties. It is a
// pure read over the context; used for editor assist.
func Suggest(partial string, ctx Context) []string {
	segments := strings.Split(partial, ".")

	// Completing the type itself.
	if len(segments) == 1 {
		var out []string
		for _, t := range []RefType{RefServices, RefProjects, RefEnv} {
			if strings.HasPrefix(string(t), segments[0]) {
				out = append(out, string(t)+".")
			}
		}
		sort.Strings(out)
		return out
	}

	names, ok := ctx[RefType(segments[0])]
	if !ok {
		return nil
	}
	prefix := segments[0] + "."

	// Completing the name.
	if len(segments) == 2 {
		var out []string
		for name := range names {
			if strings.HasPrefix(name, segments[1]) {
				out = append(out, prefix+name)
			}
		}
		sort.Strings(out)
		return out
	}

	// Completing a property: walk the value down to the segment
	// being typed, then list the keys at that level.
	value, ok := names[segments[1]]
	if !ok {
		return nil
	}
	prefix += segments[1] + "."
	for _, segment := range segments[2 : len(segments)-1] {
		m, ok := value.(map[string]interface{})
		if !ok {
			return nil
		}
		value, ok = m[segment]
		if !ok {
			return nil
		}
		prefix += segment + "."
	}

	m, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	last := segments[len(segments)-1]
	var out []string
	for key := range m {
		if strings.HasPrefix(key, last) {
			out = append(out, prefix+key)
		}
	}
	sort.Strings(out)
	return out
}
