package eav

import (
	"context"
	"sort"
)

// ValidateValues checks a set of writes before anything is stored, so a
// request can be rejected as a whole. Nil values are deletions and always
// valid. The first failure in name order is returned.
func ValidateValues(ctx context.Context, registry *Registry, values map[string]interface{}) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def, ok := registry.ByName(ctx, name)
		if !ok {
			return unknownAttribute(name)
		}
		if values[name] == nil {
			continue
		}
		if _, err := Validate(def, values[name]); err != nil {
			return err
		}
	}
	return nil
}
