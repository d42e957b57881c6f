package discovery

import "encoding/json"

// Task data arrives as loosely typed maps (JSON, YAML, or hand-built). The
// helpers below coerce the common shapes into the package's concrete types.

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func stringOr(m map[string]any, key, fallback string) string {
	if s := stringField(m, key); s != "" {
		return s
	}
	return fallback
}

func mapField(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func mapSlice(v any) []map[string]any {
	switch t := v.(type) {
	case nil:
		return nil
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// coerce converts loosely typed data into a concrete shape via a JSON round
// trip. Unconvertible input leaves out untouched.
func coerce(v, out any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = json.Unmarshal(b, out)
}

func requirementsFrom(v any) []Requirement {
	switch t := v.(type) {
	case nil:
		return nil
	case []Requirement:
		return t
	default:
		var out []Requirement
		coerce(v, &out)
		return out
	}
}

func constraintsFrom(v any) []Constraint {
	switch t := v.(type) {
	case nil:
		return nil
	case []Constraint:
		return t
	default:
		var out []Constraint
		coerce(v, &out)
		return out
	}
}

func stakeholdersFrom(v any) []Stakeholder {
	switch t := v.(type) {
	case nil:
		return nil
	case []Stakeholder:
		return t
	default:
		var out []Stakeholder
		coerce(v, &out)
		return out
	}
}
