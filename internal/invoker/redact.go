package invoker

import "strings"

const (
	// Redacted replaces sensitive values in arguments and output.
	Redacted = "[REDACTED]"

	// redactLengthMin is the shortest secret value that is scrubbed from
	// free-form output. Shorter values are still replaced in the argument
	// list, where matching is exact.
	redactLengthMin = 6
)

// redactor scrubs the access token and any per-call sensitive values.
type redactor struct {
	token  string
	values []string
}

func (r redactor) with(values ...string) redactor {
	merged := make([]string, 0, len(r.values)+len(values))
	merged = append(merged, r.values...)
	for _, v := range values {
		if v != "" {
			merged = append(merged, v)
		}
	}
	return redactor{token: r.token, values: merged}
}

// Args returns a copy of args with every sensitive element replaced. Both
// a bare value and the value of a "--flag=value" argument are matched.
func (r redactor) Args(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.String(a)
		for _, v := range r.values {
			if a == v {
				out[i] = Redacted
				break
			}
			if name, val, ok := strings.Cut(a, "="); ok && strings.HasPrefix(name, "-") && val == v {
				out[i] = name + "=" + Redacted
				break
			}
		}
	}
	return out
}

// String scrubs sensitive substrings from s. The token is always removed.
func (r redactor) String(s string) string {
	if r.token != "" {
		s = strings.ReplaceAll(s, r.token, Redacted)
	}
	for _, v := range r.values {
		if len(v) >= redactLengthMin {
			s = strings.ReplaceAll(s, v, Redacted)
		}
	}
	return s
}
