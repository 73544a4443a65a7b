package config

import (
	"os"
	"regexp"
	"strings"
)

// matches ${name}, ${env:NAME} and ${name:-default}
var placeholder = regexp.MustCompile(`\$\{([^{}]+)\}`)

const maxSubstitutionDepth = 8

// Substitutor expands ${...} placeholders against the configuration
// properties and the process environment. Unresolved placeholders are left
// as they are.
type Substitutor struct {
	props  map[string]string
	lookup func(string) (string, bool)
}

func NewSubstitutor(props map[string]string) *Substitutor {
	return &Substitutor{props: props, lookup: os.LookupEnv}
}

func (s *Substitutor) Replace(in string) string {
	out := in
	for range maxSubstitutionDepth {
		next := placeholder.ReplaceAllStringFunc(out, s.resolve)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func (s *Substitutor) resolve(m string) string {
	key := m[2 : len(m)-1]

	def, hasDef := "", false
	if i := strings.Index(key, ":-"); i >= 0 {
		key, def, hasDef = key[:i], key[i+2:], true
	}

	if name, ok := strings.CutPrefix(key, "env:"); ok {
		if v, ok := s.lookup(mapEnvKey(name)); ok {
			return v
		}
	} else if v, ok := s.props[key]; ok {
		return v
	}

	if hasDef {
		return def
	}
	return m
}
