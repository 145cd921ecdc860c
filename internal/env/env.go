// Package env composes the environment handed to spawned servers.
package env

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Env layers variables over a base environment. Later layers win; keys keep
// the position of their first appearance so the result is stable.
type Env struct {
	vars  map[string]string
	order []string
}

func New() *Env {
	return &Env{vars: make(map[string]string)}
}

// FromOS seeds the environment with the supervisor's own variables.
func FromOS() *Env {
	e := New()
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.put(kv[:i], kv[i+1:])
		}
	}
	return e
}

func (e *Env) put(k, v string) {
	if _, ok := e.vars[k]; !ok {
		e.order = append(e.order, k)
	}
	e.vars[k] = v
}

// Set sets k to v after expanding ${VAR} references against the current layers,
// so PATH=${PATH}:/opt/bin extends the inherited value.
func (e *Env) Set(k, v string) {
	if k == "" {
		return
	}
	e.put(k, expand(v, e.vars))
}

// SetPairs applies "K=V" entries in order; malformed entries are skipped.
func (e *Env) SetPairs(kvs []string) {
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.Set(kv[:i], kv[i+1:])
		}
	}
}

// Get returns the value of k and whether it is set.
func (e *Env) Get(k string) (string, bool) {
	v, ok := e.vars[k]
	return v, ok
}

// LoadFile applies a dotenv style file: KEY=VALUE lines, # comments, an
// optional "export " prefix and matching quotes around the value.
func (e *Env) LoadFile(path string) error {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("env file: %w", err)
	}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		i := strings.IndexByte(line, '=')
		if i <= 0 {
			continue
		}
		k := strings.TrimSpace(line[:i])
		v := strings.TrimSpace(line[i+1:])
		if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
			v = v[1 : len(v)-1]
		}
		e.Set(k, v)
	}
	return nil
}

// Environ returns the composed environment in "K=V" form.
func (e *Env) Environ() []string {
	out := make([]string, 0, len(e.order))
	for _, k := range e.order {
		out = append(out, k+"="+e.vars[k])
	}
	return out
}

// expand replaces ${VAR} with its value in m. Unknown references and an
// unterminated "${" are left as written.
func expand(s string, m map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			break
		}
		b.WriteString(s[:i])
		ref := s[i : i+3+j]
		if v, ok := m[s[i+2:i+2+j]]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(ref)
		}
		s = s[i+3+j:]
	}
	b.WriteString(s)
	return b.String()
}
