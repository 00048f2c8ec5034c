package projection

import (
	"strings"

	"golang.org/x/text/cases"
)

// Resolver maps loosely written column identifiers to canonical column names.
// Lookups trim surrounding whitespace and compare case-insensitively; there is
// no partial or fuzzy matching. A Resolver is not safe for concurrent use.
type Resolver struct {
	exact  map[string]string
	folded map[string]string
	fold   cases.Caser
}

// NewResolver indexes the canonical columns of a dataset.
func NewResolver(columns []string) *Resolver {
	r := &Resolver{
		exact:  make(map[string]string, len(columns)),
		folded: make(map[string]string, len(columns)),
		fold:   cases.Fold(),
	}
	for _, c := range columns {
		key := strings.TrimSpace(c)
		if _, ok := r.exact[key]; !ok {
			r.exact[key] = c
		}
		fk := r.fold.String(key)
		if _, ok := r.folded[fk]; !ok {
			r.folded[fk] = c
		}
	}
	return r
}

// Resolve returns the canonical name for id.
func (r *Resolver) Resolve(id string) (string, bool) {
	key := strings.TrimSpace(id)
	if key == "" {
		return "", false
	}
	if c, ok := r.exact[key]; ok {
		return c, true
	}
	c, ok := r.folded[r.fold.String(key)]
	return c, ok
}
