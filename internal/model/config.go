package model

import (
	"sort"
	"strings"
)

// Reserved config keys. Every other string-valued entry is a column role.
const (
	KeyChartType = "chartType"
	KeyStartRow  = "startRow"
	KeyEndRow    = "endRow"
)

// Config is the open chart configuration map: row bounds, chart type and column roles.
type Config map[string]any

// IsReserved reports whether key is one of the non-role config keys.
func IsReserved(key string) bool {
	return key == KeyChartType || key == KeyStartRow || key == KeyEndRow
}

// Clone returns a shallow copy; nil stays nil.
func (c Config) Clone() Config {
	if c == nil {
		return nil
	}
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Merge returns c overlaid with over; over wins on conflicts.
func (c Config) Merge(over Config) Config {
	out := make(Config, len(c)+len(over))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Roles returns the non-empty string role entries sorted by key.
func (c Config) Roles() []Role {
	var out []Role
	for k, v := range c {
		if IsReserved(k) {
			continue
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, Role{Key: k, Column: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ChartType returns the chartType entry if it is a string.
func (c Config) ChartType() string {
	s, _ := c[KeyChartType].(string)
	return s
}

// Role is one column-role assignment, e.g. x -> "Category".
type Role struct {
	Key    string
	Column string
}
