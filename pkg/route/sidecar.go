package route

import (
	"encoding/json"
	"os"
	"strings"
)

// Sidecar file suffixes.
const (
	SidecarSuffix = ".navi.json"
	MetaSuffix    = ".meta.json"
)

// Sidecar is the companion metadata file that may declare a route.
type Sidecar struct {
	Route    string `json:"route,omitempty"`
	RoutedTo string `json:"routed_to,omitempty"`
	Function string `json:"function,omitempty"`
}

// Candidates returns the declared values in lookup order, skipping blanks.
func (s *Sidecar) Candidates() []string {
	var out []string
	for _, v := range []string{s.Route, s.RoutedTo, s.Function} {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// IsEmpty reports whether the sidecar declares nothing.
func (s *Sidecar) IsEmpty() bool {
	return s == nil || len(s.Candidates()) == 0
}

// SidecarPath returns the sidecar path for a file.
func SidecarPath(file string) string {
	return file + SidecarSuffix
}

// IsSidecar reports whether name is a sidecar or meta file rather than an item.
func IsSidecar(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, SidecarSuffix) || strings.HasSuffix(lower, MetaSuffix)
}

// LoadSidecar reads the sidecar at path. A missing or malformed sidecar is
// an empty one.
func LoadSidecar(path string) *Sidecar {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Sidecar{}
	}

	// Values are accepted only as strings.
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return &Sidecar{}
	}
	str := func(k string) string {
		s, _ := raw[k].(string)
		return s
	}
	return &Sidecar{Route: str("route"), RoutedTo: str("routed_to"), Function: str("function")}
}
