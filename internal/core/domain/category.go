package domain

import "strings"

// CategoryScope restricts a workflow to one certificate family. A scoped
// screen rejects documents whose recognized name matches none of the
// family's keywords.
type CategoryScope struct {
	Name     string
	Keywords []string
}

func (s CategoryScope) Matches(certificateName string) bool {
	name := strings.ToLower(certificateName)
	for _, keyword := range s.Keywords {
		if strings.Contains(name, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

var knownScopes = map[string]CategoryScope{
	"ism_isps_mlc": {
		Name: "ism_isps_mlc",
		Keywords: []string{
			"safety management",
			"ship security",
			"maritime labour",
			"ism", "isps", "mlc", "smc", "issc", "doc",
		},
	},
	"class": {
		Name:     "class",
		Keywords: []string{"classification", "class certificate", "hull", "machinery"},
	},
	"statutory": {
		Name: "statutory",
		Keywords: []string{
			"load line", "tonnage", "safety construction", "safety equipment",
			"safety radio", "iopp", "ispp", "iapp", "sewage", "air pollution",
		},
	},
}

// ScopeByName resolves a predefined certificate family; ok is false for an
// unknown or empty name (meaning the screen is unscoped).
func ScopeByName(name string) (CategoryScope, bool) {
	scope, ok := knownScopes[strings.ToLower(strings.TrimSpace(name))]
	return scope, ok
}
