package prefilter

import "strings"

// 이 부분 문자열이 포함된 타입 라벨은 categorical로 취급 (중복 검사 제외)
var categoricalMarkers = []string{"hierarchical", "categorical"}

// IsCategoricalLabel reports whether a free-text type label marks a
// categorical variable. Matching is case-insensitive substring search,
// so "Hierarchical_ICD9" and "ordinal-categorical" both match.
func IsCategoricalLabel(label string) bool {
	normalized := strings.ToLower(label)
	for _, marker := range categoricalMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// ClassifyVarTypes returns the set of categorical variable names.
// Variables absent from overrides are numeric.
func ClassifyVarTypes(overrides map[string]string) map[string]struct{} {
	categorical := make(map[string]struct{})
	for name, label := range overrides {
		if IsCategoricalLabel(label) {
			categorical[name] = struct{}{}
		}
	}
	return categorical
}
