package reportquery

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionFinding records a filter value that libinjection flagged as a SQL
// injection pattern. Values are always bound as parameters, never spliced
// into SQL text, so a finding does not change compilation - it feeds the
// security audit log so probing can be detected and attributed.
type InjectionFinding struct {
	Path        string
	Value       string
	Fingerprint string
}

// ScreenFilters runs every string-typed filter value (including IN array
// elements) through libinjection. Only strings are checked - numbers,
// booleans and nulls cannot carry injection patterns.
func ScreenFilters(filters []FilterSpec) []InjectionFinding {
	var findings []InjectionFinding
	for i, f := range filters {
		path := fmt.Sprintf("filters[%d].value", i)
		switch v := f.Value.(type) {
		case string:
			if finding := screenValue(path, v); finding != nil {
				findings = append(findings, *finding)
			}
		case []any:
			for j, elem := range v {
				s, ok := elem.(string)
				if !ok {
					continue
				}
				elemPath := fmt.Sprintf("filters[%d].value[%d]", i, j)
				if finding := screenValue(elemPath, s); finding != nil {
					findings = append(findings, *finding)
				}
			}
		}
	}
	return findings
}

func screenValue(path, value string) *InjectionFinding {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionFinding{
		Path:        path,
		Value:       value,
		Fingerprint: string(fingerprint),
	}
}
