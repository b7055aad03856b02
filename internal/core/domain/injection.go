package domain

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionHit is a condition value that libinjection classifies as SQL
// injection.
type InjectionHit struct {
	Column      string `json:"column"`
	Value       string `json:"value"`
	Fingerprint string `json:"fingerprint"`
}

// ScanInjection checks every string value in q's conditions. Numeric values
// cannot carry injection and are skipped.
func ScanInjection(q ParsedQuery) []InjectionHit {
	var hits []InjectionHit
	check := func(col, v string) {
		if v == "" {
			return
		}
		if ok, fp := libinjection.IsSQLi(v); ok {
			hits = append(hits, InjectionHit{Column: col, Value: v, Fingerprint: string(fp)})
		}
	}
	for _, c := range q.Conditions {
		switch v := c.Value.(type) {
		case string:
			check(c.Column, v)
		case []string:
			for _, s := range v {
				check(c.Column, s)
			}
		}
	}
	return hits
}
