package core

import "strings"

// ruleSearchTexts maps the webservice named in a "<engine> # <webservice>
// matches" column to the rule name stored in screening payloads.
var ruleSearchTexts = map[string]string{
	"NameAndAddress":           "Full Name and Address",
	"Identifier":               "Identifier",
	"City":                     "City Name",
	"Country":                  "Country Name",
	"Port":                     "Port Name",
	"Goods":                    "Goods Name",
	"Narrative NameAndAddress": "Narrative Full Name",
	"Narrative Identifier":     "Narrative Identifier",
	"Narrative City":           "Narrative City",
	"Narrative Country":        "Narrative Country",
	"Narrative Port":           "Narrative Port",
	"Narrative Goods":          "Narrative Goods",
	"Stopkeywords":             "Stop Keywords",
}

// RuleSearchText returns the canonical rule name for a webservice.
func RuleSearchText(webservice string) (string, bool) {
	s, ok := ruleSearchTexts[webservice]
	return s, ok
}

// MatchedWebservice returns the webservice of the first populated
// "<engine> # <webservice> matches" column, in header order.
func MatchedWebservice(row InputRow, engine EngineTag) (string, bool) {
	prefix := engine.Prefix() + WebserviceInfix
	for _, name := range row.Layout.names {
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, MatchesSuffix) {
			continue
		}
		if len(name) <= len(prefix)+len(MatchesSuffix) {
			continue
		}
		if row.Value(name) != "" {
			return name[len(prefix) : len(name)-len(MatchesSuffix)], true
		}
	}
	return "", false
}
