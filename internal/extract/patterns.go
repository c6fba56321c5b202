package extract

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// builtinCascades are the ordered per-field pattern tables. Within a
// field, patterns are tried in order and the first match wins; the last
// capture group of the winning match is the value.
var builtinCascades = []struct {
	field    string
	patterns []string
}{
	{"invoice_number", []string{
		`(?i)\binv-\s*([A-Z0-9][A-Z0-9-]*)`,
		`(?i)invoice\s*(?:no\.?|number|#)\s*:?\s*([A-Z0-9-]+)`,
		`(?i)invoice\s*id\s*:?\s*([A-Z0-9-]+)`,
		`(?i)bill\s*(?:no\.?|number|#)\s*:?\s*([A-Z0-9-]+)`,
		`(?i)invoice\s*:\s*([A-Z0-9-]+)`,
		`#\s*([A-Za-z0-9-]+)`,
	}},
	{"date", []string{
		`(?i)invoice\s*date\s*:?\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`,
		`(?i)\bdate\s*:?\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`,
		`(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`,
		`(?i)((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},\s+\d{4})`,
	}},
	{"due_date", []string{
		`(?i)due\s*date\s*:?\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`,
		`(?i)payment\s*due\s*:?\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`,
		`(?i)due\s*date\s*:?\s*((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},\s+\d{4})`,
	}},
	{"total", []string{
		`(?i)grand\s*total\s*:?\s*\$?\s*([0-9,]+\.?\d*)`,
		`(?i)total\s*due\s*:?\s*\$?\s*([0-9,]+\.?\d*)`,
		`(?i)amount\s*due\s*:?\s*\$?\s*([0-9,]+\.?\d*)`,
		`(?i)\btotal\s*:?\s*\$?\s*([0-9,]+\.?\d*)`,
	}},
	{"subtotal", []string{
		`(?i)subtotal\s*:?\s*\$?\s*([0-9,]+\.?\d*)`,
		`(?i)sub\s*total\s*:?\s*\$?\s*([0-9,]+\.?\d*)`,
	}},
	{"tax", []string{
		`(?i)sales\s*tax\s*:?\s*\$?\s*([0-9,]+\.?\d*)`,
		`(?i)\btax\s*:?\s*\$?\s*([0-9,]+\.?\d*)`,
		`(?i)\bvat\s*:?\s*\$?\s*([0-9,]+\.?\d*)`,
	}},
}

// loadCascades compiles the built-in pattern tables, appending any
// per-field additions from the optional YAML overrides file. Override
// patterns run after the built-ins for the same field; fields not in the
// built-in set are rejected so typos fail loudly at startup.
func loadCascades(overridesPath string) (map[string][]*regexp.Regexp, error) {
	overrides := map[string][]string{}
	if overridesPath != "" {
		data, err := os.ReadFile(overridesPath)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: read patterns file %s", overridesPath)
		}
		if err := yaml.Unmarshal(data, &overrides); err != nil {
			return nil, eris.Wrapf(err, "extract: parse patterns file %s", overridesPath)
		}
	}

	known := make(map[string]bool, len(builtinCascades))
	cascades := make(map[string][]*regexp.Regexp, len(builtinCascades))
	for _, c := range builtinCascades {
		known[c.field] = true
		all := append(append([]string{}, c.patterns...), overrides[c.field]...)
		compiled := make([]*regexp.Regexp, 0, len(all))
		for _, p := range all {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, eris.Wrapf(err, "extract: compile pattern %q for field %s", p, c.field)
			}
			compiled = append(compiled, re)
		}
		cascades[c.field] = compiled
	}
	for field := range overrides {
		if !known[field] {
			return nil, eris.Errorf("extract: patterns file names unknown field %q", field)
		}
	}
	return cascades, nil
}

// matchCascade returns the first matching pattern's last capture group,
// or the whole match when a pattern has no groups. Empty string means no
// pattern matched.
func matchCascade(patterns []*regexp.Regexp, text string) string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		val := m[len(m)-1]
		if len(m) == 1 {
			val = m[0]
		}
		return strings.TrimSpace(val)
	}
	return ""
}
