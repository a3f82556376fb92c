package agent

import "regexp"

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// renderTemplate substitutes {name} placeholders from vars. Placeholders
// without a value are left verbatim so a misconfigured template is visible
// in the delivered message rather than silently blanked.
func renderTemplate(tmpl string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}
