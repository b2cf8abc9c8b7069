package polls

import "strings"

// Summary renders the searchable text of a poll message: the question on the
// first line, then one line per option prefixed with a single space.
func Summary(question string, options []string) string {
	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\n")
	for _, o := range options {
		b.WriteString(" ")
		b.WriteString(o)
		b.WriteString("\n")
	}
	return b.String()
}
