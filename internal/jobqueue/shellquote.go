package jobqueue

import "strings"

// templateToken is the placeholder in a cmd_template replaced by the
// shell-quoted absolute path of the file being processed.
const templateToken = "{}"

// shellQuoteSingle applies POSIX single-quote escaping to s: the string is
// wrapped in single quotes, and any embedded single quote is replaced with
// '\'' (close quote, escaped literal quote, reopen quote). This is
// deliberately hand-rolled rather than delegated to a library helper,
// since library shell-quoting helpers can disagree on corner cases (for
// example whether to special-case empty strings); single-quote escaping is
// simple enough to be fully self-contained and auditable.
func shellQuoteSingle(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			b.WriteString(`'\''`)
		} else {
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// expandTemplate replaces every occurrence of templateToken in cmdTemplate
// with the shell-quoted absolute path, producing the string to pass as the
// third argument to `/bin/sh -c`.
func expandTemplate(cmdTemplate, path string) string {
	return strings.ReplaceAll(cmdTemplate, templateToken, shellQuoteSingle(path))
}
