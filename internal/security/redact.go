package security

import (
	"os"
	"regexp"
	"strings"
)

var (
	bearerRe   = regexp.MustCompile(`(?i)(bearer\s+)\S+`)
	userinfoRe = regexp.MustCompile(`(://[^/\s:@]+):[^/\s@]+@`)
)

// RedactMessage strips the home directory, bearer tokens and URL passwords
// from text shown to the operator or written to gostly.log.
func RedactMessage(msg string) string {
	if msg == "" {
		return msg
	}
	out := msg
	if home, err := os.UserHomeDir(); err == nil && home != "" && home != "/" {
		out = strings.ReplaceAll(out, home, "~")
	}
	out = bearerRe.ReplaceAllString(out, "${1}[redacted]")
	out = userinfoRe.ReplaceAllString(out, "${1}:[redacted]@")
	return out
}
