// Package naming derives a PostgreSQL-safe database name from a Git branch
// name according to a project's configured naming strategy.
package naming

import (
	"fmt"
	"regexp"
	"strings"
)

// Strategy selects how a branch's database name is derived from its Git
// branch name.
type Strategy string

const (
	Prefix  Strategy = "prefix"
	Suffix  Strategy = "suffix"
	Replace Strategy = "replace"
)

const maxIdentifierLen = 63

var unsafeChar = regexp.MustCompile(`[^a-z0-9_]`)

// Derive returns the database name for branch under the given strategy and
// prefix/suffix settings. Prefix and Suffix concatenate verbatim; Replace
// sanitises branch into a lowercase [A-Za-z0-9_] identifier capped at 63
// bytes, per the "replace" naming strategy boundary case.
func Derive(strategy Strategy, prefix, suffix, branch string) (string, error) {
	switch strategy {
	case Prefix:
		return prefix + branch, nil
	case Suffix:
		return branch + suffix, nil
	case Replace, "":
		return sanitize(branch), nil
	default:
		return "", fmt.Errorf("unknown naming strategy %q", strategy)
	}
}

// sanitize implements the canonical ASCII fold this spec settles on for the
// "replace" strategy's open question about Unicode handling: non-ASCII
// runes are dropped (not transliterated), each byte outside [A-Za-z0-9_] is
// replaced one-for-one with an underscore (runs of unsafe characters do not
// collapse), the result is lowercased and truncated to 63 bytes.
func sanitize(branch string) string {
	var b strings.Builder
	for _, r := range branch {
		if r > 127 {
			continue
		}
		b.WriteRune(r)
	}
	ascii := strings.ToLower(b.String())
	replaced := unsafeChar.ReplaceAllString(ascii, "_")
	if len(replaced) > maxIdentifierLen {
		replaced = replaced[:maxIdentifierLen]
	}
	return replaced
}
