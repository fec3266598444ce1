// Package config provides the small substitution primitive an extractor's
// own config loader can call (spec §6's "config expansion"); loading and
// parsing a config file itself is out of scope (spec.md §1's non-goal).
package config

import (
	"os"
	"regexp"
)

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces every ${NAME} in s with the value of the NAME
// environment variable. A name with no value set in the process
// environment is left literal, unexpanded (spec §6).
func ExpandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}
