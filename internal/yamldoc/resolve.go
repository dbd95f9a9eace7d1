package yamldoc

import (
	"regexp"
	"strings"
)

var (
	intPattern   = regexp.MustCompile(`^[-+]?[0-9]+$`)
	floatPattern = regexp.MustCompile(`^[-+]?(\.[0-9]+|[0-9]+(\.[0-9]*)?)([eE][-+]?[0-9]+)?$`)
)

// resolveScalar re-derives the implicit tag an unquoted scalar with this raw
// text would carry under YAML 1.1-style typing (null, booleans including
// yes/no/on/off, decimal ints, floats), independent of whatever Tag its own (possibly
// quoted) source position parsed with. It backs the Typed merge dialect:
// an override author can write `replicas: "3"` to keep their editor's YAML
// linter happy, and it still merges in as the integer 3.
func resolveScalar(raw string) (tag, value string) {
	switch raw {
	case "", "~", "null", "Null", "NULL":
		return "!!null", ""
	case "true", "True", "TRUE", "yes", "Yes", "YES", "on", "On", "ON":
		return "!!bool", "true"
	case "false", "False", "FALSE", "no", "No", "NO", "off", "Off", "OFF":
		return "!!bool", "false"
	}
	if intPattern.MatchString(raw) {
		return "!!int", raw
	}
	if floatPattern.MatchString(raw) && strings.ContainsAny(raw, ".eE") {
		return "!!float", raw
	}
	return "!!str", raw
}
