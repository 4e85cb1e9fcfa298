package boundary

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// InvalidCountyError reports a county reference that cannot be resolved.
type InvalidCountyError struct {
	Ref    string
	Reason string
}

func (e *InvalidCountyError) Error() string {
	return fmt.Sprintf("invalid county %q: %s", e.Ref, e.Reason)
}

// CountyRef is a parsed "County Name, ST" reference.
type CountyRef struct {
	Name      string // normalized, e.g. "King County"
	StateAbbr string // e.g. "WA"
	StateFIPS string // e.g. "53"
}

// Key returns the canonical form of the reference, e.g. "King County, WA".
// Stored rows are keyed by this form so differently cased flag values
// address the same county.
func (r *CountyRef) Key() string {
	return r.Name + ", " + r.StateAbbr
}

var titleCaser = cases.Title(language.AmericanEnglish)

// ParseCountyRef parses a "County Name, ST" string. Matching is
// case-insensitive and a missing "County" suffix is added, so "king, wa"
// resolves the same as "King County, WA".
func ParseCountyRef(ref string) (*CountyRef, error) {
	parts := strings.Split(ref, ",")
	if len(parts) != 2 {
		return nil, &InvalidCountyError{Ref: ref, Reason: "expected \"County Name, ST\""}
	}

	name := titleCaser.String(strings.TrimSpace(parts[0]))
	if name == "" {
		return nil, &InvalidCountyError{Ref: ref, Reason: "empty county name"}
	}
	if !strings.HasSuffix(name, "County") && !strings.HasSuffix(name, "Parish") && !strings.HasSuffix(name, "Borough") {
		name += " County"
	}

	abbr := strings.ToUpper(strings.TrimSpace(parts[1]))
	fips, ok := FIPSCodes[abbr]
	if !ok {
		return nil, &InvalidCountyError{Ref: ref, Reason: fmt.Sprintf("unknown state %q", abbr)}
	}

	return &CountyRef{Name: name, StateAbbr: abbr, StateFIPS: fips}, nil
}
