// Package boundary downloads TIGER/Line shapefiles from the Census Bureau
// and loads their geometries into the store.
package boundary

import (
	"fmt"
	"strings"
)

// Product describes one TIGER/Line shapefile product.
type Product struct {
	Name     string   // short name used on the command line
	File     string   // TIGER directory / file component, e.g. "county"
	National bool     // one national file vs one file per state
	Columns  []string // DBF attribute names, lowercase
}

// Products lists the supported TIGER products. County names come from
// NAMELSAD ("King County") rather than NAME ("King") so they match the
// "County, ST" references used throughout the pipeline.
var Products = []Product{
	{Name: "county", File: "county", National: true, Columns: []string{"geoid", "namelsad", "statefp"}},
	{Name: "place", File: "place", National: false, Columns: []string{"geoid", "name", "statefp"}},
	{Name: "tract", File: "tract", National: false, Columns: []string{"geoid", "name", "statefp"}},
}

// ProductByName returns the product with the given name.
func ProductByName(name string) (Product, bool) {
	for _, p := range Products {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Product{}, false
}

// DownloadURL returns the HTTPS URL for a product's ZIP. National products use
// the "us" file; per-state products take a two-digit state FIPS code.
func DownloadURL(p Product, year int, stateFIPS string) string {
	area := stateFIPS
	if p.National {
		area = "us"
	}
	return fmt.Sprintf("https://www2.census.gov/geo/tiger/TIGER%d/%s/tl_%d_%s_%s.zip",
		year, strings.ToUpper(p.File), year, area, p.File)
}

// MirrorURL returns the FTP mirror URL for the same archive.
func MirrorURL(p Product, year int, stateFIPS string) string {
	area := stateFIPS
	if p.National {
		area = "us"
	}
	return fmt.Sprintf("ftp://ftp2.census.gov/geo/tiger/TIGER%d/%s/tl_%d_%s_%s.zip",
		year, strings.ToUpper(p.File), year, area, p.File)
}

// FIPSCodes maps state abbreviations to two-digit FIPS codes.
var FIPSCodes = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56",
}

// AllStateAbbrs returns every state abbreviation in FIPSCodes, sorted.
func AllStateAbbrs() []string {
	abbrs := make([]string, 0, len(FIPSCodes))
	for abbr := range FIPSCodes {
		abbrs = append(abbrs, abbr)
	}
	// Deterministic order for logs and tests.
	for i := 1; i < len(abbrs); i++ {
		for j := i; j > 0 && abbrs[j] < abbrs[j-1]; j-- {
			abbrs[j], abbrs[j-1] = abbrs[j-1], abbrs[j]
		}
	}
	return abbrs
}
