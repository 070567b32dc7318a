package effects

import (
	"slices"
	"strings"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"
)

// Mains frequencies in Hz.
const (
	Mains50Hz = 50
	Mains60Hz = 60
)

// MainsFrequency returns the electrical mains frequency for the local timezone.
// It is the default centre of the hum notch. Falls back to 50Hz, the more common
// frequency worldwide, whenever the timezone or its country cannot be determined.
func MainsFrequency() int {
	zone, err := tzlocal.RuntimeTZ()
	if err != nil {
		return Mains50Hz
	}
	return MainsFrequencyFor(zone)
}

// MainsFrequencyFor returns the mains frequency for an IANA timezone name.
func MainsFrequencyFor(zone string) int {
	if zone == "" || zone == "UTC" || zone == "GMT" || strings.HasPrefix(zone, "Etc/") {
		return Mains50Hz
	}

	countries, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return Mains50Hz
	}
	country, err := countries.GetCountry(zone)
	if err != nil {
		return Mains50Hz
	}
	if _, found := slices.BinarySearch(sixtyHertzCountries, country); found {
		return Mains60Hz
	}
	return Mains50Hz
}

// sixtyHertzCountries is sorted for binary search. Countries with split grids
// (Japan, Brazil) are listed by their most populous region; Japan is therefore absent.
var sixtyHertzCountries = []string{
	"American Samoa",
	"Bahamas",
	"Barbados",
	"Belize",
	"Brazil",
	"Canada",
	"Cayman Islands",
	"Colombia",
	"Costa Rica",
	"Cuba",
	"Dominican Republic",
	"Ecuador",
	"El Salvador",
	"Guam",
	"Guatemala",
	"Guyana",
	"Haiti",
	"Honduras",
	"Jamaica",
	"Marshall Islands",
	"Mexico",
	"Micronesia",
	"Nicaragua",
	"Palau",
	"Panama",
	"Peru",
	"Philippines",
	"Puerto Rico",
	"Saudi Arabia",
	"South Korea",
	"Suriname",
	"Taiwan",
	"Trinidad and Tobago",
	"U.S. Virgin Islands",
	"United States",
	"Venezuela",
}
