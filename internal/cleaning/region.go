package cleaning

import "regexp"

// Region identifies a jurisdiction-specific rule set.
type Region string

const (
	RegionSingapore     Region = "singapore"
	RegionMalaysia      Region = "malaysia"
	RegionIndonesia     Region = "indonesia"
	RegionThailand      Region = "thailand"
	RegionVietnam       Region = "vietnam"
	RegionPhilippines   Region = "philippines"
	RegionAustralia     Region = "australia"
	RegionUSA           Region = "usa"
	RegionUK            Region = "uk"
	RegionGermany       Region = "germany"
	RegionFrance        Region = "france"
	RegionInternational Region = "international"
)

// RegionConfig holds the formatting rules for one region. Values are shared
// and must not be modified.
type RegionConfig struct {
	Name              string
	PostalCodePattern *regexp.Regexp
	PostalCodeFormat  string
	PhonePattern      *regexp.Regexp
	PhoneFormat       string
	States            []string
	Cities            []string
}

type regionEntry struct {
	key    Region
	config RegionConfig
	prefix string // dial code, "" when none
}

// regionTable is the closed set of supported regions in listing order.
var regionTable = []regionEntry{
	{RegionSingapore, RegionConfig{
		Name:              "Singapore",
		PostalCodePattern: regexp.MustCompile(`^\d{6}$`),
		PostalCodeFormat:  "6 digits (e.g., 123456)",
		PhonePattern:      regexp.MustCompile(`^(\+65)?[689]\d{7}$`),
		PhoneFormat:       "+65 XXXX XXXX",
		States:            []string{},
		Cities:            []string{"Singapore"},
	}, ""},
	{RegionMalaysia, RegionConfig{
		Name:              "Malaysia",
		PostalCodePattern: regexp.MustCompile(`^\d{5}$`),
		PostalCodeFormat:  "5 digits (e.g., 50000)",
		PhonePattern:      regexp.MustCompile(`^(\+60)?[0-9]{9,10}$`),
		PhoneFormat:       "+60 XX XXX XXXX",
	}, "+60"},
	{RegionIndonesia, RegionConfig{
		Name:              "Indonesia",
		PostalCodePattern: regexp.MustCompile(`^\d{5}$`),
		PostalCodeFormat:  "5 digits (e.g., 12345)",
		PhonePattern:      regexp.MustCompile(`^(\+62)?[0-9]{9,12}$`),
		PhoneFormat:       "+62 XXX XXXX XXXX",
	}, "+62"},
	{RegionThailand, RegionConfig{
		Name:              "Thailand",
		PostalCodePattern: regexp.MustCompile(`^\d{5}$`),
		PostalCodeFormat:  "5 digits (e.g., 10110)",
		PhonePattern:      regexp.MustCompile(`^(\+66)?[0-9]{9}$`),
		PhoneFormat:       "+66 X XXXX XXXX",
	}, "+66"},
	{RegionVietnam, RegionConfig{
		Name:              "Vietnam",
		PostalCodePattern: regexp.MustCompile(`^\d{6}$`),
		PostalCodeFormat:  "6 digits (e.g., 100000)",
		PhonePattern:      regexp.MustCompile(`^(\+84)?[0-9]{9,10}$`),
		PhoneFormat:       "+84 XXX XXX XXXX",
	}, "+84"},
	{RegionPhilippines, RegionConfig{
		Name:              "Philippines",
		PostalCodePattern: regexp.MustCompile(`^\d{4}$`),
		PostalCodeFormat:  "4 digits (e.g., 1000)",
		PhonePattern:      regexp.MustCompile(`^(\+63)?[0-9]{10}$`),
		PhoneFormat:       "+63 XXX XXX XXXX",
	}, "+63"},
	{RegionAustralia, RegionConfig{
		Name:              "Australia",
		PostalCodePattern: regexp.MustCompile(`^\d{4}$`),
		PostalCodeFormat:  "4 digits (e.g., 2000)",
		PhonePattern:      regexp.MustCompile(`^(\+61)?[0-9]{9}$`),
		PhoneFormat:       "+61 X XXXX XXXX",
		States:            []string{"NSW", "VIC", "QLD", "WA", "SA", "TAS", "ACT", "NT"},
	}, "+61"},
	{RegionUSA, RegionConfig{
		Name:              "United States",
		PostalCodePattern: regexp.MustCompile(`^\d{5}(-\d{4})?$`),
		PostalCodeFormat:  "5 digits or ZIP+4 (e.g., 12345 or 12345-6789)",
		PhonePattern:      regexp.MustCompile(`^(\+1)?[0-9]{10}$`),
		PhoneFormat:       "+1 XXX XXX XXXX",
	}, "+1"},
	{RegionUK, RegionConfig{
		Name:              "United Kingdom",
		PostalCodePattern: regexp.MustCompile(`(?i)^[A-Z]{1,2}\d[A-Z\d]?\s*\d[A-Z]{2}$`),
		PostalCodeFormat:  "UK format (e.g., SW1A 1AA)",
		PhonePattern:      regexp.MustCompile(`^(\+44)?[0-9]{10,11}$`),
		PhoneFormat:       "+44 XXXX XXXXXX",
	}, "+44"},
	{RegionGermany, RegionConfig{
		Name:              "Germany",
		PostalCodePattern: regexp.MustCompile(`^\d{5}$`),
		PostalCodeFormat:  "5 digits (e.g., 10115)",
		PhonePattern:      regexp.MustCompile(`^(\+49)?[0-9]{10,11}$`),
		PhoneFormat:       "+49 XXX XXXXXXX",
	}, "+49"},
	{RegionFrance, RegionConfig{
		Name:              "France",
		PostalCodePattern: regexp.MustCompile(`^\d{5}$`),
		PostalCodeFormat:  "5 digits (e.g., 75001)",
		PhonePattern:      regexp.MustCompile(`^(\+33)?[0-9]{9}$`),
		PhoneFormat:       "+33 X XX XX XX XX",
	}, "+33"},
	{RegionInternational, RegionConfig{
		Name:              "International",
		PostalCodePattern: regexp.MustCompile(`^.{3,10}$`),
		PostalCodeFormat:  "3-10 characters",
		PhonePattern:      regexp.MustCompile(`^\+?[0-9]{7,15}$`),
		PhoneFormat:       "International format with country code",
	}, ""},
}

var regionIndex = func() map[Region]int {
	idx := make(map[Region]int, len(regionTable))
	for i, e := range regionTable {
		idx[e.key] = i
	}
	return idx
}()

// international is the fallback arm of every region lookup.
var international = regionTable[regionIndex[RegionInternational]]

func lookupRegion(region string) (regionEntry, bool) {
	if i, ok := regionIndex[Region(region)]; ok {
		return regionTable[i], true
	}
	return international, false
}

// ConfigFor returns the rules for region, falling back to the international
// rules for unknown keys.
func ConfigFor(region string) RegionConfig {
	e, _ := lookupRegion(region)
	return e.config
}

// IsSupported reports whether region is a key of the region table.
func IsSupported(region string) bool {
	_, ok := regionIndex[Region(region)]
	return ok
}

// SupportedRegions returns the region keys in table order. The slice is a
// fresh copy on every call.
func SupportedRegions() []Region {
	out := make([]Region, len(regionTable))
	for i, e := range regionTable {
		out[i] = e.key
	}
	return out
}

// Configs returns every region's rules keyed by region.
func Configs() map[Region]RegionConfig {
	out := make(map[Region]RegionConfig, len(regionTable))
	for _, e := range regionTable {
		out[e.key] = e.config
	}
	return out
}

// CountryPrefix returns the dial code used when formatting phone numbers.
// Singapore has its own formatting path and international has no prefix,
// so both report false.
func CountryPrefix(region string) (string, bool) {
	i, ok := regionIndex[Region(region)]
	if !ok || regionTable[i].prefix == "" {
		return "", false
	}
	return regionTable[i].prefix, true
}

// displayName returns the region's name, or "" for unknown keys.
func displayName(region string) string {
	e, ok := lookupRegion(region)
	if !ok {
		return ""
	}
	return e.config.Name
}
