package cleaning

// cleaners.go holds the per-field normalizers. Every cleaner is total:
// empty input yields "", and no input makes a cleaner fail.

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CleanName collapses whitespace and title-cases each word.
func CleanName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

// capitalize upper-cases the first rune of w and lower-cases the rest.
func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if size == 0 {
		return w
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}

// CleanEmail trims and lower-cases an address. Structure is checked by
// ValidateEmail.
func CleanEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// postalDigits is the fixed length for regions with numeric postcodes.
var postalDigits = map[Region]int{
	RegionSingapore:   6,
	RegionMalaysia:    5,
	RegionIndonesia:   5,
	RegionThailand:    5,
	RegionGermany:     5,
	RegionFrance:      5,
	RegionAustralia:   4,
	RegionPhilippines: 4,
}

// CleanPostalCode upper-cases a postcode and strips characters the region
// never uses. Numeric regions are truncated to their digit length.
func CleanPostalCode(code, region string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(code))
	if cleaned == "" {
		return ""
	}

	if n, ok := postalDigits[Region(region)]; ok {
		d := digitsOnly(cleaned)
		if len(d) > n {
			d = d[:n]
		}
		return d
	}

	switch Region(region) {
	case RegionUSA:
		return keepRunes(cleaned, func(r rune) bool { return isDigit(r) || r == '-' })
	case RegionUK:
		return keepRunes(cleaned, func(r rune) bool {
			return isDigit(r) || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || unicode.IsSpace(r)
		})
	}
	return cleaned
}

// CleanPhone formats a phone number for the region. Singapore numbers are
// reduced to their 8-digit subscriber number and written as +65 XXXX XXXX;
// a subscriber number of any other length keeps the +65 prefix so that
// validation reports it. Other regions get their dial code prepended
// unless the digits already start with it.
func CleanPhone(phone, region string) string {
	if strings.TrimSpace(phone) == "" {
		return ""
	}
	digits := digitsOnly(phone)

	if Region(region) == RegionSingapore {
		local := singaporeLocal(digits)
		if len(local) == 8 {
			return "+65 " + local[:4] + " " + local[4:]
		}
		return "+65 " + local
	}

	if prefix, ok := CountryPrefix(region); ok {
		if !strings.HasPrefix(digits, prefix[1:]) {
			return prefix + digits
		}
	}
	return "+" + digits
}

// singaporeLocal recovers the 8-digit subscriber number from a digit
// string with or without the 65 country code.
func singaporeLocal(digits string) string {
	switch {
	case strings.HasPrefix(digits, "65") && len(digits) == 10:
		return digits[2:]
	case len(digits) == 8:
		return digits
	case strings.HasPrefix(digits, "65") && len(digits) > 10:
		return digits[2:10]
	case len(digits) > 8:
		return digits[len(digits)-8:]
	}
	return digits
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func digitsOnly(s string) string {
	return keepRunes(s, isDigit)
}

func keepRunes(s string, keep func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
