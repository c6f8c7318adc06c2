package cleaning

import (
	"regexp"
	"strings"
)

type addressRule struct {
	pattern     *regexp.Regexp
	replacement string
}

func rule(pattern, replacement string) addressRule {
	return addressRule{regexp.MustCompile(pattern), replacement}
}

// singaporeRules are applied in order; later rules see the output of
// earlier ones.
//
// Go's \b is ASCII-only, matching the word characters the rules target.
// A trailing \b already refuses a following digit, so `\bs\b` leaves
// "S12" alone without a lookahead.
var singaporeRules = []addressRule{
	// block
	rule(`(?i)\bblk\b`, "Block"),
	rule(`\bBLK\b`, "Block"),
	rule(`(?i)\bblock\b`, "Block"),

	// street types
	rule(`(?i)\bst\b`, "Street"),
	rule(`(?i)\bstr\b`, "Street"),
	rule(`(?i)\brd\b`, "Road"),
	rule(`(?i)\bave\b`, "Avenue"),
	rule(`(?i)\bav\b`, "Avenue"),
	rule(`(?i)\bdr\b`, "Drive"),
	rule(`(?i)\bln\b`, "Lane"),
	rule(`(?i)\bpl\b`, "Place"),
	rule(`(?i)\bcres\b`, "Crescent"),
	rule(`(?i)\bcr\b`, "Crescent"),
	rule(`(?i)\bter\b`, "Terrace"),
	rule(`(?i)\bterr\b`, "Terrace"),
	rule(`(?i)\bcl\b`, "Close"),
	rule(`(?i)\bwk\b`, "Walk"),
	rule(`(?i)\bgdn\b`, "Garden"),
	rule(`(?i)\bgdns\b`, "Gardens"),

	// compass points
	rule(`(?i)\bnth\b`, "North"),
	rule(`(?i)\bsth\b`, "South"),
	rule(`(?i)\best\b`, "East"),
	rule(`(?i)\bwst\b`, "West"),
	rule(`(?i)\bn\b`, "North"),
	rule(`(?i)\bs\b`, "South"),
	rule(`(?i)\be\b`, "East"),
	rule(`(?i)\bw\b`, "West"),

	// planning areas
	rule(`(?i)\bAMK\b`, "Ang Mo Kio"),
	rule(`(?i)\bTPY\b`, "Toa Payoh"),
	rule(`(?i)\bCCK\b`, "Choa Chu Kang"),
	rule(`(?i)\bJE\b`, "Jurong East"),
	rule(`(?i)\bJW\b`, "Jurong West"),
	rule(`(?i)\bYCK\b`, "Yio Chu Kang"),
	rule(`(?i)\bBTK\b`, "Bukit Timah"),
	rule(`(?i)\bBBT\b`, "Bukit Batok"),
	rule(`(?i)\bBPJ\b`, "Bukit Panjang"),
	rule(`(?i)\bSGN\b`, "Serangoon"),
	rule(`(?i)\bSMB\b`, "Sembawang"),
	rule(`(?i)\bWDL\b`, "Woodlands"),
	rule(`(?i)\bPGR\b`, "Pasir Ris"),
	rule(`(?i)\bTPN\b`, "Tampines"),
	rule(`(?i)\bBDK\b`, "Bedok"),
	rule(`(?i)\bMRB\b`, "Marine Parade"),
	rule(`(?i)\bKLG\b`, "Kallang"),
	rule(`(?i)\bGYL\b`, "Geylang"),
	rule(`(?i)\bQTN\b`, "Queenstown"),
	rule(`(?i)\bCBD\b`, "Central Business District"),

	// units and floors
	rule(`#(\d+)-(\d+)`, "#${1}-${2}"),
	rule(`(?i)\bunit\s*(\d+)`, "Unit ${1}"),
	rule(`(?i)\bflr\b`, "Floor"),
	rule(`(?i)\bfl\b`, "Floor"),
	rule(`(?i)\blvl\b`, "Level"),
}

var (
	commaRun     = regexp.MustCompile(`,+`)
	commaSpacing = regexp.MustCompile(`\s*,\s*`)
	unitToken    = regexp.MustCompile(`^#\d+`)
)

// CleanAddress normalizes whitespace and comma spacing. Singapore
// addresses additionally have abbreviations expanded and words
// re-capitalized.
func CleanAddress(address, region string) string {
	cleaned := CleanString(address)
	if cleaned == "" {
		return ""
	}
	cleaned = commaRun.ReplaceAllString(cleaned, ",")
	cleaned = commaSpacing.ReplaceAllString(cleaned, ", ")

	if Region(region) != RegionSingapore {
		return cleaned
	}

	for _, r := range singaporeRules {
		cleaned = r.pattern.ReplaceAllString(cleaned, r.replacement)
	}
	return recapitalize(cleaned)
}

// recapitalize title-cases each word between the delimiters , # and -.
// Delimiters, numbers and #-prefixed unit tokens are kept verbatim.
func recapitalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ',', '#', '-':
			b.WriteString(capitalizeWords(s[start:i]))
			b.WriteByte(s[i])
			start = i + 1
		}
	}
	b.WriteString(capitalizeWords(s[start:]))
	return b.String()
}

func capitalizeWords(part string) string {
	words := strings.Split(part, " ")
	for i, w := range words {
		if w == "" || isAllDigits(w) || unitToken.MatchString(w) {
			continue
		}
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return s != ""
}
