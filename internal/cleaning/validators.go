package cleaning

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validators accept empty input; missing values are reported by
// CleanRecord, not here.

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateName rejects names shorter than two characters or made of digits.
func ValidateName(name string) Validation {
	if name == "" {
		return valid()
	}
	if utf8.RuneCountInString(name) < 2 {
		return invalid("Name is too short")
	}
	if isAllDigits(name) {
		return invalid("Name contains only numbers")
	}
	return valid()
}

// ValidateEmail checks for a local@domain.tld shape.
func ValidateEmail(email string) Validation {
	if email == "" {
		return valid()
	}
	if !emailPattern.MatchString(email) {
		return invalid("Invalid email format")
	}
	return valid()
}

// ValidatePhone checks a phone number against the region's pattern.
// Singapore numbers are first checked for a valid leading digit and an
// 8-digit subscriber number so the message can say what is wrong.
func ValidatePhone(phone, region string) Validation {
	if phone == "" {
		return valid()
	}

	if Region(region) == RegionSingapore {
		digits := digitsOnly(phone)
		local := digits
		if strings.HasPrefix(digits, "65") && len(digits) >= 10 {
			local = digits[2:]
		}
		if local != "" {
			switch first := local[0]; first {
			case '6', '8', '9':
			default:
				return invalid(fmt.Sprintf("Invalid Singapore number: must start with 8, 9, or 6 after +65 prefix (got %c)", first))
			}
		}
		if len(local) != 8 {
			return invalid(fmt.Sprintf("Invalid Singapore number: local number should be 8 digits (got %d)", len(local)))
		}
	}

	cfg := ConfigFor(region)
	compact := strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "", "-", "").Replace(phone)
	if !cfg.PhonePattern.MatchString(compact) {
		return invalid(fmt.Sprintf("Phone number doesn't match %s format (%s)", cfg.Name, cfg.PhoneFormat))
	}
	return valid()
}

// ValidatePostalCode checks a cleaned postcode against the region's
// pattern.
func ValidatePostalCode(code, region string) Validation {
	if code == "" {
		return valid()
	}
	cfg := ConfigFor(region)
	if !cfg.PostalCodePattern.MatchString(code) {
		return invalid(fmt.Sprintf("Postal code doesn't match %s format (%s)", cfg.Name, cfg.PostalCodeFormat))
	}
	return valid()
}

// ValidateAddress rejects addresses shorter than five characters.
func ValidateAddress(address string) Validation {
	if address == "" {
		return valid()
	}
	if utf8.RuneCountInString(address) < 5 {
		return invalid("Address is too short")
	}
	return valid()
}
