package cleaning

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// fieldAliases maps each canonical field to the normalized column names
// that refer to it. An alias may belong to one field only.
var fieldAliases = []struct {
	field   Field
	aliases []string
}{
	{FieldName, []string{"name", "full_name", "fullname", "customer_name", "recipient", "recipient_name", "contact_name", "customer"}},
	{FieldPhone, []string{"phone", "phone_number", "phonenumber", "mobile", "mobile_number", "contact", "tel", "telephone", "cell", "contact_number"}},
	{FieldEmail, []string{"email", "email_address", "emailaddress", "e_mail"}},
	{FieldAddressLine1, []string{"address", "address1", "address_line_1", "addressline1", "street", "street_address", "address_1", "line1", "full_address", "delivery_address"}},
	{FieldAddressLine2, []string{"address2", "address_line_2", "addressline2", "unit", "apt", "apartment", "suite", "floor", "address_2", "line2"}},
	{FieldCity, []string{"city", "town", "suburb", "district", "area"}},
	{FieldState, []string{"state", "province", "region", "prefecture", "county"}},
	{FieldPostalCode, []string{"postal_code", "postalcode", "postcode", "post_code", "zip", "zipcode", "zip_code", "pincode"}},
	{FieldCountry, []string{"country", "country_code", "nation"}},
}

var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string]Field {
	idx := make(map[string]Field)
	for _, entry := range fieldAliases {
		for _, alias := range entry.aliases {
			if prev, dup := idx[alias]; dup {
				panic(fmt.Sprintf("cleaning: alias %q registered for both %s and %s", alias, prev, entry.field))
			}
			idx[alias] = entry.field
		}
	}
	return idx
}

var separatorRun = regexp.MustCompile(`[\s-]+`)

// NormalizeFieldName maps a raw column header to its canonical field key.
// Headers without an alias come back lower-cased and underscore-joined.
func NormalizeFieldName(raw string) string {
	normalized := separatorRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "_")
	if f, ok := aliasIndex[normalized]; ok {
		return string(f)
	}
	return normalized
}

// CleanString trims s and collapses internal whitespace to single spaces.
func CleanString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MapRawRow builds a RawRecord from a column-name to value map. Columns
// are visited in sorted order so that when two headers map to the same
// field the result does not depend on map iteration.
func MapRawRow(columns map[string]string, rowIndex int, batchID int64) RawRecord {
	keys := make([]string, 0, len(columns))
	for k := range columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, len(keys))
	original := make(map[string]string, len(columns))
	for i, k := range keys {
		values[i] = columns[k]
		original[k] = columns[k]
	}
	return mapColumns(keys, values, original, rowIndex, batchID)
}

// MapRawRowOrdered is MapRawRow for a header/row pair. Later columns win
// over earlier ones that map to the same field. Missing trailing cells are
// treated as empty.
func MapRawRowOrdered(header, row []string, rowIndex int, batchID int64) RawRecord {
	original := make(map[string]string, len(header))
	values := make([]string, len(header))
	for i, h := range header {
		if i < len(row) {
			values[i] = row[i]
		}
		original[h] = values[i]
	}
	return mapColumns(header, values, original, rowIndex, batchID)
}

func mapColumns(names, values []string, original map[string]string, rowIndex int, batchID int64) RawRecord {
	rec := RawRecord{
		BatchID:      batchID,
		RowIndex:     rowIndex,
		OriginalData: original,
	}
	for i, name := range names {
		rec.Contact.Set(Field(NormalizeFieldName(name)), CleanString(values[i]))
	}
	return rec
}
