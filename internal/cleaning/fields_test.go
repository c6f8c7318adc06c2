package cleaning

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeFieldName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		// Aliases
		{"Full Name", "name"},
		{" customer-name ", "name"},
		{"Recipient", "name"},
		{"Mobile", "phone"},
		{"Contact Number", "phone"},
		{"TEL", "phone"},
		{"E-mail", "email"},
		{"Email Address", "email"},
		{"Address Line 1", "addressLine1"},
		{"Street Address", "addressLine1"},
		{"Unit", "addressLine2"},
		{"Suburb", "city"},
		{"Province", "state"},
		{"Zip Code", "postalCode"},
		{"postcode", "postalCode"},
		{"Country", "country"},

		// Unmapped columns pass through normalized
		{"Favourite Colour", "favourite_colour"},
		{"  order -  id ", "order_id"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeFieldName(tt.input); got != tt.want {
				t.Errorf("NormalizeFieldName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAliasTableIsExclusive(t *testing.T) {
	seen := make(map[string]Field)
	for _, entry := range fieldAliases {
		for _, alias := range entry.aliases {
			if prev, dup := seen[alias]; dup {
				t.Errorf("alias %q maps to both %s and %s", alias, prev, entry.field)
			}
			seen[alias] = entry.field

			if norm := separatorRun.ReplaceAllString(strings.ToLower(alias), "_"); norm != alias {
				t.Errorf("alias %q is not in normalized form (%q)", alias, norm)
			}
		}
	}
}

func TestCleanString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  hello   world  ", "hello world"},
		{"\tline\none\r\n", "line one"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := CleanString(tt.input); got != tt.want {
			t.Errorf("CleanString(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMapRawRow(t *testing.T) {
	columns := map[string]string{
		"Full Name":    "  john   doe ",
		"Mobile":       "9123 4567",
		"Email":        "JOHN@example.com",
		"Address":      "123  Main St",
		"Postal Code":  "123456",
		"Order Notes":  "leave at door",
		"Country Code": "SG",
	}

	rec := MapRawRow(columns, 3, 42)

	if rec.BatchID != 42 || rec.RowIndex != 3 {
		t.Errorf("BatchID, RowIndex = %d, %d, want 42, 3", rec.BatchID, rec.RowIndex)
	}

	want := Contact{
		Name:         "john doe",
		Phone:        "9123 4567",
		Email:        "JOHN@example.com",
		AddressLine1: "123 Main St",
		PostalCode:   "123456",
		Country:      "SG",
	}
	if rec.Contact != want {
		t.Errorf("Contact = %+v, want %+v", rec.Contact, want)
	}

	if !reflect.DeepEqual(rec.OriginalData, columns) {
		t.Errorf("OriginalData = %v, want %v", rec.OriginalData, columns)
	}

	// The original map is copied, not aliased
	columns["Full Name"] = "changed"
	if rec.OriginalData["Full Name"] != "  john   doe " {
		t.Error("OriginalData shares storage with the input map")
	}
}

func TestMapRawRow_LastWriteWins(t *testing.T) {
	// Keys are visited in sorted order: "full_name" before "name".
	rec := MapRawRow(map[string]string{
		"name":      "Alice",
		"full_name": "Bob",
	}, 0, 1)

	if rec.Name != "Alice" {
		t.Errorf("Name = %q, want %q", rec.Name, "Alice")
	}
}

func TestMapRawRowOrdered(t *testing.T) {
	header := []string{"Full Name", "Phone", "Name", "Zip"}
	row := []string{"First", " 555 ", "Second"}

	rec := MapRawRowOrdered(header, row, 7, 9)

	if rec.Name != "Second" {
		t.Errorf("Name = %q, want %q", rec.Name, "Second")
	}
	if rec.Phone != "555" {
		t.Errorf("Phone = %q, want %q", rec.Phone, "555")
	}
	if rec.PostalCode != "" {
		t.Errorf("PostalCode = %q, want empty for missing cell", rec.PostalCode)
	}
	if got, ok := rec.OriginalData["Zip"]; !ok || got != "" {
		t.Errorf("OriginalData[Zip] = %q, %v, want \"\", true", got, ok)
	}
	if rec.OriginalData["Phone"] != " 555 " {
		t.Errorf("OriginalData[Phone] = %q, want untrimmed value", rec.OriginalData["Phone"])
	}
}

func TestContactMapRoundTrip(t *testing.T) {
	c := Contact{Name: "A", Phone: "B", City: "C", Country: "D"}
	m := c.Map()
	if len(m) != len(Fields) {
		t.Errorf("len(Map()) = %d, want %d", len(m), len(Fields))
	}
	if got := ContactFromMap(m); got != c {
		t.Errorf("ContactFromMap(Map()) = %+v, want %+v", got, c)
	}

	var empty Contact
	if empty.Set("favourite_colour", "blue") {
		t.Error("Set on non-canonical field returned true")
	}
}
