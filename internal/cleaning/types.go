package cleaning

import "time"

// Field is one of the nine canonical record attributes.
type Field string

const (
	FieldName         Field = "name"
	FieldPhone        Field = "phone"
	FieldEmail        Field = "email"
	FieldAddressLine1 Field = "addressLine1"
	FieldAddressLine2 Field = "addressLine2"
	FieldCity         Field = "city"
	FieldState        Field = "state"
	FieldPostalCode   Field = "postalCode"
	FieldCountry      Field = "country"
)

// Fields lists the canonical fields in display order.
var Fields = []Field{
	FieldName,
	FieldPhone,
	FieldEmail,
	FieldAddressLine1,
	FieldAddressLine2,
	FieldCity,
	FieldState,
	FieldPostalCode,
	FieldCountry,
}

// IsCanonical reports whether f is one of the nine canonical fields.
func (f Field) IsCanonical() bool {
	switch f {
	case FieldName, FieldPhone, FieldEmail, FieldAddressLine1, FieldAddressLine2,
		FieldCity, FieldState, FieldPostalCode, FieldCountry:
		return true
	}
	return false
}

// Contact holds a value for every canonical field.
type Contact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

// Get returns the value stored for f. Non-canonical fields return "".
func (c Contact) Get(f Field) string {
	switch f {
	case FieldName:
		return c.Name
	case FieldPhone:
		return c.Phone
	case FieldEmail:
		return c.Email
	case FieldAddressLine1:
		return c.AddressLine1
	case FieldAddressLine2:
		return c.AddressLine2
	case FieldCity:
		return c.City
	case FieldState:
		return c.State
	case FieldPostalCode:
		return c.PostalCode
	case FieldCountry:
		return c.Country
	}
	return ""
}

// Set stores v for f and reports whether f was canonical.
func (c *Contact) Set(f Field, v string) bool {
	switch f {
	case FieldName:
		c.Name = v
	case FieldPhone:
		c.Phone = v
	case FieldEmail:
		c.Email = v
	case FieldAddressLine1:
		c.AddressLine1 = v
	case FieldAddressLine2:
		c.AddressLine2 = v
	case FieldCity:
		c.City = v
	case FieldState:
		c.State = v
	case FieldPostalCode:
		c.PostalCode = v
	case FieldCountry:
		c.Country = v
	default:
		return false
	}
	return true
}

// Map returns the contact as a field-keyed map with all nine keys present.
func (c Contact) Map() map[string]string {
	m := make(map[string]string, len(Fields))
	for _, f := range Fields {
		m[string(f)] = c.Get(f)
	}
	return m
}

// ContactFromMap is the inverse of Contact.Map. Unknown keys are ignored.
func ContactFromMap(m map[string]string) Contact {
	var c Contact
	for k, v := range m {
		c.Set(Field(k), v)
	}
	return c
}

// Status is the lifecycle state of a record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusCleaned  Status = "cleaned"
	StatusFlagged  Status = "flagged"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusAccepted Status = "accepted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCleaned, StatusFlagged, StatusApproved, StatusRejected, StatusAccepted:
		return true
	}
	return false
}

// Severity ranks an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// IssueType classifies what kind of finding an issue is.
type IssueType string

const (
	IssueMissingRequired IssueType = "missing_required"
	IssueInvalidFormat   IssueType = "invalid_format"
	IssueAutoCorrected   IssueType = "auto_corrected"
)

// RawRecord is one uploaded row before cleaning.
type RawRecord struct {
	ID           int64             `json:"id,omitempty"`
	BatchID      int64             `json:"batchId"`
	RowIndex     int               `json:"rowIndex"`
	OriginalData map[string]string `json:"originalData"`
	Contact
}

// CleanedRecord is a RawRecord plus its cleaning outcome.
type CleanedRecord struct {
	RawRecord
	Cleaned      Contact           `json:"cleaned"`
	CleanedData  map[string]string `json:"cleanedData"`
	Status       Status            `json:"status"`
	QualityScore int               `json:"qualityScore"`
	NeedsReview  bool              `json:"needsReview"`
	ReviewedBy   *int64            `json:"reviewedBy,omitempty"`
	ReviewedAt   *time.Time        `json:"reviewedAt,omitempty"`
}

// RebuildCleanedData refreshes CleanedData from Cleaned.
func (r *CleanedRecord) RebuildCleanedData() {
	r.CleanedData = r.Cleaned.Map()
}

// Issue is a single validation finding on one field of one record.
type Issue struct {
	ID             int64     `json:"id,omitempty"`
	RecordID       int64     `json:"recordId"`
	BatchID        int64     `json:"batchId"`
	RowIndex       int       `json:"rowIndex"`
	Field          Field     `json:"field"`
	Severity       Severity  `json:"severity"`
	Type           IssueType `json:"issueType"`
	Message        string    `json:"message"`
	OriginalValue  *string   `json:"originalValue,omitempty"`
	SuggestedValue *string   `json:"suggestedValue,omitempty"`
	Resolved       bool      `json:"isResolved"`
}

// Result is the output of CleanRecord.
type Result struct {
	Record       CleanedRecord `json:"record"`
	Issues       []Issue       `json:"issues"`
	QualityScore int           `json:"qualityScore"`
	NeedsReview  bool          `json:"needsReview"`
}

// WorstSeverity returns the most severe issue level in the result, or ""
// when there are no errors or warnings.
func (r Result) WorstSeverity() Severity {
	worst := Severity("")
	for _, is := range r.Issues {
		switch is.Severity {
		case SeverityError:
			return SeverityError
		case SeverityWarning:
			worst = SeverityWarning
		}
	}
	return worst
}

// Validation is the outcome of a field validator.
type Validation struct {
	Valid   bool
	Message string
}

func valid() Validation { return Validation{Valid: true} }

func invalid(msg string) Validation { return Validation{Valid: false, Message: msg} }
