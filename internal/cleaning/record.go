package cleaning

import (
	"fmt"
	"strings"
)

// MaxQualityScore is the score of a record with no findings.
const MaxQualityScore = 100

const (
	penaltyMissingName    = 20
	penaltyMissingPhone   = 20
	penaltyMissingAddress = 20
	penaltyMissingPostal  = 15
	penaltyInvalidField   = 10
	penaltyInvalidEmail   = 5
)

// recordScorer accumulates issues and the running score for one record.
type recordScorer struct {
	raw         RawRecord
	issues      []Issue
	score       int
	needsReview bool
}

func (s *recordScorer) add(field Field, sev Severity, typ IssueType, msg string, original string, suggested *string) {
	s.issues = append(s.issues, Issue{
		RecordID:       s.raw.ID,
		BatchID:        s.raw.BatchID,
		RowIndex:       s.raw.RowIndex,
		Field:          field,
		Severity:       sev,
		Type:           typ,
		Message:        msg,
		OriginalValue:  optional(original),
		SuggestedValue: suggested,
	})
}

// required handles one of the four required fields: a missing value is an
// error, an invalid one a warning.
func (s *recordScorer) required(field Field, label, raw, cleaned string, v func(string) Validation, missingPenalty int, reviewOnInvalid bool) {
	if cleaned == "" {
		s.add(field, SeverityError, IssueMissingRequired, label+" is missing", raw, nil)
		s.score -= missingPenalty
		s.needsReview = true
		return
	}
	if res := v(cleaned); !res.Valid {
		s.add(field, SeverityWarning, IssueInvalidFormat, res.Message, raw, &cleaned)
		s.score -= penaltyInvalidField
		if reviewOnInvalid {
			s.needsReview = true
		}
	}
}

// CleanRecord cleans, validates and scores one record for region.
//
// Fields are processed in a fixed order: name, phone, email, address,
// postal code, followed by auto-correction notes for name and phone. The
// returned error is non-nil only when the record carries no batch id.
func CleanRecord(rec RawRecord, region string) (Result, error) {
	if rec.BatchID == 0 {
		return Result{}, fmt.Errorf("clean row %d: %w", rec.RowIndex, ErrMissingBatchID)
	}

	cleaned := Contact{
		Name:         CleanName(rec.Name),
		Phone:        CleanPhone(rec.Phone, region),
		Email:        CleanEmail(rec.Email),
		AddressLine1: CleanAddress(rec.AddressLine1, region),
		AddressLine2: CleanAddress(rec.AddressLine2, region),
		City:         CleanString(rec.City),
		State:        CleanString(rec.State),
		PostalCode:   CleanPostalCode(rec.PostalCode, region),
		Country:      CleanString(rec.Country),
	}
	if cleaned.Country == "" {
		cleaned.Country = displayName(region)
	}

	s := &recordScorer{raw: rec, score: MaxQualityScore}

	s.required(FieldName, "Name", rec.Name, cleaned.Name, ValidateName, penaltyMissingName, false)
	s.required(FieldPhone, "Phone number", rec.Phone, cleaned.Phone,
		func(v string) Validation { return ValidatePhone(v, region) }, penaltyMissingPhone, true)

	if cleaned.Email != "" {
		if res := ValidateEmail(cleaned.Email); !res.Valid {
			s.add(FieldEmail, SeverityWarning, IssueInvalidFormat, res.Message, rec.Email, &cleaned.Email)
			s.score -= penaltyInvalidEmail
		}
	}

	s.required(FieldAddressLine1, "Address", rec.AddressLine1, cleaned.AddressLine1, ValidateAddress, penaltyMissingAddress, true)
	s.required(FieldPostalCode, "Postal code", rec.PostalCode, cleaned.PostalCode,
		func(v string) Validation { return ValidatePostalCode(v, region) }, penaltyMissingPostal, true)

	if rec.Name != "" && cleaned.Name != "" && !strings.EqualFold(rec.Name, cleaned.Name) {
		name := cleaned.Name
		s.add(FieldName, SeverityInfo, IssueAutoCorrected, "Name was standardized", rec.Name, &name)
	}
	if rec.Phone != "" && cleaned.Phone != "" && rec.Phone != cleaned.Phone {
		phone := cleaned.Phone
		s.add(FieldPhone, SeverityInfo, IssueAutoCorrected, "Phone number was formatted", rec.Phone, &phone)
	}

	score := max(s.score, 0)

	out := CleanedRecord{
		RawRecord:    rec,
		Cleaned:      cleaned,
		Status:       deriveStatus(s.issues, rec.Contact, cleaned),
		QualityScore: score,
		NeedsReview:  s.needsReview,
	}
	out.RebuildCleanedData()

	return Result{
		Record:       out,
		Issues:       s.issues,
		QualityScore: score,
		NeedsReview:  s.needsReview,
	}, nil
}

// MustCleanRecord is CleanRecord for callers that guarantee a batch id.
// It panics otherwise.
func MustCleanRecord(rec RawRecord, region string) Result {
	res, err := CleanRecord(rec, region)
	if err != nil {
		panic(err)
	}
	return res
}

// deriveStatus applies the status precedence: any error flags the record,
// otherwise a content change marks it cleaned, otherwise it is accepted.
func deriveStatus(issues []Issue, raw, cleaned Contact) Status {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return StatusFlagged
		}
	}
	if hasChanges(raw, cleaned) {
		return StatusCleaned
	}
	return StatusAccepted
}

// hasChanges compares the fields whose cleaning can alter content. City,
// state and country are excluded. Two empty values are equal.
func hasChanges(raw, cleaned Contact) bool {
	return raw.Name != cleaned.Name ||
		raw.Phone != cleaned.Phone ||
		raw.Email != cleaned.Email ||
		raw.AddressLine1 != cleaned.AddressLine1 ||
		raw.AddressLine2 != cleaned.AddressLine2 ||
		raw.PostalCode != cleaned.PostalCode
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
