package cleaning

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultGroupSize is the number of records sent per correction request.
	DefaultGroupSize = 10

	// DefaultGroupTimeout bounds one correction request.
	DefaultGroupTimeout = 90 * time.Second

	// EnhanceScoreThreshold selects records scoring below it for enhancement.
	EnhanceScoreThreshold = 80

	highConfidenceBoost = 15
)

// Confidence is the certainty a correction source declares for a correction.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// EnhanceCandidate is the subset of a record sent to a correction source.
type EnhanceCandidate struct {
	RowIndex   int    `json:"rowIndex"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	Address2   string `json:"address2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// EnhanceRequest is one group of candidates for a region.
type EnhanceRequest struct {
	Region     string
	RegionName string
	Records    []EnhanceCandidate
}

// Correction proposes new cleaned values for one row. A nil field leaves
// the cleaned value untouched.
type Correction struct {
	RowIndex     int        `json:"rowIndex"`
	Name         *string    `json:"name,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	Email        *string    `json:"email,omitempty"`
	AddressLine1 *string    `json:"addressLine1,omitempty"`
	AddressLine2 *string    `json:"addressLine2,omitempty"`
	City         *string    `json:"city,omitempty"`
	State        *string    `json:"state,omitempty"`
	PostalCode   *string    `json:"postalCode,omitempty"`
	Country      *string    `json:"country,omitempty"`
	Confidence   Confidence `json:"confidence"`
	Notes        string     `json:"notes"`
}

// CorrectionSource proposes corrections for a group of records.
type CorrectionSource interface {
	Corrections(ctx context.Context, req EnhanceRequest) ([]Correction, error)
}

// EnhanceStats reports what one Enhance call did.
type EnhanceStats struct {
	Candidates   int `json:"candidates"`
	Groups       int `json:"groups"`
	FailedGroups int `json:"failedGroups"`
	Applied      int `json:"applied"`
	Boosted      int `json:"boosted"`
}

// Enhancer runs the optional correction pass over low-quality records.
type Enhancer struct {
	Source       CorrectionSource
	GroupSize    int
	GroupTimeout time.Duration
	Logger       *slog.Logger
}

// NewEnhancer returns an Enhancer with default group size and timeout.
func NewEnhancer(src CorrectionSource, logger *slog.Logger) *Enhancer {
	return &Enhancer{
		Source:       src,
		GroupSize:    DefaultGroupSize,
		GroupTimeout: DefaultGroupTimeout,
		Logger:       logger,
	}
}

// fieldLimits are the persisted column lengths corrected values are cut to.
// Address lines are stored unbounded.
var fieldLimits = map[Field]int{
	FieldName:       255,
	FieldPhone:      64,
	FieldEmail:      320,
	FieldCity:       128,
	FieldState:      128,
	FieldPostalCode: 32,
	FieldCountry:    128,
}

// NeedsEnhancement reports whether r qualifies for the correction pass.
func NeedsEnhancement(r CleanedRecord) bool {
	return r.NeedsReview || r.QualityScore < EnhanceScoreThreshold
}

// Enhance sends qualifying records to the source in sequential groups and
// applies the returned corrections to a copy of records. A failed group is
// logged and skipped; corrections already applied are kept. When no record
// qualifies, records is returned as is.
func (e *Enhancer) Enhance(ctx context.Context, records []CleanedRecord, region string) ([]CleanedRecord, EnhanceStats) {
	var stats EnhanceStats

	var candidates []int
	for i := range records {
		if NeedsEnhancement(records[i]) {
			candidates = append(candidates, i)
		}
	}
	stats.Candidates = len(candidates)
	if len(candidates) == 0 || e.Source == nil {
		return records, stats
	}

	out := make([]CleanedRecord, len(records))
	copy(out, records)

	size := e.GroupSize
	if size <= 0 {
		size = DefaultGroupSize
	}
	logger := e.logger()

	for start := 0; start < len(candidates); start += size {
		if ctx.Err() != nil {
			logger.Warn("enhancement cancelled", "remaining", len(candidates)-start, "error", ctx.Err())
			break
		}

		group := candidates[start:min(start+size, len(candidates))]
		stats.Groups++

		applied, boosted, err := e.enhanceGroup(ctx, out, group, region)
		if err != nil {
			stats.FailedGroups++
			logger.Error("enhancement group failed",
				"group", stats.Groups,
				"records", len(group),
				"error", err,
			)
			continue
		}
		stats.Applied += applied
		stats.Boosted += boosted
	}

	logger.Info("enhancement finished",
		"region", region,
		"candidates", stats.Candidates,
		"groups", stats.Groups,
		"failed_groups", stats.FailedGroups,
		"applied", stats.Applied,
	)
	return out, stats
}

func (e *Enhancer) enhanceGroup(ctx context.Context, out []CleanedRecord, group []int, region string) (applied, boosted int, err error) {
	req := EnhanceRequest{
		Region:     region,
		RegionName: ConfigFor(region).Name,
		Records:    make([]EnhanceCandidate, 0, len(group)),
	}
	byRow := make(map[int]int, len(group))
	for _, idx := range group {
		r := out[idx].RawRecord
		req.Records = append(req.Records, EnhanceCandidate{
			RowIndex:   r.RowIndex,
			Name:       r.Name,
			Phone:      r.Phone,
			Email:      r.Email,
			Address:    r.AddressLine1,
			Address2:   r.AddressLine2,
			City:       r.City,
			State:      r.State,
			PostalCode: r.PostalCode,
			Country:    r.Country,
		})
		if _, dup := byRow[r.RowIndex]; !dup {
			byRow[r.RowIndex] = idx
		}
	}

	callCtx := ctx
	if e.GroupTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.GroupTimeout)
		defer cancel()
	}

	corrections, err := e.Source.Corrections(callCtx, req)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrEnhanceFailed, err)
	}

	for _, c := range corrections {
		idx, ok := byRow[c.RowIndex]
		if !ok || c.Confidence == ConfidenceLow {
			continue
		}
		c.applyTo(&out[idx])
		applied++
		if c.Confidence == ConfidenceHigh {
			out[idx].QualityScore = min(out[idx].QualityScore+highConfidenceBoost, MaxQualityScore)
			boosted++
		}
	}
	return applied, boosted, nil
}

// applyTo overwrites the cleaned fields present in c and rebuilds
// CleanedData.
func (c Correction) applyTo(r *CleanedRecord) {
	patch := []struct {
		field Field
		value *string
	}{
		{FieldName, c.Name},
		{FieldPhone, c.Phone},
		{FieldEmail, c.Email},
		{FieldAddressLine1, c.AddressLine1},
		{FieldAddressLine2, c.AddressLine2},
		{FieldCity, c.City},
		{FieldState, c.State},
		{FieldPostalCode, c.PostalCode},
		{FieldCountry, c.Country},
	}
	for _, p := range patch {
		if p.value == nil {
			continue
		}
		r.Cleaned.Set(p.field, truncate(*p.value, fieldLimits[p.field]))
	}
	r.RebuildCleanedData()
}

// truncate cuts s to at most n runes. n <= 0 means unbounded.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func (e *Enhancer) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
