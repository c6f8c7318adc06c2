package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/addrclean/internal/store"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionUpload  AuditAction = "upload"
	ActionClean   AuditAction = "clean"
	ActionUpdate  AuditAction = "update"
	ActionApprove AuditAction = "approve"
	ActionReject  AuditAction = "reject"
	ActionResolve AuditAction = "resolve"
	ActionExport  AuditAction = "export"
	ActionDelete  AuditAction = "delete"
	ActionCreate  AuditAction = "create"
	ActionRevoke  AuditAction = "revoke"
)

// EntityType names what an audit entry is about.
type EntityType string

const (
	EntityBatch  EntityType = "batch"
	EntityRecord EntityType = "record"
	EntityIssue  EntityType = "issue"
	EntityAPIKey EntityType = "api_key"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// determineSeverity returns the severity recorded in an entry's metadata.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionUpload, ActionClean, ActionExport:
		return SeverityHigh
	case ActionDelete, ActionRevoke:
		return SeverityCritical
	case ActionResolve:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// AuditLogParams contains parameters for creating an audit log entry.
// Zero ids are stored as NULL.
type AuditLogParams struct {
	UserID        int64
	BatchID       int64
	RecordID      int64
	Action        AuditAction
	EntityType    EntityType
	EntityID      int64
	PreviousValue map[string]any
	NewValue      map[string]any
	Metadata      map[string]any
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// LogAudit writes an audit entry. The caller's address and user agent are
// taken from ctx.
func (s *Service) LogAudit(ctx context.Context, p AuditLogParams) error {
	meta := make(map[string]any, len(p.Metadata)+1)
	for k, v := range p.Metadata {
		meta[k] = v
	}
	meta["severity"] = string(determineSeverity(p.Action))

	err := s.repo.InsertAudit(ctx, store.AuditEntry{
		UserID:        optionalID(p.UserID),
		BatchID:       optionalID(p.BatchID),
		RecordID:      optionalID(p.RecordID),
		Action:        string(p.Action),
		EntityType:    string(p.EntityType),
		EntityID:      optionalID(p.EntityID),
		PreviousValue: p.PreviousValue,
		NewValue:      p.NewValue,
		Metadata:      meta,
		IPAddress:     IPAddressFromContext(ctx),
		UserAgent:     UserAgentFromContext(ctx),
	})
	if err != nil {
		return fmt.Errorf("audit %s %s: %w", p.Action, p.EntityType, err)
	}
	return nil
}

// audit writes an entry after the audited change has already been applied.
// Failures are logged rather than returned.
func (s *Service) audit(ctx context.Context, p AuditLogParams) {
	if err := s.LogAudit(ctx, p); err != nil {
		s.logger.Error("failed to write audit entry",
			"action", p.Action,
			"entity_type", p.EntityType,
			"entity_id", p.EntityID,
			"error", err,
		)
	}
}

// AuditQuery narrows ListAudit.
type AuditQuery struct {
	BatchID  int64
	RecordID int64
	Action   string
	Limit    int
}

// ListAudit returns the caller's audit entries, newest first. Filtering by
// batch requires owning the batch.
func (s *Service) ListAudit(ctx context.Context, userID int64, q AuditQuery) ([]store.AuditEntry, error) {
	f := store.AuditFilter{
		UserID:   userID,
		RecordID: q.RecordID,
		Action:   q.Action,
		Limit:    q.Limit,
	}
	if q.BatchID != 0 {
		if _, err := s.ownedBatch(ctx, userID, q.BatchID); err != nil {
			return nil, err
		}
		// Entries on an owned batch are visible whoever wrote them.
		f.UserID = 0
		f.BatchID = q.BatchID
	}
	entries, err := s.repo.ListAudit(ctx, f)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return entries, nil
}
