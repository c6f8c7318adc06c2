package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/store"
)

// Issues lists a batch's findings, optionally of one severity.
func (s *Service) Issues(ctx context.Context, userID, batchID int64, severity cleaning.Severity) ([]store.Issue, error) {
	switch severity {
	case "", cleaning.SeverityError, cleaning.SeverityWarning, cleaning.SeverityInfo:
	default:
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, severity)
	}
	if _, err := s.ownedBatch(ctx, userID, batchID); err != nil {
		return nil, err
	}
	return s.repo.ListBatchIssues(ctx, batchID, severity)
}

// IssueStats counts a batch's findings by severity.
func (s *Service) IssueStats(ctx context.Context, userID, batchID int64) (store.IssueStats, error) {
	if _, err := s.ownedBatch(ctx, userID, batchID); err != nil {
		return store.IssueStats{}, err
	}
	return s.repo.IssueStats(ctx, batchID)
}

// ResolveIssue marks a finding resolved.
func (s *Service) ResolveIssue(ctx context.Context, userID, issueID int64) error {
	err := s.repo.ResolveIssue(ctx, issueID, userID, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrIssueNotFound
	}
	if err != nil {
		return err
	}

	s.audit(ctx, AuditLogParams{
		UserID:     userID,
		Action:     ActionResolve,
		EntityType: EntityIssue,
		EntityID:   issueID,
		NewValue:   map[string]any{"isResolved": true},
	})
	return nil
}
