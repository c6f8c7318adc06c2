package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/addrclean/internal/config"
	"github.com/JonMunkholm/addrclean/internal/store"
)

func TestDetermineSeverity(t *testing.T) {
	tests := []struct {
		action AuditAction
		want   AuditSeverity
	}{
		{ActionUpload, SeverityHigh},
		{ActionClean, SeverityHigh},
		{ActionExport, SeverityHigh},
		{ActionDelete, SeverityCritical},
		{ActionRevoke, SeverityCritical},
		{ActionResolve, SeverityLow},
		{ActionUpdate, SeverityMedium},
		{ActionApprove, SeverityMedium},
	}
	for _, tt := range tests {
		if got := determineSeverity(tt.action); got != tt.want {
			t.Errorf("determineSeverity(%s) = %s, want %s", tt.action, got, tt.want)
		}
	}
}

func TestLogAudit_ClientContext(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := ContextWithClient(context.Background(), "203.0.113.9:51234", "curl/8.5")

	err := env.svc.LogAudit(ctx, AuditLogParams{
		UserID:     testUser,
		Action:     ActionUpdate,
		EntityType: EntityRecord,
		EntityID:   42,
		Metadata:   map[string]any{"source": "test"},
	})
	require.NoError(t, err)

	entries, err := env.svc.ListAudit(context.Background(), testUser, AuditQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	require.NotNil(t, e.IPAddress)
	assert.Equal(t, "203.0.113.9", e.IPAddress.String())
	assert.Equal(t, "curl/8.5", e.UserAgent)
	assert.Equal(t, "medium", e.Metadata["severity"])
	assert.Equal(t, "test", e.Metadata["source"])
	assert.Nil(t, e.BatchID)
	assert.Nil(t, e.RecordID)
	require.NotNil(t, e.EntityID)
	assert.Equal(t, int64(42), *e.EntityID)
}

func TestListAudit_BatchScope(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	res := env.upload(t)

	_, err := env.svc.ListAudit(ctx, otherUser, AuditQuery{BatchID: res.BatchID})
	assert.ErrorIs(t, err, ErrBatchNotFound)

	entries, err := env.svc.ListAudit(ctx, testUser, AuditQuery{BatchID: res.BatchID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "upload", entries[0].Action)

	none, err := env.svc.ListAudit(ctx, otherUser, AuditQuery{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRunPurgeJob(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	env := newTestEnv(t, Options{Now: func() time.Time { return now }})

	for i := range 5 {
		env.repo.audit = append(env.repo.audit, store.AuditEntry{ID: int64(i + 1), Action: "upload", CreatedAt: now.AddDate(-2, 0, 0)})
	}
	env.repo.audit = append(env.repo.audit, store.AuditEntry{ID: 6, Action: "clean", CreatedAt: now.AddDate(0, 0, -1)})

	purged := env.svc.runPurgeJob(context.Background(), config.ArchiveConfig{RetentionDays: 365, BatchSize: 2})
	assert.Equal(t, int64(5), purged)
	assert.Equal(t, 3, env.repo.purgeCalls)
	assert.Equal(t, []string{"clean"}, env.repo.auditActions())
}

func TestRunPurgeJob_Disabled(t *testing.T) {
	env := newTestEnv(t, Options{})
	assert.Zero(t, env.svc.runPurgeJob(context.Background(), config.ArchiveConfig{RetentionDays: 0}))
	assert.Zero(t, env.repo.purgeCalls)
}

func TestStartAuditPurgeScheduler_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		env.svc.StartAuditPurgeScheduler(ctx, config.ArchiveConfig{RetentionDays: 30, CheckInterval: time.Hour})
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestIPAddressFromContext(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"192.0.2.1", "192.0.2.1"},
		{"192.0.2.1:8080", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"::ffff:192.0.2.7", "192.0.2.7"},
		{"not-an-ip", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got := IPAddressFromContext(ContextWithClient(context.Background(), tt.in, ""))
		if tt.want == "" {
			if got != nil {
				t.Errorf("IPAddressFromContext(%q) = %v, want nil", tt.in, got)
			}
			continue
		}
		if got == nil || got.String() != tt.want {
			t.Errorf("IPAddressFromContext(%q) = %v, want %s", tt.in, got, tt.want)
		}
	}
	if got := IPAddressFromContext(context.Background()); got != nil {
		t.Errorf("empty context = %v, want nil", got)
	}
}
