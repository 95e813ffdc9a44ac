package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-academics/internal/models"
	"github.com/noah-isme/sis-academics/pkg/config"
)

type recordingAuditWriter struct {
	mu      sync.Mutex
	entries []models.AuditLog
	fail    int
}

func (w *recordingAuditWriter) Create(ctx context.Context, log *models.AuditLog) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail > 0 {
		w.fail--
		return errors.New("db unavailable")
	}
	w.entries = append(w.entries, *log)
	return nil
}

func (w *recordingAuditWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func TestAuditRecordWritesInlineWhenQueueStopped(t *testing.T) {
	writer := &recordingAuditWriter{}
	metrics := NewMetricsService()
	svc := NewAuditService(writer, config.AuditConfig{}, metrics, zap.NewNop())

	svc.Record(context.Background(), newAuditEntry("admin", models.AuditActionSetCurrentYear, "academic_year", "y1", map[string]string{"name": "2024/2025"}))

	require.Equal(t, 1, writer.count())
	entry := writer.entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "admin", *entry.UserID)
	assert.Equal(t, "y1", *entry.ResourceID)
	assert.JSONEq(t, `{"name":"2024/2025"}`, string(entry.Details))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.auditDropped))
}

func TestAuditRecordQueuedAndDrainedOnStop(t *testing.T) {
	writer := &recordingAuditWriter{fail: 1}
	svc := NewAuditService(writer, config.AuditConfig{Workers: 2, BufferSize: 8, MaxRetries: 2, RetryDelay: 10 * time.Millisecond}, nil, zap.NewNop())
	svc.Start(context.Background())

	for i := 0; i < 5; i++ {
		svc.Record(context.Background(), newAuditEntry("admin", models.AuditActionPromotionExecute, "class", "c1", nil))
	}

	assert.Eventually(t, func() bool { return writer.count() == 5 }, time.Second, 5*time.Millisecond)
	svc.Stop()
}

func TestNewAuditEntryOmitsEmptyIDs(t *testing.T) {
	entry := newAuditEntry("", models.AuditActionBulkEnroll, "class", "", nil)
	assert.Nil(t, entry.UserID)
	assert.Nil(t, entry.ResourceID)
	assert.Nil(t, entry.Details)
}
