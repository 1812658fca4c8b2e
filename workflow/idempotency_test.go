package workflow

import (
	"testing"
	"time"

	"github.com/zedibooks/ledger_backend/models"
)

func TestResolveIdempotencyConflict(t *testing.T) {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		status   models.IdempotencyStatus
		updated  time.Time
		expected idempotencyAction
	}{
		{
			name:     "succeeded message is skipped on redelivery",
			status:   models.IdempotencyStatusSucceeded,
			updated:  now.Add(-time.Hour),
			expected: idempotencySkip,
		},
		{
			name:     "live started row belongs to another worker",
			status:   models.IdempotencyStatusStarted,
			updated:  now.Add(-time.Minute),
			expected: idempotencyRetryLater,
		},
		{
			name:     "started row just under the stale cutoff",
			status:   models.IdempotencyStatusStarted,
			updated:  now.Add(-idempotencyStaleAfter + time.Second),
			expected: idempotencyRetryLater,
		},
		{
			name:     "stale started row is reclaimed from a crashed worker",
			status:   models.IdempotencyStatusStarted,
			updated:  now.Add(-idempotencyStaleAfter),
			expected: idempotencyReclaim,
		},
		{
			name:     "failed row is retried",
			status:   models.IdempotencyStatusFailed,
			updated:  now.Add(-time.Minute),
			expected: idempotencyReclaim,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			existing := models.IdempotencyKey{
				Status:    tc.status,
				UpdatedAt: tc.updated,
			}
			if got := resolveIdempotencyConflict(&existing, now); got != tc.expected {
				t.Fatalf("status=%s age=%s: got action %d, want %d", tc.status, now.Sub(tc.updated), got, tc.expected)
			}
		})
	}
}
