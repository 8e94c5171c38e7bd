package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		client         bool
		conflict       bool
		retryable      bool
		notFound       bool
		infrastructure bool
	}{
		{"validation", &ValidationError{Field: "date", Message: "bad"}, true, false, false, false, false},
		{"balance", &BalanceViolationError{ProductID: 1, SizeID: 1}, true, false, false, false, false},
		{"already published", fmt.Errorf("publish: %w", ErrAlreadyPublished), false, true, false, false, false},
		{"concurrent modification", ErrConcurrentModification, false, true, true, false, false},
		{"not found", fmt.Errorf("ledger: %w", ErrNotFound), false, false, false, true, false},
		{"store outage", errors.New("disk I/O error"), false, false, false, false, true},
		{"nil", nil, false, false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.client, IsClientError(tt.err), "IsClientError")
			assert.Equal(t, tt.conflict, IsConflict(tt.err), "IsConflict")
			assert.Equal(t, tt.retryable, IsRetryable(tt.err), "IsRetryable")
			assert.Equal(t, tt.notFound, IsNotFound(tt.err), "IsNotFound")
			assert.Equal(t, tt.infrastructure, IsInfrastructure(tt.err), "IsInfrastructure")
		})
	}
}
