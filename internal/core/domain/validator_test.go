package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPgQueryValidator(t *testing.T) {
	t.Parallel()
	v := NewPgQueryValidator()

	tests := []struct {
		name string
		sql  string
		want error
	}{
		{"select", "SELECT id FROM users WHERE created_at > now() - interval '7 days' LIMIT 10", nil},
		{"join", "SELECT u.id FROM users u JOIN orders o ON u.id = o.user_id", nil},
		{"empty", "   ", ErrEmptyQuery},
		{"delete", "DELETE FROM users", ErrNotAllowed},
		{"explain", "EXPLAIN SELECT 1", ErrNotAllowed},
		{"select into", "SELECT * INTO backup FROM users", ErrNotAllowed},
		{"for update", "SELECT * FROM users FOR UPDATE", ErrNotAllowed},
		{"multi statement", "SELECT 1; SELECT 2", ErrMultiStatement},
		{"garbage", "SELEC * FORM users", ErrParseFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(tt.sql)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
