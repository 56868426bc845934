package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectFor(t *testing.T) {
	tests := []struct {
		key, want string
	}{
		{"user-42", "support.tickets.user-42"},
		{"a.b", "support.tickets.a_b"},
		{"x*>y z", "support.tickets.x__y_z"},
		{"", "support.tickets._"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SubjectFor("support.tickets", tt.key))
	}
}
