package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstitute(t *testing.T) {
	ann, lee, blank := "Ann", "Lee", "   "

	tests := []struct {
		name  string
		text  string
		names Names
		want  string
	}{
		{"both names", "Hello {{firstName}} {{lastName}}", Names{First: &ann, Last: &lee}, "Hello Ann Lee"},
		{"repeated token", "{{firstName}}, {{firstName}}!", Names{First: &ann, Last: &lee}, "Ann, Ann!"},
		{"unknown names keep tokens", "Hi {{firstName}} {{lastName}}", Names{}, "Hi {{firstName}} {{lastName}}"},
		{"blank first name", "Hi {{firstName}}", Names{First: &blank, Last: &lee}, "Hi [First Name]"},
		{"blank last name", "Mr {{lastName}}", Names{First: &ann, Last: &blank}, "Mr [Last Name]"},
		{"spaced token not replaced", "Hi {{ firstName }}", Names{First: &ann}, "Hi {{ firstName }}"},
		{"name is trimmed", "Hi {{firstName}}", Names{First: strPtr("  Bo ")}, "Hi Bo"},
		{"no tokens", "Practice at 6", Names{First: &ann}, "Practice at 6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.text, tt.names))
		})
	}
}

func TestUnknownTokens(t *testing.T) {
	assert.Empty(t, UnknownTokens("Hi {{firstName}} {{lastName}}"))
	assert.Equal(t,
		[]string{"{{teamName}}", "{{ firstName }}"},
		UnknownTokens("{{teamName}}: {{ firstName }} {{teamName}} {{lastName}}"),
	)
}
