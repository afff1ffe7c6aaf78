package artifact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildName(t *testing.T) {
	date := time.Date(2026, 3, 7, 22, 15, 0, 0, time.UTC)

	tests := []struct {
		name  string
		parts NameParts
		want  string
	}{
		{
			name:  "plain chat",
			parts: NameParts{ChatName: "Alice Smith", Date: date},
			want:  "ALICE_SMITH_FROM_CHAT_20260307.txt",
		},
		{
			name:  "media and channel",
			parts: NameParts{Channel: "wa", ChatName: "Family 🎉 Group!", Date: date, IncludeMedia: true},
			want:  "WA_FAMILY_GROUP_FROM_CHAT_20260307.zip",
		},
		{
			name:  "enriched phone contact",
			parts: NameParts{ChatName: "Bob Jones", ExternalID: "c-42", PhoneDigits: "+1 (555) 010-9999", Date: date},
			want:  "BOB_JONES_FROM_CHAT_C_42_15550109999_20260307.txt",
		},
		{
			name:  "diacritics",
			parts: NameParts{ChatName: "José Müller", Date: date},
			want:  "JOSE_MULLER_FROM_CHAT_20260307.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildName(tt.parts))
		})
	}
}

func TestIsPhoneLike(t *testing.T) {
	assert.True(t, IsPhoneLike("+1 555-010-9999"))
	assert.True(t, IsPhoneLike("(020) 7946 0958"))
	assert.False(t, IsPhoneLike("Alice"))
	assert.False(t, IsPhoneLike("123"))
	assert.False(t, IsPhoneLike("Room 5550109"))
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "15550109999", Digits("+1 (555) 010-9999"))
	assert.Empty(t, Digits("none"))
}
