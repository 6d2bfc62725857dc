package remote

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/jetprompt/internal/common"
	"github.com/dmitrijs2005/jetprompt/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePrompts(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantLen   int
		malformed bool
	}{
		{name: "array", body: `[{"id":"1","text":"a","tags":[],"isFavorite":false,"updatedAt":"2024-01-01T00:00:00Z"}]`, wantLen: 1},
		{name: "empty array", body: `[]`, wantLen: 0},
		{name: "object", body: `{"prompts":[]}`, malformed: true},
		{name: "null", body: `null`, malformed: true},
		{name: "garbage", body: `<html>`, malformed: true},
		{name: "empty body", body: ``, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePrompts([]byte(tt.body))
			if tt.malformed {
				require.ErrorIs(t, err, common.ErrMalformedRemoteData)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestEncodePrompts_NilIsEmptyArray(t *testing.T) {
	b, err := EncodePrompts(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	b, err = EncodePrompts([]models.Prompt{{ID: "1", Text: "a", UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1","text":"a","tags":[],"isFavorite":false,"updatedAt":"2024-01-01T00:00:00Z"}]`, string(b))
}
