package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeToken builds an unsigned compact token carrying claims
func makeToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	raw, err := json.Marshal(claims)
	require.NoError(t, err)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","kid":"test"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(raw) + ".c2lnbmF0dXJl"
}

func TestDecodeExpiry_AllPaddingLengths(t *testing.T) {
	const exp = int64(1760000000)
	seen := map[int]bool{}

	for n := 0; n < 8; n++ {
		token := makeToken(t, map[string]interface{}{
			"exp": exp,
			"sub": strings.Repeat("x", n),
		})
		payload := strings.Split(token, ".")[1]
		seen[(4-len(payload)%4)%4] = true

		got, err := DecodeExpiry(token)
		require.NoError(t, err, "sub length %d", n)
		assert.Equal(t, exp, got, "sub length %d", n)
	}

	// unpadded base64 can need 0, 1 or 2 pad characters
	assert.True(t, seen[0])
	assert.True(t, seen[1])
	assert.True(t, seen[2])
}

func TestDecodeExpiry_AlreadyPadded(t *testing.T) {
	raw := base64.URLEncoding.EncodeToString([]byte(`{"exp":1700000000,"a":"b"}`))
	got, err := DecodeExpiry("h." + raw + ".s")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), got)
}

func TestDecodeExpiry_URLSafeAlphabet(t *testing.T) {
	// "??" and "~~" encode to - and _ in the url-safe alphabet
	token := makeToken(t, map[string]interface{}{"exp": 1700000123, "note": "??>??>~~~"})
	got, err := DecodeExpiry(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000123), got)
}

func TestDecodeExpiry_Errors(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"two segments", "a.b"},
		{"four segments", "a.b.c.d"},
		{"bad base64", "a.!!!!.c"},
		{"not json", "a." + base64.RawURLEncoding.EncodeToString([]byte("nope")) + ".c"},
		{"missing exp", "a." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"x"}`)) + ".c"},
		{"fractional exp", "a." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1.5}`)) + ".c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeExpiry(tt.token)
			require.Error(t, err)
			var ae *AuthError
			assert.ErrorAs(t, err, &ae)
			assert.Equal(t, "decode", ae.Op)
		})
	}
}
