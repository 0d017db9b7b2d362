package common

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeaders(t *testing.T) {
	t.Run("development omits HSTS", func(t *testing.T) {
		rec := httptest.NewRecorder()
		DefaultSecurityHeaders(false).Apply(rec)

		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
	})

	t.Run("production sends HSTS", func(t *testing.T) {
		rec := httptest.NewRecorder()
		DefaultSecurityHeaders(true).Apply(rec)

		assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")
	})
}

func TestParseOrigins(t *testing.T) {
	scenarios := []struct {
		name    string
		raw     string
		want    Origins
		wantErr bool
	}{
		{name: "empty", raw: "  ", want: nil},
		{name: "wildcard", raw: "*", want: Origins{"*"}},
		{name: "list with blanks", raw: "https://a.com, ,https://b.com ", want: Origins{"https://a.com", "https://b.com"}},
		{name: "wildcard mixed", raw: "https://a.com,*", wantErr: true},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.name, func(t *testing.T) {
			got, err := ParseOrigins(scenario.raw)
			if scenario.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, scenario.want, got)
		})
	}
}

func TestOriginsAllows(t *testing.T) {
	origins := Origins{"https://a.com"}
	assert.True(t, origins.Allows("https://a.com"))
	assert.False(t, origins.Allows("https://evil.com"))
	assert.False(t, origins.Wildcard())

	assert.True(t, Origins{"*"}.Allows("https://anything.io"))
	assert.False(t, Origins(nil).Allows("https://a.com"))
}
