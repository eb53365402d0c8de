package roast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateURLAccepted(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"plain":          "https://tokopedia.com",
		"with path":      "http://example.com/path",
		"with query":     "https://example.com/?ref=launch",
		"upper scheme":   "HTTPS://Example.COM/about",
		"fragment strip": "https://example.com/pricing#plans",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := ValidateURL(raw)
			require.NoError(t, err)
			require.NotEmpty(t, got)
			require.NotContains(t, got, "#")
		})
	}
}

func TestValidateURLRejected(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":            "",
		"not a url":        "not-a-url",
		"ftp scheme":       "ftp://example.com",
		"localhost":        "http://localhost:3000",
		"loopback ip":      "http://127.0.0.1/admin",
		"private ip":       "http://192.168.1.10",
		"link local":       "http://169.254.169.254/latest/meta-data",
		"bare label":       "http://intranet",
		"internal suffix":  "https://db.prod.internal",
		"injection phrase": "https://example.com/?q=ignore previous",
		"injection id":     "https://example.com/abaikan instruksi",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ValidateURL(raw)
			require.Error(t, err)
			var invalid *InvalidInputError
			require.True(t, errors.As(err, &invalid))
		})
	}
}

func TestIsPrivateHost(t *testing.T) {
	t.Parallel()

	require.True(t, IsPrivateHost("10.0.0.5"))
	require.True(t, IsPrivateHost("::1"))
	require.True(t, IsPrivateHost("0.0.0.0"))
	require.False(t, IsPrivateHost("example.com"))
	require.False(t, IsPrivateHost("8.8.8.8"))
}
