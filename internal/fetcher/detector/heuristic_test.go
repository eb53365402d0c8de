package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roasting-id/roasting-service/internal/roast"
)

func page(html string) roast.RenderedPage {
	return roast.RenderedPage{StatusCode: 200, HTML: []byte(html)}
}

func TestShouldEscalate(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(2048)

	cases := []struct {
		name string
		page roast.RenderedPage
		want bool
	}{
		{"empty body", page(""), true},
		{"react shell", page(`<html><body><div id="root"></div></body></html>`), true},
		{"next marker", page(`<html><script id="__NEXT_DATA__">{}</script></html>`), true},
		{"cloudflare interstitial", page(`<html><title>Just a moment...</title><div class="cf-challenge"></div></html>`), true},
		{
			"small script-heavy shell",
			page(`<html><head><script>window.boot()` + strings.Repeat(";", 400) + `</script></head><body>hi</body></html>`),
			true,
		},
		{
			"server rendered page",
			page(`<html><body><h1>Warung Kopi</h1>` + strings.Repeat("<p>Kopi enak murah meriah untuk semua kalangan.</p>", 80) + `</body></html>`),
			false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, h.ShouldEscalate(tc.page))
		})
	}
}

func TestNewHeuristicDefaultThreshold(t *testing.T) {
	t.Parallel()
	require.Equal(t, 2048, NewHeuristic(0).BodyLengthThreshold)
}
