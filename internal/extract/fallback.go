package extract

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/roasting-id/roasting-service/internal/roast"
)

// tldNotes give the generator something to riff on when a site cannot
// be read and only the URL is available.
var tldNotes = map[string]string{
	"io":   "pakai .io biar keliatan tech-savvy",
	"co":   "pakai .co karena .com udah diambil orang",
	"id":   "setidaknya pakai domain lokal",
	"xyz":  "pakai .xyz, domain paling murah sedunia",
	"app":  "pakai .app padahal belum tentu ada app-nya",
	"dev":  "pakai .dev, developer wannabe",
	"ai":   "pakai .ai biar dikira startup AI",
	"tech": "pakai .tech, generic banget",
}

// Fallback synthesizes a Startup from the URL alone so the prompt never
// goes out empty. reason explains why the page yielded nothing.
func Fallback(pageURL, reason string) roast.Startup {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return roast.Startup{
			URL:         pageURL,
			Name:        "Startup Misterius",
			Summary:     fmt.Sprintf("Website tidak bisa dibaca (%s).", reason),
			Synthesized: true,
		}
	}

	host := strings.ToLower(u.Hostname())
	parts := strings.Split(host, ".")
	name := host
	tld := ""
	if len(parts) > 1 {
		name = parts[len(parts)-2]
		tld = parts[len(parts)-1]
	}
	// Hosts like ".com" leave the registrable label empty.
	if name == "" {
		name = host
	}
	if name == "" {
		name = "Startup Misterius"
	}

	var pathHints []string
	for _, seg := range strings.Split(u.Path, "/") {
		if len(seg) > 2 {
			pathHints = append(pathHints, seg)
		}
		if len(pathHints) == 3 {
			break
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Website %s tidak bisa dibaca (%s). Analisis URL: domain=%s", name, reason, host)
	if note, ok := tldNotes[tld]; ok {
		fmt.Fprintf(&b, ", TLD=.%s (%s)", tld, note)
	} else if tld != "" {
		fmt.Fprintf(&b, ", TLD=.%s", tld)
	}
	if len(pathHints) > 0 {
		fmt.Fprintf(&b, ", path=/%s", strings.Join(pathHints, "/"))
	}
	b.WriteString(". Roasting tetap bisa dilakukan berdasarkan nama domain dan struktur URL-nya.")

	return roast.Startup{
		URL:         pageURL,
		Name:        capitalize(name),
		Description: fmt.Sprintf("Startup dengan domain %s (tidak dapat diakses)", host),
		Summary:     b.String(),
		Synthesized: true,
	}
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
