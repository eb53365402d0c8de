// Package canned generates roasts from a fixed template set without
// calling any provider. It backs local development and smoke tests
// where an LLM endpoint is unavailable.
package canned

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/roasting-id/roasting-service/internal/roast"
)

var templates = []string{
	"%s? Serius? Landing page-nya lebih banyak buzzword daripada pelanggan. %s Prediksi: pivot ke 'AI-powered' sebelum akhir tahun, lalu hilang dari peredaran.",
	"Jadi %s ini solusinya apa, masalahnya apa, nggak ada yang tahu. %s Enam bulan lagi domainnya expired dan foundernya bikin thread 'lessons learned'.",
	"%s keliatannya dibangun pas hackathon dan belum disentuh lagi. %s Tunggu aja sampai investor nanya revenue, langsung ganti nama jadi web3.",
}

// Generator returns a deterministic roast per startup.
type Generator struct{}

// New builds a Generator.
func New() *Generator {
	return &Generator{}
}

// Generate picks a template by hashing the startup URL so the same
// input always roasts the same way.
func (g *Generator) Generate(_ context.Context, s roast.Startup) (string, error) {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		name = "Startup misterius ini"
	}
	detail := "Kontennya pun minim banget."
	if strings.TrimSpace(s.Description) != "" {
		detail = fmt.Sprintf("Katanya sih '%s', tapi buktinya mana?", strings.TrimSpace(s.Description))
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(s.URL))
	tmpl := templates[int(h.Sum32())%len(templates)]
	return fmt.Sprintf(tmpl, name, detail), nil
}
