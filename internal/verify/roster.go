package verify

import (
	"factcheck-backend/internal/llm"
	"factcheck-backend/internal/shared/telemetry"
)

// DefaultRosterSize is the number of independent opinions requested per claim.
const DefaultRosterSize = 3

// Backend is one verifier seat. A non-empty Persona marks a simulated seat:
// the same model asked again under a different reviewer persona.
type Backend struct {
	Name    string
	Client  llm.Completer
	Persona string
}

// Simulated reports whether the seat is a persona on a shared model.
func (b Backend) Simulated() bool {
	return b.Persona != ""
}

var personas = []struct {
	key    string
	prompt string
}{
	{"skeptic", "Review as a skeptical investigative journalist who distrusts unsupported numbers and anonymous sources."},
	{"scientist", "Review as a research scientist who weighs peer-reviewed evidence and study methodology above commentary."},
	{"librarian", "Review as a neutral reference librarian who cares about primary sources and missing context."},
}

// PersonaRoster builds size simulated seats on a single model.
func PersonaRoster(name string, client llm.Completer, size int) []Backend {
	if client == nil || size <= 0 {
		return nil
	}
	out := make([]Backend, 0, size)
	for i := 0; i < size; i++ {
		p := personas[i%len(personas)]
		out = append(out, Backend{Name: name + "/" + p.key, Client: client, Persona: p.prompt})
	}
	return out
}

// FillRoster returns backends unchanged when there are at least size of them.
// Otherwise the missing seats are filled with persona seats over the
// configured models, and the degradation is logged.
func FillRoster(backends []Backend, size int) []Backend {
	if len(backends) == 0 || len(backends) >= size {
		return backends
	}
	out := append([]Backend(nil), backends...)
	for i := 0; len(out) < size; i++ {
		base := backends[i%len(backends)]
		p := personas[i%len(personas)]
		out = append(out, Backend{Name: base.Name + "/" + p.key, Client: base.Client, Persona: p.prompt})
	}
	telemetry.Warn("verifier.roster", map[string]any{
		"distinct_backends": len(backends),
		"roster_size":       size,
		"mode":              "persona_fallback",
	})
	return out
}
