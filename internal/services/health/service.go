package health

import (
	"context"
	"time"
)

// Pinger is any dependency that can prove it is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Service reports which collaborators the process was configured with. The
// API stays up without model keys so this endpoint can say what is missing.
type Service struct {
	OCR            bool
	Extractor      bool
	Chat           bool
	VerifierSeats  []string
	SimulatedSeats int
	SearchProvider string
	Checks         map[string]Pinger
	Timeout        time.Duration
}

// Report is the /health payload.
type Report struct {
	OK       bool              `json:"ok"`
	Ready    bool              `json:"ready"`
	OCR      bool              `json:"ocr"`
	Extract  bool              `json:"extract"`
	Chat     bool              `json:"chat"`
	Verifier VerifierReport    `json:"verifier"`
	Search   string            `json:"search"`
	Checks   map[string]string `json:"checks,omitempty"`
	Hint     string            `json:"hint,omitempty"`
}

// VerifierReport lists the verifier seats.
type VerifierReport struct {
	Seats     []string `json:"seats"`
	Simulated int      `json:"simulated"`
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{Checks: map[string]Pinger{}}
}

// Status runs the dependency checks and summarises configuration. OK reflects
// reachable dependencies; Ready additionally requires OCR and a verifier.
func (s *Service) Status(ctx context.Context) Report {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	seats := s.VerifierSeats
	if seats == nil {
		seats = []string{}
	}
	search := s.SearchProvider
	if search == "" {
		search = "disabled"
	}
	r := Report{
		OK:       true,
		OCR:      s.OCR,
		Extract:  s.Extractor,
		Chat:     s.Chat,
		Verifier: VerifierReport{Seats: seats, Simulated: s.SimulatedSeats},
		Search:   search,
	}
	if len(s.Checks) > 0 {
		r.Checks = make(map[string]string, len(s.Checks))
		for name, p := range s.Checks {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			err := p.PingContext(pctx)
			cancel()
			if err != nil {
				r.OK = false
				r.Checks[name] = "error: " + err.Error()
				continue
			}
			r.Checks[name] = "ok"
		}
	}
	r.Ready = r.OK && s.OCR && len(seats) > 0
	if !s.OCR || len(seats) == 0 {
		r.Hint = "set OPENAI_API_KEY (or configure MODEL_ROSTER_FILE) and restart the service"
	}
	return r
}
