package cook

import (
	"log/slog"
	"time"

	"kiln/internal/logging"
	"kiln/internal/objcook"
	"kiln/internal/platform"
)

// Phase is one timed step of a run.
type Phase struct {
	Name     string
	Duration time.Duration
}

// Summary reports what a run did.
type Summary struct {
	RunID    string
	Platform platform.ID

	Planned   int
	Stale     int
	Written   int
	Patched   int
	Skipped   int
	NotSaved  int
	Bytes     int64
	Exports   int
	Forced    int
	Recorded  int
	Hashed    int
	Cooked    []objcook.KindCount
	Recovered int

	Phases   []Phase
	Duration time.Duration
}

type phaseTimer struct {
	start time.Time
	last  time.Time
	out   *[]Phase
}

func newPhaseTimer(out *[]Phase) *phaseTimer {
	now := time.Now()
	return &phaseTimer{start: now, last: now, out: out}
}

// mark closes the phase running since the previous mark.
func (p *phaseTimer) mark(name string) {
	now := time.Now()
	*p.out = append(*p.out, Phase{Name: name, Duration: now.Sub(p.last)})
	p.last = now
}

func (p *phaseTimer) total() time.Duration {
	return time.Since(p.start)
}

// Log writes the summary as one info line per concern.
func (s *Summary) Log(logger *slog.Logger) {
	logger.Info("cook summary",
		logging.String(logging.FieldRunID, s.RunID),
		logging.String(logging.FieldPlatform, string(s.Platform)),
		logging.Int("planned", s.Planned),
		logging.Int("stale", s.Stale),
		logging.Int("written", s.Written),
		logging.Int("patched", s.Patched),
		logging.Int("skipped", s.Skipped),
		logging.Bytes("size", s.Bytes),
		logging.Int64("bytes", s.Bytes),
		logging.Int("exports", s.Exports),
		logging.Int("forced", s.Forced),
		logging.Int("recorded", s.Recorded),
		logging.Duration("duration", s.Duration),
	)
	for _, kc := range s.Cooked {
		logger.Info("objects cooked",
			logging.String("kind", kc.Kind.String()),
			logging.Int("count", kc.Count),
		)
	}
	for _, phase := range s.Phases {
		logger.Info("phase timing",
			logging.String("phase", phase.Name),
			logging.Duration("duration", phase.Duration),
		)
	}
}
