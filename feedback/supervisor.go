package feedback

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ImprovementRecord captures one successful adaptation for reporting.
type ImprovementRecord struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Loop           string    `json:"loop"`
	BeforeScore    float64   `json:"before_score"`
	ActionsApplied []string  `json:"actions_applied"`
	ExpectedImpact float64   `json:"expected_impact"`
}

func newImprovementRecord(loop string, beforeScore float64, applied []string, expectedImpact float64) ImprovementRecord {
	return ImprovementRecord{
		ID:             uuid.NewString(),
		Timestamp:      time.Now(),
		Loop:           loop,
		BeforeScore:    beforeScore,
		ActionsApplied: applied,
		ExpectedImpact: expectedImpact,
	}
}

// SupervisorStatus is an aggregate snapshot across all registered loops.
type SupervisorStatus struct {
	Running            bool                `json:"running"`
	Loops              []LoopStatus        `json:"loops"`
	TotalExecutions    uint64              `json:"total_executions"`
	TotalImprovements  uint64              `json:"total_improvements"`
	RecentImprovements []ImprovementRecord `json:"recent_improvements"`
}

// DefaultLedgerSize bounds the supervisor's improvement ledger.
const DefaultLedgerSize = 100

// Supervisor owns a set of named loops, starts and stops them together
// and aggregates their status. Loops of one supervisor share nothing but
// the supervisor's improvement ledger, which serializes appends.
type Supervisor struct {
	logger *slog.Logger

	mu       sync.RWMutex
	loops    map[string]*Loop
	running  bool
	startCtx context.Context

	ledgerMu   sync.Mutex
	ledger     []ImprovementRecord
	ledgerSize int
}

// NewSupervisor creates an empty supervisor. A nil logger falls back to
// slog.Default().
func NewSupervisor(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		logger:     logger,
		loops:      make(map[string]*Loop),
		ledgerSize: DefaultLedgerSize,
	}
}

// Register creates a loop under the given name. An existing loop is
// replaced only while Inactive; replacing resets all its counters.
// Registering over an Active loop fails with *LoopAlreadyActiveError.
// When the supervisor is already running, the new loop starts at once.
func (s *Supervisor) Register(name string, cfg LoopConfig) (*Loop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.loops[name]; ok && existing.State() == LoopActive {
		return nil, &LoopAlreadyActiveError{Name: name}
	}

	loop, err := newLoop(name, cfg, s.logger, s)
	if err != nil {
		return nil, err
	}
	s.loops[name] = loop

	s.logger.Info("Loop registered",
		slog.String("loop", name),
		slog.String("domain", cfg.Domain),
		slog.Duration("interval", cfg.Interval),
	)

	if s.running {
		// Late registrations share the context Start was given, so
		// caller-side cancellation reaches every loop equally.
		loop.Start(s.startCtx)
	}
	return loop, nil
}

// Loop returns the registered loop for name, or nil.
func (s *Supervisor) Loop(name string) *Loop {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loops[name]
}

// Remove stops and deletes one loop. Removing an unknown name is a no-op.
func (s *Supervisor) Remove(name string) {
	s.mu.Lock()
	loop, ok := s.loops[name]
	if ok {
		delete(s.loops, name)
	}
	s.mu.Unlock()

	if ok {
		loop.Stop()
		s.logger.Info("Loop removed", slog.String("loop", name))
	}
}

// Start launches every registered loop. Idempotent.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Supervisor already running, start ignored")
		return
	}
	s.running = true
	s.startCtx = ctx
	loops := s.snapshotLoops()
	s.mu.Unlock()

	for _, loop := range loops {
		loop.Start(ctx)
	}

	s.logger.Info("Supervisor started", slog.Int("loops", len(loops)))
}

// Stop halts every loop. It returns only after all loop goroutines have
// exited: no cycle fires for any loop after Stop returns.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.startCtx = nil
	loops := s.snapshotLoops()
	s.mu.Unlock()

	for _, loop := range loops {
		loop.Stop()
	}

	s.logger.Info("Supervisor stopped", slog.Int("loops", len(loops)))
}

func (s *Supervisor) snapshotLoops() []*Loop {
	loops := make([]*Loop, 0, len(s.loops))
	for _, loop := range s.loops {
		loops = append(loops, loop)
	}
	return loops
}

// Status returns a consistent aggregate snapshot. Every registered loop
// appears exactly once; a failing loop is visible through its counters,
// never through a missing entry.
func (s *Supervisor) Status() SupervisorStatus {
	s.mu.RLock()
	loops := s.snapshotLoops()
	running := s.running
	s.mu.RUnlock()

	status := SupervisorStatus{Running: running}
	for _, loop := range loops {
		ls := loop.Status()
		status.Loops = append(status.Loops, ls)
		status.TotalExecutions += ls.ExecutionCount
		status.TotalImprovements += ls.ImprovementCount
	}
	sort.Slice(status.Loops, func(i, j int) bool {
		return status.Loops[i].Name < status.Loops[j].Name
	})

	status.RecentImprovements = s.RecentImprovements(10)
	return status
}

// RecentImprovements returns up to n most recent ledger records, newest
// last.
func (s *Supervisor) RecentImprovements(n int) []ImprovementRecord {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	if n > len(s.ledger) {
		n = len(s.ledger)
	}
	if n == 0 {
		return nil
	}
	recent := make([]ImprovementRecord, n)
	copy(recent, s.ledger[len(s.ledger)-n:])
	return recent
}

// appendImprovement implements improvementLedger. Appends are serialized
// so concurrently finishing loops never interleave records.
func (s *Supervisor) appendImprovement(rec ImprovementRecord) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	s.ledger = append(s.ledger, rec)
	if len(s.ledger) > s.ledgerSize {
		s.ledger = s.ledger[len(s.ledger)-s.ledgerSize:]
	}
}
