package health

import (
	"context"
	"sync"
)

// Check reports whether a single dependency is reachable.
type Check func(ctx context.Context) error

// Service encapsulates health-related checks.
type Service struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{checks: make(map[string]Check)}
}

// Register adds a named dependency check.
func (s *Service) Register(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Status runs all checks. The "ok" key is true only when every check passes.
func (s *Service) Status(ctx context.Context) map[string]bool {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	checks := make([]Check, 0, len(s.checks))
	for name, check := range s.checks {
		names = append(names, name)
		checks = append(checks, check)
	}
	s.mu.RUnlock()

	out := make(map[string]bool, len(checks)+1)
	ok := true
	for i, check := range checks {
		err := check(ctx)
		out[names[i]] = err == nil
		if err != nil {
			ok = false
		}
	}
	out["ok"] = ok
	return out
}
