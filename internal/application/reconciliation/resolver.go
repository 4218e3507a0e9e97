package reconciliation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/attendsync/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// IdentifierResolver maps local employee codes to ERP employee names.
// A resolver lives for a single reconciliation run; nothing it learns is
// persisted, so a code the ERP did not know yet is looked up again next run.
type IdentifierResolver struct {
	ledger integration.AttendanceLedger
	logger *zap.Logger

	mu    sync.Mutex
	known map[string]string
	// codes the ERP answered "no such employee" for during this run
	missing map[string]bool
	lookups int
}

// NewIdentifierResolver creates an empty per-run resolver
func NewIdentifierResolver(ledger integration.AttendanceLedger, logger *zap.Logger) *IdentifierResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentifierResolver{
		ledger:  ledger,
		logger:  logger,
		known:   make(map[string]string),
		missing: make(map[string]bool),
	}
}

// Resolve returns the ERP employee name for code, or code itself when the
// ERP has no mapping or cannot be reached.
func (r *IdentifierResolver) Resolve(ctx context.Context, code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return code
	}

	r.mu.Lock()
	if id, ok := r.known[code]; ok {
		r.mu.Unlock()
		return id
	}
	if r.missing[code] {
		r.mu.Unlock()
		return code
	}
	r.lookups++
	r.mu.Unlock()

	id, err := r.ledger.FindEmployee(ctx, code)
	switch {
	case err == nil && id != "":
		r.mu.Lock()
		r.known[code] = id
		r.mu.Unlock()
		return id
	case err == nil, errors.Is(err, integration.ErrEmployeeNotMapped):
		r.mu.Lock()
		r.missing[code] = true
		r.mu.Unlock()
		r.logger.Debug("No ERP employee for code, using local code",
			zap.String("employee_code", code))
		return code
	default:
		// transport errors are not remembered so the next record retries the lookup
		r.logger.Warn("ERP employee lookup failed, using local code",
			zap.String("employee_code", code),
			zap.Error(err))
		return code
	}
}

// Remember records an ERP employee name learned from a response body.
// No lookup is issued.
func (r *IdentifierResolver) Remember(code, remoteID string) {
	code = strings.TrimSpace(code)
	remoteID = strings.TrimSpace(remoteID)
	if code == "" || remoteID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[code] = remoteID
	delete(r.missing, code)
}

// Lookups returns how many ERP lookups the resolver issued
func (r *IdentifierResolver) Lookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}
