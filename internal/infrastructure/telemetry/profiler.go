package telemetry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// Profile label keys
const (
	ProfilingLabelJob    = "job"
	ProfilingLabelRoute  = "route"
	ProfilingLabelMethod = "method"
)

// MaxLabelValueLength truncates label values
const MaxLabelValueLength = 128

// labels that would explode the number of profile series
var unboundedLabels = []string{"run_id", "request_id", "trace_id", "span_id", "employee_code"}

var profileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
}

// ProfilerConfig points the profiler at a Pyroscope server
type ProfilerConfig struct {
	Enabled         bool
	ServerAddress   string // e.g. http://pyroscope:4040
	ApplicationName string
}

// Profiler pushes continuous profiles to Pyroscope. A disabled Profiler
// does nothing.
type Profiler struct {
	session  *pyroscope.Profiler
	log      *zap.Logger
	stopOnce sync.Once
	stopErr  error
}

// NewProfiler starts profiling when cfg.Enabled
func NewProfiler(cfg ProfilerConfig, log *zap.Logger) (*Profiler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Profiler{log: log}
	if !cfg.Enabled {
		return p, nil
	}
	if cfg.ServerAddress == "" {
		return nil, errors.New("profiling enabled without a server address")
	}
	app := cmp.Or(cfg.ApplicationName, DefaultServiceName)

	tags := make(map[string]string, 1)
	if host, _ := os.Hostname(); host != "" {
		tags["hostname"] = host
	}

	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: app,
		ServerAddress:   cfg.ServerAddress,
		Logger:          log.Named("pyroscope").Sugar(),
		Tags:            tags,
		ProfileTypes:    profileTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}
	p.session = session
	log.Info("Profiling started", zap.String("server_address", cfg.ServerAddress), zap.String("application", app))
	return p, nil
}

// Stop flushes and stops the session; later calls return the first result
func (p *Profiler) Stop() error {
	p.stopOnce.Do(func() {
		if p.session == nil {
			return
		}
		if err := p.session.Stop(); err != nil {
			p.stopErr = fmt.Errorf("stop pyroscope: %w", err)
			return
		}
		p.log.Info("Profiling stopped")
	})
	return p.stopErr
}

func (p *Profiler) IsEnabled() bool {
	return p.session != nil
}

// WithProfilingLabels runs fn with labels attached to the samples it
// produces. Empty and unbounded labels are dropped.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels returns key/value pairs ordered by normalized key
func sanitizeLabels(labels map[string]string) []string {
	type label struct{ key, value string }
	kept := make([]label, 0, len(labels))
	for k, v := range labels {
		k = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), "-", "_")
		if k == "" || v == "" || slices.Contains(unboundedLabels, k) {
			continue
		}
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		kept = append(kept, label{k, v})
	}
	slices.SortFunc(kept, func(a, b label) int { return strings.Compare(a.key, b.key) })

	pairs := make([]string, 0, 2*len(kept))
	for _, l := range kept {
		pairs = append(pairs, l.key, l.value)
	}
	return pairs
}
