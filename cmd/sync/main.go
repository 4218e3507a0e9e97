package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/attendsync/backend/internal/application/reconciliation"
	"github.com/attendsync/backend/internal/bootstrap"
	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/integration"
	"github.com/attendsync/backend/internal/domain/shared"
	"github.com/attendsync/backend/internal/infrastructure/auth"
	"github.com/attendsync/backend/internal/infrastructure/config"
	"github.com/attendsync/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
)

// Exit codes
const (
	exitOK        = 0
	exitFailure   = 1
	exitAuthError = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitFailure
	}
	command, rest := args[0], args[1:]

	cmd, ok := commands[command]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		printUsage(stderr)
		return exitFailure
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	logLevel := fs.String("log-level", "warn", "Log level (debug, info, warn, error)")
	action := cmd(fs)
	if err := fs.Parse(rest); err != nil {
		return exitFailure
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitFailure
	}

	env := &cliEnv{cfg: cfg, stdout: stdout, logLevel: *logLevel}
	defer env.close()

	if err := action(ctx, env); err != nil {
		return report(stderr, err)
	}
	return exitOK
}

// report prints err and picks the exit code. Credential problems get a
// distinct message and exit code so cron wrappers can alert on them.
func report(w io.Writer, err error) int {
	switch {
	case errors.Is(err, integration.ErrERPAuthFailed), errors.Is(err, shared.ErrUpstreamAuth):
		fmt.Fprintln(w, "ERP authentication failed. Fix erp.api_key and erp.api_secret (ATTSYNC_ERP_API_KEY, ATTSYNC_ERP_API_SECRET) and run again.")
		fmt.Fprintf(w, "Cause: %v\n", err)
		return exitAuthError
	case errors.Is(err, integration.ErrSourceAuthFailed):
		fmt.Fprintln(w, "Source authentication failed. Fix source.username and source.password (ATTSYNC_SOURCE_USERNAME, ATTSYNC_SOURCE_PASSWORD) and run again.")
		fmt.Fprintf(w, "Cause: %v\n", err)
		return exitAuthError
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitFailure
	}
}

// cliEnv opens the runtime lazily; token does not need a database
type cliEnv struct {
	cfg      *config.Config
	stdout   io.Writer
	logLevel string
	rt       *bootstrap.Runtime
}

func (e *cliEnv) runtime(ctx context.Context) (*bootstrap.Runtime, error) {
	if e.rt != nil {
		return e.rt, nil
	}
	rt, err := bootstrap.New(ctx, e.cfg, bootstrap.Options{
		LogOverride: &logger.Config{
			Level:      e.logLevel,
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "2006-01-02 15:04:05",
		},
	})
	if err != nil {
		return nil, err
	}
	e.rt = rt
	return rt, nil
}

func (e *cliEnv) service(ctx context.Context) (*reconciliation.Service, error) {
	rt, err := e.runtime(ctx)
	if err != nil {
		return nil, err
	}
	return rt.Service, nil
}

func (e *cliEnv) close() {
	if e.rt == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = e.rt.Close(ctx)
}

func (e *cliEnv) printf(format string, args ...any) {
	fmt.Fprintf(e.stdout, format, args...)
}

type action func(ctx context.Context, env *cliEnv) error

// command registers its flags on fs and returns the action to run
type command func(fs *flag.FlagSet) action

var commands = map[string]command{
	"employees":  employeesCommand,
	"attendance": attendanceCommand,
	"erp":        erpCommand,
	"full":       fullCommand,
	"stats":      statsCommand,
	"reset":      resetCommand,
	"token":      tokenCommand,
}

func employeesCommand(_ *flag.FlagSet) action {
	return func(ctx context.Context, env *cliEnv) error {
		svc, err := env.service(ctx)
		if err != nil {
			return err
		}
		r, err := svc.SyncEmployees(ctx)
		env.printEmployees(r)
		return err
	}
}

func attendanceCommand(fs *flag.FlagSet) action {
	days := fs.Int("days", 0, "Fetch the last N days (default 1)")
	start := fs.String("start", "", "First date, YYYY-MM-DD (requires -end)")
	end := fs.String("end", "", "Last date, YYYY-MM-DD (requires -start)")

	return func(ctx context.Context, env *cliEnv) error {
		window, err := attendanceWindow(*days, *start, *end, time.Now(), env.cfg.App.Location())
		if err != nil {
			return err
		}
		svc, err := env.service(ctx)
		if err != nil {
			return err
		}
		r, err := svc.SyncAttendance(ctx, window)
		env.printIngest(r)
		return err
	}
}

// attendanceWindow resolves -days or -start/-end into a fetch window
func attendanceWindow(days int, start, end string, now time.Time, loc *time.Location) (reconciliation.Window, error) {
	if start == "" && end == "" {
		if days < 0 {
			return reconciliation.Window{}, fmt.Errorf("-days must be positive, got %d", days)
		}
		return reconciliation.LastDays(now.In(loc), days), nil
	}
	if days != 0 {
		return reconciliation.Window{}, errors.New("-days cannot be combined with -start/-end")
	}
	if start == "" || end == "" {
		return reconciliation.Window{}, errors.New("-start and -end must be given together")
	}
	s, err := attendance.ParseDate(start)
	if err != nil {
		return reconciliation.Window{}, fmt.Errorf("-start: %w", err)
	}
	e, err := attendance.ParseDate(end)
	if err != nil {
		return reconciliation.Window{}, fmt.Errorf("-end: %w", err)
	}
	w := reconciliation.DateRange(s, e, loc)
	return w, w.Validate()
}

// statusList collects repeated -status flags
type statusList []attendance.SyncStatus

func (s *statusList) String() string {
	parts := make([]string, len(*s))
	for i, st := range *s {
		parts[i] = string(st)
	}
	return strings.Join(parts, ",")
}

func (s *statusList) Set(v string) error {
	st := attendance.SyncStatus(strings.ToLower(strings.TrimSpace(v)))
	if !st.IsValid() {
		return fmt.Errorf("unknown status %q (pending, synced, failed)", v)
	}
	*s = append(*s, st)
	return nil
}

type erpFlags struct {
	maxRecords  int
	date        string
	employee    string
	retryFailed bool
	statuses    statusList
	verbose     bool
}

func (f *erpFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&f.maxRecords, "max-records", 0, "Maximum records to push (default erp.default_max_records)")
	fs.StringVar(&f.date, "date", "", "Only records of this date, YYYY-MM-DD")
	fs.StringVar(&f.employee, "employee", "", "Only records of this employee code")
	fs.BoolVar(&f.retryFailed, "retry-failed", false, "Only failed records below the retry ceiling")
	fs.Var(&f.statuses, "status", "Status to select; repeatable (default pending)")
	fs.BoolVar(&f.verbose, "verbose", false, "Log every record")
}

func (f *erpFlags) filter() (attendance.SelectionFilter, error) {
	filter := attendance.SelectionFilter{
		Statuses:        f.statuses,
		RetryFailedOnly: f.retryFailed,
		EmployeeCode:    strings.TrimSpace(f.employee),
		MaxRecords:      f.maxRecords,
	}
	if f.maxRecords < 0 {
		return filter, fmt.Errorf("-max-records must be positive, got %d", f.maxRecords)
	}
	if f.date != "" {
		d, err := attendance.ParseDate(f.date)
		if err != nil {
			return filter, fmt.Errorf("-date: %w", err)
		}
		filter.Date = &d
	}
	return filter, nil
}

func erpCommand(fs *flag.FlagSet) action {
	var f erpFlags
	f.register(fs)

	return func(ctx context.Context, env *cliEnv) error {
		filter, err := f.filter()
		if err != nil {
			return err
		}
		if f.verbose {
			env.logLevel = "debug"
		}
		svc, err := env.service(ctx)
		if err != nil {
			return err
		}
		r, err := svc.SyncToERP(ctx, filter)
		env.printRun(r)
		return err
	}
}

func fullCommand(fs *flag.FlagSet) action {
	days := fs.Int("days", 1, "Days of attendance to fetch")
	skipEmployees := fs.Bool("skip-employees", false, "Skip the employee sync")
	skipAttendance := fs.Bool("skip-attendance", false, "Skip the attendance fetch")
	skipERP := fs.Bool("skip-erp", false, "Skip the ERP push")
	maxRecords := fs.Int("max-erp-records", 0, "Maximum records to push (default erp.default_max_records)")

	return func(ctx context.Context, env *cliEnv) error {
		svc, err := env.service(ctx)
		if err != nil {
			return err
		}
		r, err := svc.FullSync(ctx, reconciliation.FullSyncOptions{
			Days:           *days,
			SkipEmployees:  *skipEmployees,
			SkipAttendance: *skipAttendance,
			SkipERP:        *skipERP,
			ERPFilter:      attendance.SelectionFilter{MaxRecords: *maxRecords},
		})
		if r.Employees != nil {
			env.printEmployees(*r.Employees)
		}
		if r.Attendance != nil {
			env.printIngest(*r.Attendance)
		}
		if r.ERP != nil {
			env.printRun(*r.ERP)
		}
		return err
	}
}

func statsCommand(fs *flag.FlagSet) action {
	days := fs.Int("days", 7, "Size of the recent window in days")

	return func(ctx context.Context, env *cliEnv) error {
		svc, err := env.service(ctx)
		if err != nil {
			return err
		}
		report, err := svc.Stats(ctx, *days)
		if err != nil {
			return err
		}
		o := report.Overall
		env.printf("Employees:   %d total, %d active\n", o.TotalEmployees, o.ActiveEmployees)
		env.printf("Records:     %d total, %d pending, %d synced, %d failed\n",
			o.TotalRecords, o.PendingRecords, o.SyncedRecords, o.FailedRecords)
		env.printf("Success:     %s%%\n", o.SuccessRate.StringFixed(2))
		env.printf("Last syncs:  employees %s, attendance %s, erp %s\n",
			formatTime(o.LastEmployeeSync), formatTime(o.LastAttendanceSync), formatTime(o.LastERPSync))
		if r := report.Recent; r != nil {
			env.printf("Last %d days: %d total, %d pending, %d synced, %d failed (%s%%)\n",
				r.Days, r.TotalRecords, r.PendingRecords, r.SyncedRecords, r.FailedRecords, r.SuccessRate.StringFixed(2))
		}
		return nil
	}
}

func resetCommand(fs *flag.FlagSet) action {
	id := fs.String("id", "", "Attendance record ID")
	operator := fs.String("operator", "", "Name recorded in the sync log (default $USER)")

	return func(ctx context.Context, env *cliEnv) error {
		factID, err := uuid.Parse(strings.TrimSpace(*id))
		if err != nil {
			return fmt.Errorf("-id: %w", err)
		}
		who := *operator
		if who == "" {
			who = os.Getenv("USER")
		}
		if who == "" {
			who = "cli"
		}
		svc, err := env.service(ctx)
		if err != nil {
			return err
		}
		fact, err := svc.ResetRecord(ctx, factID, who)
		if err != nil {
			return err
		}
		env.printf("Reset %s (%s on %s) to %s\n",
			fact.ID, fact.EmployeeCode, fact.Date.Format(attendance.DateLayout), fact.Status)
		return nil
	}
}

func tokenCommand(fs *flag.FlagSet) action {
	operator := fs.String("operator", "", "Operator name embedded in the token")
	ttl := fs.Duration("ttl", 0, "Token lifetime (default auth.token_ttl)")

	return func(_ context.Context, env *cliEnv) error {
		tokens, err := auth.NewOperatorTokens(env.cfg.Auth)
		if err != nil {
			return err
		}
		issued, err := tokens.Issue(*operator, *ttl)
		if err != nil {
			return err
		}
		env.printf("%s\n", issued.Token)
		env.printf("# operator %s, expires %s\n", issued.Operator, issued.ExpiresAt.Format(time.RFC3339))
		return nil
	}
}

func (e *cliEnv) printEmployees(r reconciliation.EmployeeSyncResult) {
	e.printf("Employees:  fetched %d, created %d, updated %d, skipped %d\n",
		r.Fetched, r.Created, r.Updated, r.Skipped)
}

func (e *cliEnv) printIngest(r reconciliation.IngestResult) {
	e.printf("Attendance: fetched %d punches, dropped %d, %d groups, saved %d, unknown employee %d, errors %d\n",
		r.Fetched, r.Dropped, r.Groups, r.Saved, r.UnknownEmployee, r.Errors)
	if r.ArchiveKey != "" {
		e.printf("Raw punches archived at %s\n", r.ArchiveKey)
	}
}

func (e *cliEnv) printRun(r reconciliation.RunResult) {
	e.printf("ERP:        selected %d, processed %d, synced %d, duplicates %d, failed %d (%s)\n",
		r.Selected, r.Processed, r.Synced, r.Duplicates, r.Failed, r.Duration.Round(time.Millisecond))
	if r.Aborted {
		e.printf("Run aborted; remaining records were left untouched\n")
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Attendance sync operator tool

Usage:
  sync <command> [flags]

Commands:
  employees                             Sync employees from the source system
  attendance [-days N | -start D -end D] Fetch punches and build attendance records
  erp [-max-records N] [-date D] [-employee CODE] [-retry-failed] [-status S]... [-verbose]
                                        Push attendance records to the ERP
  full [-days N] [-skip-employees] [-skip-attendance] [-skip-erp] [-max-erp-records N]
                                        Run all three stages in order
  stats [-days N]                       Print sync statistics
  reset -id ID [-operator NAME]         Put a record back to pending
  token -operator NAME [-ttl 12h]       Issue an operator API token

Every command accepts -log-level (default warn).

Exit codes:
  0  success
  1  failure
  2  source or ERP rejected the configured credentials`)
}
