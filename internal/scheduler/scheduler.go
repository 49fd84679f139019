package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"FxSentinel/internal/analysis"
	"FxSentinel/internal/clock"
	"FxSentinel/internal/collector"
	"FxSentinel/internal/metrics"
	"FxSentinel/internal/model"
	"FxSentinel/internal/notifier"
	"FxSentinel/internal/quota"
	"FxSentinel/internal/recorder"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("run already in progress")

// ReportSink receives every completed report.
type ReportSink interface {
	Name() string
	Consume(ctx context.Context, report *model.AnalysisReport) error
}

// HistorySource serves persisted trend rows for the /history command.
type HistorySource interface {
	TrendHistory(ctx context.Context, inst model.Instrument, limit int) ([]recorder.TrendPoint, error)
}

// historyLimit is the number of runs /history shows.
const historyLimit = 10

// Options wires a Scheduler.
type Options struct {
	Collector   *collector.Collector
	Engine      *analysis.Engine
	Gate        *quota.Gate
	Clock       clock.Clock
	Instruments []model.Instrument
	Reference   model.Instrument
	LedgerFile  string
	Sinks       []ReportSink
	History     HistorySource // nil disables /history
	Metrics     *metrics.Recorder
	Logger      zerolog.Logger
}

// Scheduler runs acquisition and analysis on a cron schedule or on demand.
// Runs never overlap.
type Scheduler struct {
	Cron *cron.Cron
	Ctx  context.Context

	opts  Options
	order []model.Instrument
	log   zerolog.Logger

	runMu  sync.Mutex
	lastMu sync.RWMutex
	last   *model.AnalysisReport
}

// NewScheduler creates a new Scheduler. The reference asset is fetched first
// since every correlation depends on it.
func NewScheduler(ctx context.Context, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	order := make([]model.Instrument, 0, len(opts.Instruments)+1)
	seen := make(map[model.Instrument]bool)
	for _, inst := range append([]model.Instrument{opts.Reference}, opts.Instruments...) {
		if inst == "" || seen[inst] {
			continue
		}
		seen[inst] = true
		order = append(order, inst)
	}
	return &Scheduler{
		Cron:  cron.New(cron.WithSeconds()),
		Ctx:   ctx,
		opts:  opts,
		order: order,
		log:   opts.Logger.With().Str("component", "scheduler").Logger(),
	}
}

// Register schedules periodic runs.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.scheduledRun); err != nil {
		return fmt.Errorf("register run task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) scheduledRun() {
	if _, err := s.RunOnce(s.Ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			return
		}
		s.log.Error().Err(err).Msg("scheduled run failed")
	}
}

// RunOnce fetches every instrument, analyzes the store and hands the report
// to every sink. Sink failures are logged and never fail the run.
func (s *Scheduler) RunOnce(ctx context.Context) (*model.AnalysisReport, error) {
	if !s.runMu.TryLock() {
		s.opts.Metrics.RecordRunSkipped()
		s.log.Warn().Msg("previous run still in progress, skipping")
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	start := s.opts.Clock.Now()
	s.log.Info().Int("instruments", len(s.order)).Msg("run started")

	res, err := s.opts.Collector.RunCycle(ctx, s.order)
	s.saveLedger()
	if err != nil {
		return nil, fmt.Errorf("fetch cycle: %w", err)
	}

	rep := s.opts.Engine.Analyze(s.opts.Clock.Now(), s.order, s.opts.Reference, res.Outcomes)
	s.lastMu.Lock()
	s.last = rep
	s.lastMu.Unlock()

	maxDev := 0.0
	if len(rep.Opportunities) > 0 {
		maxDev = rep.Opportunities[0].Deviation
	}
	s.opts.Metrics.RecordOpportunities(len(rep.Opportunities), maxDev)

	for _, sink := range s.opts.Sinks {
		if err := sink.Consume(ctx, rep); err != nil {
			s.opts.Metrics.RecordSinkError(sink.Name())
			s.log.Error().Err(err).Str("sink", sink.Name()).Msg("report sink failed")
		}
	}

	elapsed := s.opts.Clock.Now().Sub(start)
	s.opts.Metrics.RecordRunDuration(elapsed.Seconds())
	s.log.Info().Str("run_id", rep.RunID).Dur("elapsed", elapsed).Msg("run finished")
	return rep, nil
}

// LastReport returns the most recent report, or nil before the first run.
func (s *Scheduler) LastReport() *model.AnalysisReport {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

// HandleCommand processes a bot command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	switch strings.ToLower(fields[0]) {
	case "/report":
		rep := s.LastReport()
		if rep == nil {
			return "No report yet."
		}
		return notifier.FormatReport(rep)
	case "/run":
		if _, err := s.RunOnce(ctx); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				return "A run is already in progress."
			}
			return fmt.Sprintf("Run failed: %v", err)
		}
		// the telegram sink delivers the report itself
		return ""
	case "/status":
		minute, day := s.opts.Gate.Usage()
		var b strings.Builder
		b.WriteString(fmt.Sprintf("Quota: %d calls this minute, %d in the last 24h\n", minute, day))
		b.WriteString(fmt.Sprintf("Instruments: %s\n", joinInstruments(s.order)))
		if rep := s.LastReport(); rep != nil {
			b.WriteString(fmt.Sprintf("Last run: %s UTC (%s)\n", rep.GeneratedAt.UTC().Format("2006-01-02 15:04"), rep.RunID))
		}
		return b.String()
	case "/history":
		return s.history(ctx, fields[1:])
	default:
		return helpText
	}
}

const helpText = "Commands:\n• /report last report\n• /run run now\n• /status quota and schedule\n• /history EUR/USD recent runs of one instrument"

func (s *Scheduler) history(ctx context.Context, args []string) string {
	if s.opts.History == nil {
		return "History is not recorded."
	}
	if len(args) != 1 {
		return "Usage: /history EUR/USD"
	}
	inst, err := model.ParseInstrument(args[0])
	if err != nil {
		return fmt.Sprintf("Unknown instrument: %v", err)
	}
	points, err := s.opts.History.TrendHistory(ctx, inst, historyLimit)
	if err != nil {
		s.log.Error().Err(err).Str("instrument", string(inst)).Msg("load trend history")
		return "Could not load history."
	}
	return notifier.FormatHistory(inst, points)
}

func (s *Scheduler) saveLedger() {
	if s.opts.LedgerFile == "" {
		return
	}
	if err := quota.SaveLedger(s.opts.LedgerFile, s.opts.Gate); err != nil {
		s.log.Error().Err(err).Msg("save quota ledger")
	}
}

func joinInstruments(insts []model.Instrument) string {
	parts := make([]string, len(insts))
	for i, inst := range insts {
		parts[i] = string(inst)
	}
	return strings.Join(parts, ", ")
}
