// Package api is the daemon's control plane: job orchestration and the
// HTTP surface exposed on the session's Unix socket.
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BENZOOgataga/DeepSearch/internal/bus"
	"github.com/BENZOOgataga/DeepSearch/internal/cache"
	"github.com/BENZOOgataga/DeepSearch/internal/config"
	"github.com/BENZOOgataga/DeepSearch/internal/export"
	"github.com/BENZOOgataga/DeepSearch/internal/match"
	"github.com/BENZOOgataga/DeepSearch/internal/platform"
	"github.com/BENZOOgataga/DeepSearch/internal/search"
	"github.com/BENZOOgataga/DeepSearch/internal/stats"
	"github.com/BENZOOgataga/DeepSearch/internal/status"
	"github.com/BENZOOgataga/DeepSearch/internal/store"
)

// InputError marks a user input problem: the job never starts and no slot
// is acquired.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func inputErrf(format string, a ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, a...)}
}

// plainLimit is the per-channel page budget of a non-deep search.
const plainLimit = 100

// Service wires every collaborator a job needs and owns the running-job
// table. One Service instance serves one session.
type Service struct {
	client   platform.Client
	history  *search.HistoryCache
	registry *search.Registry
	cooldown *search.CooldownGate
	stats    *stats.Store
	exporter *export.Exporter
	matcher  *match.KeywordMatcher
	machine  *status.Machine
	db       *store.DB
	bus      *bus.Bus
	logger   *zap.Logger

	cfgMu   sync.Mutex
	cfg     *config.Config
	cfgPath string

	jobsMu  sync.Mutex
	jobs    map[search.Kind]*search.Job
	started time.Time
}

// Deps collects the service's collaborators.
type Deps struct {
	Client     platform.Client
	History    *search.HistoryCache
	Registry   *search.Registry
	Cooldown   *search.CooldownGate
	Stats      *stats.Store
	Exporter   *export.Exporter
	Matcher    *match.KeywordMatcher
	Machine    *status.Machine
	DB         *store.DB
	Bus        *bus.Bus
	Logger     *zap.Logger
	Config     *config.Config
	ConfigPath string
}

// NewService creates the control-plane service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return &Service{
		client:   d.Client,
		history:  d.History,
		registry: d.Registry,
		cooldown: d.Cooldown,
		stats:    d.Stats,
		exporter: d.Exporter,
		matcher:  d.Matcher,
		machine:  d.Machine,
		db:       d.DB,
		bus:      d.Bus,
		logger:   logger,
		cfg:      cfg,
		cfgPath:  d.ConfigPath,
		jobs:     make(map[search.Kind]*search.Job),
		started:  time.Now(),
	}
}

// JobRequest is the wire form of a job start request.
type JobRequest struct {
	Kind       string   `json:"kind"`
	Requester  string   `json:"requester,omitempty"`
	TargetUser string   `json:"target_user,omitempty"`
	Query      string   `json:"query,omitempty"`
	Strictness string   `json:"strictness,omitempty"`
	Lang       string   `json:"lang,omitempty"`
	Limit      string   `json:"limit,omitempty"`
	All        bool     `json:"all,omitempty"`
	Include    []string `json:"include,omitempty"`
	Exclude    []string `json:"exclude,omitempty"`
	// Export selects an artifact format (txt/csv/json); implied txt for
	// the export kind.
	Export       string `json:"export,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

// JobAccepted is returned when a job has been admitted and started.
type JobAccepted struct {
	Kind  string `json:"kind"`
	Query string `json:"query"`
}

// StartJob validates the request, claims the per-kind slot, applies the
// cooldown gate and launches the scan in the background. Validation
// failures surface before any slot or cooldown state is touched.
func (s *Service) StartJob(ctx context.Context, jr JobRequest) (*JobAccepted, error) {
	kind, err := search.ParseKind(jr.Kind)
	if err != nil {
		return nil, inputErrf("%v", err)
	}

	req := search.Request{
		Kind:         kind,
		Requester:    jr.Requester,
		Include:      jr.Include,
		Exclude:      jr.Exclude,
		Deep:         jr.All,
		ForceRefresh: jr.ForceRefresh || jr.All,
	}

	if err := s.bindPredicate(&req, jr); err != nil {
		return nil, err
	}
	if err := s.bindTargetUser(ctx, &req, jr); err != nil {
		return nil, err
	}
	if err := s.bindLimit(&req, jr); err != nil {
		return nil, err
	}

	exportFmt, err := s.bindExport(&req, jr)
	if err != nil {
		return nil, err
	}

	ws, err := s.client.Workspace(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	req.Workspace = ws.Name

	// The slot is claimed before the cooldown gate: a busy rejection must
	// not burn the workspace's cooldown credit.
	if err := s.registry.Acquire(kind); err != nil {
		return nil, err
	}
	if err := s.cooldown.Check(req.Workspace, req.Expensive()); err != nil {
		s.registry.Release(kind)
		return nil, err
	}

	job := search.NewJob(req, s.client, s.history, s.registry, s.reporter(), s.stats, s.logger)
	s.jobsMu.Lock()
	s.jobs[kind] = job
	s.jobsMu.Unlock()

	s.bus.Publish(bus.Event{
		Kind:      bus.KindSearchStarted,
		Timestamp: time.Now(),
		Payload:   search.Update{Kind: kind, Query: req.Query()},
	})
	s.logger.Info("job started",
		zap.String("kind", string(kind)),
		zap.String("query", req.Query()),
		zap.String("requester", req.Requester))

	go s.run(job, kind, exportFmt)

	return &JobAccepted{Kind: string(kind), Query: req.Query()}, nil
}

// bindPredicate attaches the match strategy the kind calls for.
func (s *Service) bindPredicate(req *search.Request, jr JobRequest) error {
	switch req.Kind {
	case search.KindSearch, search.KindExport:
		if jr.Query == "" {
			return inputErrf("a keyword is required for %s jobs", req.Kind)
		}
		req.Keyword = jr.Query
	case search.KindRegex:
		if jr.Query == "" {
			return inputErrf("a pattern is required for regex jobs")
		}
		re, err := match.CompilePattern(jr.Query)
		if err != nil {
			return inputErrf("invalid pattern: %v", err)
		}
		req.Pattern = re
	case search.KindBadscan:
		strictness, err := match.ParseStrictness(jr.Strictness)
		if err != nil {
			return inputErrf("%v", err)
		}
		lang := jr.Lang
		if lang == "" {
			lang = s.snapshotConfig().LexiconLang
		}
		lex, err := match.LoadLexicon(lang)
		if err != nil {
			return inputErrf("%v", err)
		}
		req.Lexicon = lex
		req.Strictness = strictness
	case search.KindScan:
		// Count-only unless the watch list should drive it.
		if jr.Query == "keywords" {
			if len(s.matcher.Keywords()) == 0 {
				return inputErrf("no keywords configured")
			}
			req.Matcher = s.matcher
		}
	}
	return nil
}

func (s *Service) bindTargetUser(ctx context.Context, req *search.Request, jr JobRequest) error {
	if jr.TargetUser == "" {
		return nil
	}
	user, err := s.client.FetchUser(ctx, jr.TargetUser)
	if err != nil {
		return inputErrf("user %q not found", jr.TargetUser)
	}
	req.TargetUserID = user.ID
	req.TargetUserName = user.Name
	return nil
}

// bindLimit resolves the per-channel budget: explicit value (with k/m
// suffix, or "all") wins, a bare deep flag falls back to the configured
// default, a plain search scans one page.
func (s *Service) bindLimit(req *search.Request, jr JobRequest) error {
	cfg := s.snapshotConfig()
	switch {
	case jr.Limit == "all" || jr.Limit == "none":
		req.Limit = search.NoLimit
		req.CustomLimit = true
	case jr.Limit != "":
		n, err := search.ParseLimit(jr.Limit)
		if err != nil {
			return inputErrf("%v", err)
		}
		req.Limit = n
		req.CustomLimit = true
	case req.Deep:
		req.Limit = cfg.DefaultLimit
	default:
		req.Limit = plainLimit
	}
	// Oversized custom limits count as deep scans in the statistics.
	if req.Limit == search.NoLimit || (cfg.DeepThreshold > 0 && req.Limit > cfg.DeepThreshold) {
		req.Deep = true
	}
	return nil
}

func (s *Service) bindExport(req *search.Request, jr JobRequest) (export.Format, error) {
	raw := jr.Export
	if raw == "" && req.Kind != search.KindExport {
		return "", nil
	}
	format, err := export.ParseFormat(raw)
	if err != nil {
		return "", inputErrf("%v", err)
	}
	req.ResultCap = search.ExportResultCap
	return format, nil
}

// reporter builds the progress fan-out: always the bus, plus a throttled
// status message when a notify channel is configured.
func (s *Service) reporter() search.Reporter {
	reporters := search.MultiReporter{&search.BusReporter{Bus: s.bus}}
	if ch := s.snapshotConfig().NotifyChannel; ch != "" {
		reporters = append(reporters, search.NewMessageReporter(s.client, ch, 5*time.Second))
	}
	return reporters
}

// run drives the job to completion and handles the post-run export.
func (s *Service) run(job *search.Job, kind search.Kind, exportFmt export.Format) {
	ctx := context.Background()
	sum, err := job.Run(ctx)
	if err != nil {
		s.logger.Error("job failed", zap.String("kind", string(kind)), zap.Error(err))
		s.bus.Publish(bus.Event{Kind: bus.KindSearchFailed, Timestamp: time.Now(), Payload: err.Error()})
		return
	}
	if sum.Cancelled {
		s.bus.Publish(bus.Event{Kind: bus.KindSearchCancelled, Timestamp: time.Now(), Payload: sum})
	}
	s.logger.Info("job finished",
		zap.String("kind", string(kind)),
		zap.Int("scanned", sum.MessagesScanned),
		zap.Int("matches", sum.MatchesFound),
		zap.Bool("cancelled", sum.Cancelled))

	if exportFmt == "" || s.exporter == nil {
		return
	}
	path, err := s.exporter.Write(sum, exportFmt)
	if err != nil {
		s.logger.Error("export failed", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	s.logger.Info("results exported", zap.String("path", path))
	if ch := s.snapshotConfig().NotifyChannel; ch != "" {
		if err := s.client.SendFile(ctx, ch, path); err != nil {
			s.logger.Warn("failed to deliver export artifact", zap.Error(err))
		}
	}
}

// Cancel requests cooperative cancellation of the running job of kind.
func (s *Service) Cancel(kindRaw string) error {
	kind, err := search.ParseKind(kindRaw)
	if err != nil {
		return inputErrf("%v", err)
	}
	return s.registry.RequestCancel(kind)
}

// JobSnapshot is the wire form of one job slot's state.
type JobSnapshot struct {
	Kind    string          `json:"kind"`
	Running bool            `json:"running"`
	Status  string          `json:"status,omitempty"`
	Update  *search.Update  `json:"progress,omitempty"`
	Summary *search.Summary `json:"summary,omitempty"`
	// Error carries the failure text when the last run ended in an error.
	Error string `json:"error,omitempty"`
}

// Snapshot reports the state of one kind's slot and its latest job.
func (s *Service) Snapshot(kindRaw string) (*JobSnapshot, error) {
	kind, err := search.ParseKind(kindRaw)
	if err != nil {
		return nil, inputErrf("%v", err)
	}
	snap := &JobSnapshot{Kind: string(kind), Running: s.registry.Running(kind)}

	s.jobsMu.Lock()
	job := s.jobs[kind]
	s.jobsMu.Unlock()
	if job != nil {
		st, u, sum := job.Snapshot()
		snap.Status = string(st)
		snap.Update = &u
		snap.Summary = sum
		snap.Error = job.Failure()
	}
	return snap, nil
}

// Snapshots reports every kind's slot.
func (s *Service) Snapshots() []*JobSnapshot {
	out := make([]*JobSnapshot, 0, len(search.Kinds))
	for _, k := range search.Kinds {
		snap, _ := s.Snapshot(string(k))
		out = append(out, snap)
	}
	return out
}

// StartKeywordScan launches the scheduled watch-list scan: force-refreshed
// keyword matching across every readable channel. Used by the auto-scan
// scheduler; failures to acquire the slot are reported, not fatal.
func (s *Service) StartKeywordScan(requester string) error {
	if len(s.matcher.Keywords()) == 0 {
		return inputErrf("no keywords configured")
	}
	_, err := s.StartJob(context.Background(), JobRequest{
		Kind:         string(search.KindScan),
		Requester:    requester,
		Query:        "keywords",
		ForceRefresh: true,
	})
	return err
}

// Keywords returns the current watch list.
func (s *Service) Keywords() []string {
	return s.matcher.Keywords()
}

// SetKeywords replaces the watch list: live matcher swap plus config
// persistence so the list survives restarts.
func (s *Service) SetKeywords(keywords []string) error {
	s.matcher.SetKeywords(keywords)

	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg.Keywords = keywords
	if s.cfgPath == "" {
		return nil
	}
	if err := config.Save(s.cfgPath, s.cfg); err != nil {
		return fmt.Errorf("persist keywords: %w", err)
	}
	return nil
}

// ReloadConfig swaps the active config (fsnotify reload path) and applies
// the new keyword list to the live matcher.
func (s *Service) ReloadConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
	s.matcher.SetKeywords(cfg.Keywords)
	s.logger.Info("config reloaded", zap.Int("keywords", len(cfg.Keywords)))
}

// AutoScan reports whether the periodic keyword scan is enabled and at
// which interval. Read fresh on every tick so a config reload takes
// effect without restarting the daemon.
func (s *Service) AutoScan() (bool, time.Duration) {
	cfg := s.snapshotConfig()
	interval := time.Duration(cfg.AutoScanIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	return cfg.AutoScanEnabled, interval
}

func (s *Service) snapshotConfig() *config.Config {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	c := *s.cfg
	return &c
}

// StatusInfo is the wire form of the daemon status report.
type StatusInfo struct {
	State            string `json:"state"`
	StateSince       string `json:"state_since"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	ArchivedMessages int64  `json:"archived_messages"`
	WatchHits        int64  `json:"watch_hits"`
	Keywords         int    `json:"keywords"`
}

// Status assembles the daemon status report.
func (s *Service) Status() (*StatusInfo, error) {
	info := &StatusInfo{
		State:         string(s.machine.Current()),
		StateSince:    s.machine.Since().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Keywords:      len(s.matcher.Keywords()),
	}
	if s.db != nil {
		n, err := s.db.CountMessages("")
		if err != nil {
			return nil, fmt.Errorf("count messages: %w", err)
		}
		info.ArchivedMessages = n
		h, err := s.db.CountHits()
		if err != nil {
			return nil, fmt.Errorf("count hits: %w", err)
		}
		info.WatchHits = h
	}
	return info, nil
}

// CacheInfo reports one cache's statistics.
type CacheInfo struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
	Cap     int    `json:"capacity"`
	TTL     string `json:"ttl"`
}

// Caches reports entry and size statistics for every in-memory cache.
func (s *Service) Caches() []CacheInfo {
	describe := func(name string, st cache.Stats) CacheInfo {
		return CacheInfo{Name: name, Entries: st.Entries, Cap: st.Capacity, TTL: st.TTL.String()}
	}
	out := []CacheInfo{describe("keyword_memo", s.matcher.MemoStats())}
	if s.history != nil {
		out = append(out, describe("history_pages", s.history.Stats()))
	}
	return out
}

// ClearCaches drops the history page cache.
func (s *Service) ClearCaches() {
	if s.history != nil {
		s.history.Clear()
	}
}

// ChannelInfo is the wire form of one channel listing entry.
type ChannelInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	CanRead bool   `json:"can_read"`
	// Members is -1 when member enumeration was not requested or failed
	// for this channel.
	Members int `json:"members"`
}

// ListChannels enumerates the workspace's channels, optionally counting
// members per channel the way the bulk user scan does.
func (s *Service) ListChannels(ctx context.Context, withMembers bool) ([]ChannelInfo, error) {
	channels, err := s.client.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	out := make([]ChannelInfo, 0, len(channels))
	for _, ch := range channels {
		info := ChannelInfo{ID: ch.ID, Name: ch.Name, CanRead: ch.CanRead, Members: -1}
		if withMembers && ch.CanRead {
			members, err := s.client.Members(ctx, ch.ID)
			if err == nil {
				info.Members = len(members)
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// ArchiveSearch runs a full-text query over the locally archived
// messages. Unlike a job this is synchronous; FTS answers in one round
// trip instead of walking channel history.
func (s *Service) ArchiveSearch(query, channel string, limit int) ([]store.SearchResult, error) {
	if query == "" {
		return nil, inputErrf("query must not be empty")
	}
	if s.db == nil {
		return nil, nil
	}
	return s.db.SearchMessages(query, channel, limit)
}

// Hits returns the most recent live-watch hits.
func (s *Service) Hits(limit int) ([]store.Hit, error) {
	if s.db == nil {
		return nil, nil
	}
	return s.db.ListHits(limit)
}

// StatsSnapshot returns the aggregate counters, persisting first so the
// on-disk file is guaranteed fresh.
func (s *Service) StatsSnapshot() (stats.Aggregate, error) {
	if err := s.stats.Persist(); err != nil {
		return stats.Aggregate{}, fmt.Errorf("persist stats: %w", err)
	}
	return s.stats.Snapshot(), nil
}
