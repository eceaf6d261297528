package daemon

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BENZOOgataga/DeepSearch/internal/api"
	"github.com/BENZOOgataga/DeepSearch/internal/bus"
	"github.com/BENZOOgataga/DeepSearch/internal/config"
	"github.com/BENZOOgataga/DeepSearch/internal/export"
	"github.com/BENZOOgataga/DeepSearch/internal/lock"
	"github.com/BENZOOgataga/DeepSearch/internal/match"
	"github.com/BENZOOgataga/DeepSearch/internal/platform"
	"github.com/BENZOOgataga/DeepSearch/internal/search"
	"github.com/BENZOOgataga/DeepSearch/internal/stats"
	"github.com/BENZOOgataga/DeepSearch/internal/status"
	"github.com/BENZOOgataga/DeepSearch/internal/store"
	"go.uber.org/zap"
)

type stubClient struct{}

func (stubClient) Self() platform.User { return platform.User{ID: "self@s.whatsapp.net"} }
func (stubClient) Workspace(context.Context) (*platform.Workspace, error) {
	return &platform.Workspace{ID: "self@s.whatsapp.net", Name: "test"}, nil
}
func (stubClient) Channels(context.Context) ([]platform.Channel, error) { return nil, nil }
func (stubClient) Members(context.Context, string) ([]platform.User, error) {
	return nil, nil
}
func (stubClient) History(context.Context, string, int, int64) ([]platform.Message, error) {
	return nil, nil
}
func (stubClient) FetchUser(context.Context, string) (*platform.User, error) {
	return nil, platform.ErrNotFound
}
func (stubClient) Send(context.Context, string, string) (string, error) { return "", nil }
func (stubClient) Edit(context.Context, string, string, string) error   { return nil }
func (stubClient) SendFile(context.Context, string, string) error       { return nil }

func newTestService(t *testing.T, dir string, cfg *config.Config) *api.Service {
	t.Helper()
	db, err := store.Open(filepath.Join(dir, "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	client := stubClient{}
	return api.NewService(api.Deps{
		Client:     client,
		History:    search.NewHistoryCache(client, 16, time.Minute),
		Registry:   search.NewRegistry(),
		Cooldown:   search.NewCooldownGate(10 * time.Minute),
		Stats:      stats.Load(filepath.Join(dir, "stats.json")),
		Exporter:   export.New(filepath.Join(dir, "exports")),
		Matcher:    match.NewKeywordMatcher([]string{"alert"}, 64, time.Minute),
		Machine:    status.NewMachine(bus.New()),
		DB:         db,
		Bus:        bus.New(),
		Logger:     zap.NewNop(),
		Config:     cfg,
		ConfigPath: filepath.Join(dir, "config.toml"),
	})
}

func TestDaemonLifecycle(t *testing.T) {
	// Use a short path to avoid the 104-char Unix socket limit.
	tmpDir, err := os.MkdirTemp("/tmp", "ds-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	sessionName := "test"
	sessionDir := filepath.Join(tmpDir, sessionName)
	socketPath := filepath.Join(sessionDir, "d.sock")

	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		t.Fatal(err)
	}

	// Acquire lock.
	lk, err := lock.Acquire(sessionDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	svc := newTestService(t, sessionDir, config.Default())

	srv, err := NewServer(Params{SessionName: sessionName, SocketPath: socketPath}, zap.NewNop(), svc)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	time.Sleep(50 * time.Millisecond)

	// Socket must be owner-only.
	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket perm = %o, want 0600", perm)
	}

	// Connect as client.
	httpc := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}

	// Status reports the booting state.
	resp, err := httpc.Get("http://unix/v1/status")
	if err != nil {
		t.Fatalf("GET /v1/status error = %v", err)
	}
	var st api.StatusInfo
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if st.State != string(status.Booting) {
		t.Errorf("state = %q, want %q", st.State, status.Booting)
	}
	if st.Keywords != 1 {
		t.Errorf("keywords = %d, want 1", st.Keywords)
	}

	// Jobs list is empty.
	resp, err = httpc.Get("http://unix/v1/jobs")
	if err != nil {
		t.Fatalf("GET /v1/jobs error = %v", err)
	}
	var jobs []api.JobSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if len(jobs) != 0 {
		t.Errorf("jobs = %d, want 0", len(jobs))
	}

	// Metrics endpoint is wired.
	resp, err = httpc.Get("http://unix/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", resp.StatusCode)
	}
}

func TestServerRemovesStaleSocket(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "ds-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "d.sock")

	// Leave a stale socket file behind, as a crashed daemon would.
	if err := os.WriteFile(socketPath, nil, 0600); err != nil {
		t.Fatal(err)
	}

	svc := api.NewService(api.Deps{
		Client:  stubClient{},
		Machine: status.NewMachine(bus.New()),
		Matcher: match.NewKeywordMatcher(nil, 16, time.Minute),
		Stats:   stats.Load(filepath.Join(tmpDir, "stats.json")),
	})
	srv, err := NewServer(Params{SessionName: "test", SocketPath: socketPath}, zap.NewNop(), svc)
	if err != nil {
		t.Fatalf("NewServer with stale socket error = %v", err)
	}
	srv.Stop(context.Background())

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket file not removed on stop")
	}
}

func TestSchedulerRespectsInterval(t *testing.T) {
	cfg := config.Default()
	cfg.AutoScanEnabled = true
	cfg.AutoScanIntervalMinutes = 60
	svc := newTestService(t, t.TempDir(), cfg)

	sched := NewScheduler(svc, zap.NewNop())

	sched.maybeScan()
	if sched.lastRun.IsZero() {
		t.Fatal("first tick did not start a scan")
	}
	first := sched.lastRun

	// Within the interval nothing new is started.
	sched.maybeScan()
	if !sched.lastRun.Equal(first) {
		t.Error("second tick started a scan inside the interval")
	}

	// Once the interval has elapsed the next tick fires again.
	sched.lastRun = time.Now().Add(-2 * time.Hour)
	waitJobDone(t, svc)
	sched.maybeScan()
	if sched.lastRun.Equal(first) || sched.lastRun.IsZero() {
		t.Error("tick after the interval did not start a scan")
	}
}

func TestSchedulerDisabled(t *testing.T) {
	svc := newTestService(t, t.TempDir(), config.Default())
	sched := NewScheduler(svc, zap.NewNop())

	sched.maybeScan()
	if !sched.lastRun.IsZero() {
		t.Error("scan started while auto scan is disabled")
	}
}

// waitJobDone blocks until no scan job is running, so the next scheduler
// tick is not rejected by the single-flight registry.
func waitJobDone(t *testing.T, svc *api.Service) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		running := false
		for _, j := range svc.Snapshots() {
			if j.Running {
				running = true
			}
		}
		if !running {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("scan job did not finish")
}
