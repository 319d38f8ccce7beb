package slurm_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hpckit/batchq"
	"github.com/hpckit/batchq/backoff"
	"github.com/hpckit/batchq/slurm"
)

// fakeCommander records invocations of the three scheduler ports and
// serves a scripted queue listing.
type fakeCommander struct {
	mu        sync.Mutex
	listings  [][]byte // served in order; last one repeats
	listCalls int
	submits   []string
	cancels   []string
	submitErr error
	listErr   error
}

func (f *fakeCommander) Submit(_ context.Context, scriptPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submits = append(f.submits, scriptPath)
	return nil
}

func (f *fakeCommander) List(_ context.Context, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	i := f.listCalls
	f.listCalls++
	if i >= len(f.listings) {
		i = len(f.listings) - 1
	}
	if i < 0 {
		return nil, nil
	}
	return f.listings[i], nil
}

func (f *fakeCommander) Cancel(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, name)
	return nil
}

type fakeJob struct {
	name     string
	ready    bool
	blocked  bool
	complete bool
	failed   bool
	command  string
	resets   int
	setups   int
}

func (j *fakeJob) Name() string    { return j.name }
func (j *fakeJob) Ready() bool     { return j.ready }
func (j *fakeJob) Blocked() bool   { return j.blocked }
func (j *fakeJob) Complete() bool  { return j.complete }
func (j *fakeJob) Failed() bool    { return j.failed }
func (j *fakeJob) Command() string { return j.command }

func (j *fakeJob) Setup() error {
	j.setups++
	return nil
}

func (j *fakeJob) Reset() error {
	j.resets++
	j.complete = false
	j.failed = false
	return nil
}

func newEnv(t *testing.T, fc *fakeCommander) *slurm.Environment {
	t.Helper()
	env, err := slurm.New("alice", slurm.WithCommander(fc))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return env
}

func TestInfo_ClassifiesQueueListing(t *testing.T) {
	fc := &fakeCommander{listings: [][]byte{[]byte("R-job1\nPD-job2\nXX-job3\n\n")}}
	env := newEnv(t, fc)

	info, err := env.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}

	if !info.IsRunning("job1") || len(info.Running) != 1 {
		t.Errorf("Running = %v, want [job1]", info.Running)
	}
	if !info.IsPending("job2") || len(info.Pending) != 1 {
		t.Errorf("Pending = %v, want [job2]", info.Pending)
	}
	if !info.IsUnknown("job3") || len(info.Unknown) != 1 {
		t.Errorf("Unknown = %v, want [job3]", info.Unknown)
	}
}

func TestRefresh_SkipsMalformedLines(t *testing.T) {
	fc := &fakeCommander{listings: [][]byte{[]byte("R-job1\nnodelimiter\nPD-\n")}}
	env := newEnv(t, fc)

	stats, err := env.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if stats.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", stats.Skipped)
	}
	if stats.Running != 1 {
		t.Errorf("Running = %d, want 1", stats.Running)
	}
}

func TestInfo_JobNamesMayContainDashes(t *testing.T) {
	fc := &fakeCommander{listings: [][]byte{[]byte("R-fit-model-3\n")}}
	env := newEnv(t, fc)

	info, err := env.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if !info.IsRunning("fit-model-3") {
		t.Errorf("Running = %v, want [fit-model-3]", info.Running)
	}
}

func TestInfo_LazyPopulatesOnce(t *testing.T) {
	fc := &fakeCommander{listings: [][]byte{[]byte("PD-job1\n")}}
	env := newEnv(t, fc)

	ctx := context.Background()
	for range 3 {
		if _, err := env.Info(ctx); err != nil {
			t.Fatalf("Info: %v", err)
		}
	}
	if fc.listCalls != 1 {
		t.Errorf("listCalls = %d, want 1 (cache should be reused)", fc.listCalls)
	}
}

func TestRefresh_ReplacesCacheWholesale(t *testing.T) {
	fc := &fakeCommander{listings: [][]byte{
		[]byte("PD-old-job\n"),
		[]byte("R-new-job\n"),
	}}
	env := newEnv(t, fc)
	ctx := context.Background()

	if _, err := env.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := env.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	info, err := env.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.IsPending("old-job") {
		t.Error("old-job survived a refresh; cache was merged, not replaced")
	}
	if !info.IsRunning("new-job") {
		t.Errorf("Running = %v, want [new-job]", info.Running)
	}
}

func TestCancel_DoesNotMutateCache(t *testing.T) {
	fc := &fakeCommander{listings: [][]byte{[]byte("PD-doomed\n")}}
	env := newEnv(t, fc)
	ctx := context.Background()

	before, err := env.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if !before.IsPending("doomed") {
		t.Fatalf("Pending = %v, want [doomed]", before.Pending)
	}

	if err := env.Cancel(ctx, "doomed"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(fc.cancels) != 1 || fc.cancels[0] != "doomed" {
		t.Fatalf("cancels = %v, want [doomed]", fc.cancels)
	}

	after, err := env.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if !after.IsPending("doomed") {
		t.Error("cache changed without an explicit refresh")
	}
	if fc.listCalls != 1 {
		t.Errorf("listCalls = %d, want 1", fc.listCalls)
	}
}

func TestRun_WritesScriptAndSubmits(t *testing.T) {
	fc := &fakeCommander{listings: [][]byte{nil}}
	env := newEnv(t, fc)
	scriptPath := filepath.Join(t.TempDir(), "job.sh")
	j := &fakeJob{name: "job1", ready: true, command: "python train.py"}

	err := env.Run(context.Background(), j,
		batchq.WithScriptPath(scriptPath),
		batchq.WithDirectives(map[string]string{"time": "0-01:00:00", "partition": "short"}),
		batchq.WithFlags("exclusive"),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fc.submits) != 1 || fc.submits[0] != scriptPath {
		t.Fatalf("submits = %v, want [%s]", fc.submits, scriptPath)
	}
	if j.setups != 1 {
		t.Errorf("setups = %d, want 1", j.setups)
	}

	content, err := os.ReadFile(scriptPath)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	want := "#!/bin/bash\n" +
		"#SBATCH --partition=short\n" +
		"#SBATCH --time=0-01:00:00\n" +
		"#SBATCH --exclusive\n" +
		"python train.py\n"
	if string(content) != want {
		t.Errorf("script = %q, want %q", content, want)
	}
}

func TestRun_ScriptGenerationIsIdempotent(t *testing.T) {
	fc := &fakeCommander{listings: [][]byte{nil}}
	env := newEnv(t, fc)
	scriptPath := filepath.Join(t.TempDir(), "job.sh")
	j := &fakeJob{name: "job1", ready: true, command: "python train.py"}
	ctx := context.Background()

	if err := env.Run(ctx, j, batchq.WithScriptPath(scriptPath)); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// A changed command must not regenerate an existing script.
	j.command = "python train.py --fast"
	if err := env.Run(ctx, j, batchq.WithScriptPath(scriptPath)); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	content, err := os.ReadFile(scriptPath)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if strings.Contains(string(content), "--fast") {
		t.Error("existing script was regenerated; path existence should be a cache")
	}
	if len(fc.submits) != 2 {
		t.Errorf("submits = %d, want 2", len(fc.submits))
	}
}

func TestRun_MissingScriptPath(t *testing.T) {
	fc := &fakeCommander{listings: [][]byte{nil}}
	env := newEnv(t, fc)
	j := &fakeJob{name: "job1", ready: true, command: "true"}

	if err := env.Run(context.Background(), j); err == nil {
		t.Fatal("expected error for missing script path")
	}
	if len(fc.submits) != 0 {
		t.Errorf("submits = %d, want 0", len(fc.submits))
	}
}

func TestRun_InProgressRejectedWithoutForce(t *testing.T) {
	fc := &fakeCommander{listings: [][]byte{[]byte("R-busy\n")}}
	env := newEnv(t, fc)
	j := &fakeJob{name: "busy", ready: true, command: "true"}

	err := env.Run(context.Background(), j,
		batchq.WithScriptPath(filepath.Join(t.TempDir(), "busy.sh")))
	if !errors.Is(err, batchq.ErrAlreadyInProgress) {
		t.Fatalf("err = %v, want ErrAlreadyInProgress", err)
	}
	if len(fc.cancels) != 0 {
		t.Errorf("cancels = %v, want none", fc.cancels)
	}
	if len(fc.submits) != 0 {
		t.Errorf("submits = %v, want none", fc.submits)
	}
}

func TestRun_InProgressForcedCancelsThenResubmits(t *testing.T) {
	fc := &fakeCommander{listings: [][]byte{[]byte("R-busy\n")}}
	env := newEnv(t, fc)
	j := &fakeJob{name: "busy", ready: true, command: "true"}

	err := env.Run(context.Background(), j,
		batchq.WithScriptPath(filepath.Join(t.TempDir(), "busy.sh")),
		batchq.WithForce(),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fc.cancels) != 1 || fc.cancels[0] != "busy" {
		t.Fatalf("cancels = %v, want [busy]", fc.cancels)
	}
	if j.resets != 1 {
		t.Errorf("resets = %d, want 1", j.resets)
	}
	if len(fc.submits) != 1 {
		t.Errorf("submits = %d, want 1", len(fc.submits))
	}
}

func TestRun_SubmitFailurePropagates(t *testing.T) {
	submitErr := &batchq.CommandError{Cmd: "sbatch job.sh", ExitCode: 1}
	fc := &fakeCommander{listings: [][]byte{nil}, submitErr: submitErr}
	env := newEnv(t, fc)
	j := &fakeJob{name: "job1", ready: true, command: "true"}

	err := env.Run(context.Background(), j,
		batchq.WithScriptPath(filepath.Join(t.TempDir(), "job.sh")))

	var cmdErr *batchq.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("err = %v, want CommandError", err)
	}
	if cmdErr.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", cmdErr.ExitCode)
	}
	// Launch failure must not touch the job's lifecycle state.
	if j.resets != 0 {
		t.Errorf("resets = %d, want 0", j.resets)
	}
}

func TestWait_ReturnsWhenJobLeavesQueue(t *testing.T) {
	fc := &fakeCommander{listings: [][]byte{
		[]byte("R-watched\n"),
		[]byte("R-watched\n"),
		[]byte(""),
	}}
	env := newEnv(t, fc)

	err := env.Wait(context.Background(), "watched", backoff.NewConstant(0))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if fc.listCalls != 3 {
		t.Errorf("listCalls = %d, want 3", fc.listCalls)
	}
}

func TestWait_HonorsContextCancellation(t *testing.T) {
	fc := &fakeCommander{listings: [][]byte{[]byte("PD-stuck\n")}}
	env := newEnv(t, fc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := env.Wait(ctx, "stuck", backoff.NewConstant(time.Hour))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
