package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/vmbroker/internal/config"
	"github.com/me/vmbroker/internal/server"
	"github.com/me/vmbroker/internal/store"
	"github.com/me/vmbroker/pkg/model"
)

const diamondYAML = `name: diamond
tasks:
  - id: A
  - id: B
    parents: [A]
  - id: C
    parents: [A]
  - id: D
    parents: [B, C]
`

// startTestServer starts a server with an in-memory SQLite store and returns the URL.
func startTestServer(t *testing.T) string {
	t.Helper()
	srvLogger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewSQLiteStore(":memory:", srvLogger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := server.New(config.DefaultConfig(), st, srvLogger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// submitTestRun simulates the diamond workflow on the server and returns the run ID.
func submitTestRun(t *testing.T, serverURL string) string {
	t.Helper()
	srvLogger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	c := NewClient(serverURL, srvLogger)

	resp, err := c.Post(context.Background(), "/api/v1/runs/", map[string]any{
		"format":   "yaml",
		"workflow": diamondYAML,
	})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	var run model.Run
	if err := json.Unmarshal(resp.Data, &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	return run.ID
}

func writeWorkflow(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write workflow: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func TestSimulateCommand(t *testing.T) {
	path := writeWorkflow(t, "diamond.yaml", diamondYAML)

	output, err := runCLI(t, "--log-level", "error", "simulate", path)
	if err != nil {
		t.Fatalf("simulate error: %v\noutput: %s", err, output)
	}
	for _, want := range []string{
		"Workflow:  diamond (4 tasks, depth 3)",
		"TERMINATED (4/4 tasks completed)",
		"Pool:      2 slots",
		"3,000 slot-seconds",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestSimulateCommand_JSONAndOverrides(t *testing.T) {
	path := writeWorkflow(t, "chain.hcl", `workflow "chain" {
  task "a" {
    runtime = 100
  }
  task "b" {
    runtime = 50
    parents = ["a"]
  }
}
`)

	output, err := runCLI(t, "--log-level", "error", "simulate", path,
		"--json", "--duration-expr", "task.runtime", "--min-billable", "0", "--rate", "0.01")
	if err != nil {
		t.Fatalf("simulate error: %v\noutput: %s", err, output)
	}

	var run model.Run
	if err := json.Unmarshal([]byte(output), &run); err != nil {
		t.Fatalf("output is not a run record: %v\n%s", err, output)
	}
	if !strings.HasPrefix(run.ID, "run_") {
		t.Errorf("id = %q, want run_ prefix", run.ID)
	}
	if run.PoolSize != 1 || run.Report == nil {
		t.Fatalf("pool=%d report=%v", run.PoolSize, run.Report)
	}
	if run.Report.Makespan != 150 || run.Report.BillableSeconds != 150 {
		t.Errorf("makespan=%v billable=%d, want 150/150", run.Report.Makespan, run.Report.BillableSeconds)
	}
}

func TestSimulateCommand_PersistsToDB(t *testing.T) {
	path := writeWorkflow(t, "diamond.yaml", diamondYAML)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	if output, err := runCLI(t, "--log-level", "error", "simulate", path, "--db", dbPath); err != nil {
		t.Fatalf("simulate error: %v\noutput: %s", err, output)
	}

	st, err := store.NewSQLiteStore(dbPath, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	runs, total, err := st.ListRuns(context.Background(), model.DefaultListOptions())
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if total != 1 || runs[0].WorkflowName != "diamond" {
		t.Errorf("stored runs = %d, want one diamond run", total)
	}
}

func TestSimulateCommand_Errors(t *testing.T) {
	if _, err := runCLI(t, "simulate"); err == nil {
		t.Error("expected error without a workflow argument")
	}
	if _, err := runCLI(t, "simulate", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
	cyclic := writeWorkflow(t, "cyclic.yaml", "tasks:\n  - id: a\n    parents: [b]\n  - id: b\n    parents: [a]\n")
	if _, err := runCLI(t, "simulate", cyclic); err == nil {
		t.Error("expected error for a cyclic workflow")
	}
	badCfg := writeWorkflow(t, "bad.yaml", "broker:\n  rate_per_second: -1\n")
	path := writeWorkflow(t, "diamond.yaml", diamondYAML)
	if _, err := runCLI(t, "--config", badCfg, "simulate", path); err == nil {
		t.Error("expected error for an invalid config file")
	}
}

func TestInspectCommand(t *testing.T) {
	path := writeWorkflow(t, "diamond.yaml", diamondYAML)
	output, err := runCLI(t, "inspect", path)
	if err != nil {
		t.Fatalf("inspect error: %v", err)
	}
	for _, want := range []string{"Tasks:     4", "Depth:     3", "Pool size: 2", "Roots:     1"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestRunsListCommand(t *testing.T) {
	url := startTestServer(t)
	id := submitTestRun(t, url)

	output, err := runCLI(t, "--server", url, "runs", "list")
	if err != nil {
		t.Fatalf("runs list error: %v", err)
	}
	if !strings.Contains(output, id) {
		t.Errorf("expected run ID in output, got: %s", output)
	}
	if !strings.Contains(output, "TERMINATED") {
		t.Errorf("expected TERMINATED state in output, got: %s", output)
	}
}

func TestRunsListCommand_Empty(t *testing.T) {
	url := startTestServer(t)
	output, err := runCLI(t, "--server", url, "runs", "list")
	if err != nil {
		t.Fatalf("runs list error: %v", err)
	}
	if !strings.Contains(output, "No runs found.") {
		t.Errorf("expected empty message, got: %s", output)
	}
}

func TestRunsShowCommand(t *testing.T) {
	url := startTestServer(t)
	id := submitTestRun(t, url)

	output, err := runCLI(t, "--server", url, "runs", "show", id, "--dispatches")
	if err != nil {
		t.Fatalf("runs show error: %v", err)
	}
	for _, want := range []string{id, "diamond", "3,000 slot-seconds", "SLOT", "UNIT"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}

	output, err = runCLI(t, "--server", url, "runs", "show", id, "--json")
	if err != nil {
		t.Fatalf("runs show --json error: %v", err)
	}
	var run model.Run
	if err := json.Unmarshal([]byte(output), &run); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, output)
	}
	if run.ID != id {
		t.Errorf("id = %q, want %q", run.ID, id)
	}
}

func TestRunsShowCommand_NotFound(t *testing.T) {
	url := startTestServer(t)
	_, err := runCLI(t, "--server", url, "runs", "show", "run_missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestRunsDeleteCommand(t *testing.T) {
	url := startTestServer(t)
	id := submitTestRun(t, url)

	if _, err := runCLI(t, "--server", url, "runs", "delete", id); err != nil {
		t.Fatalf("runs delete error: %v", err)
	}
	if _, err := runCLI(t, "--server", url, "runs", "show", id); err == nil {
		t.Error("expected error showing a deleted run")
	}
}
