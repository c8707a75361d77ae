package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"soilnet-ml/internal/app"
	"soilnet-ml/internal/config"
	"soilnet-ml/internal/repository"
	"soilnet-ml/internal/types"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{SQLitePath: filepath.Join(t.TempDir(), "soilnet.db")}
}

func execute(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	root := RootCommand(cfg, quiet())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, cfg, "migrate", "--status")
	if err != nil {
		t.Fatalf("migrate --status: %v", err)
	}
	if !strings.Contains(out, "0001_readings\tpending") {
		t.Errorf("status before migrate = %q", out)
	}

	out, err = execute(t, cfg, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if out != "2 migrations applied\n" {
		t.Errorf("migrate output = %q", out)
	}

	out, err = execute(t, cfg, "migrate")
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if out != "0 migrations applied\n" {
		t.Errorf("second migrate output = %q", out)
	}
}

func TestImportExport(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	csv := "node_id,createdAt,humidity_percent,rssi,extra\n" +
		"n1,2025-03-03T08:00:00Z,40,-60,x\n" +
		"n1,2025-03-03T09:00:00Z,41,-61,y\n"
	if err := os.WriteFile(in, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	out, err := execute(t, cfg, "import", in)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if out != "imported 2 readings\n" {
		t.Errorf("import output = %q", out)
	}

	out, err = execute(t, cfg, "export", "-")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("export lines = %q", lines)
	}
	if lines[1] != "n1,2025-03-03T08:00:00Z,40,,-60,,,," {
		t.Errorf("first exported row = %q", lines[1])
	}

	path := filepath.Join(dir, "out.csv")
	if _, err := execute(t, cfg, "export", path); err != nil {
		t.Fatalf("export to file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != out {
		t.Errorf("file export differs from stdout export")
	}
}

func TestImport_MissingFile(t *testing.T) {
	if _, err := execute(t, testConfig(t), "import", filepath.Join(t.TempDir(), "none.csv")); err == nil {
		t.Fatal("import of missing file: err = nil")
	}
}

func TestArgsValidated(t *testing.T) {
	cfg := testConfig(t)
	for _, args := range [][]string{{"import"}, {"export"}, {"runs", "extra"}, {"migrate", "x"}} {
		if _, err := execute(t, cfg, args...); err == nil {
			t.Errorf("%v: err = nil, want usage error", args)
		}
	}
}

func TestRuns(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg, quiet())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	repo := repository.NewRunRepository(store)
	base := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		run := types.TrainingRun{
			ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour), FinishedAt: base.Add(time.Duration(i) * time.Hour),
			Status: types.RunSucceeded, TrainingSamples: i,
		}
		if err := repo.InsertRun(ctx, run); err != nil {
			t.Fatalf("InsertRun: %v", err)
		}
	}
	_ = store.Close()

	out, err := execute(t, cfg, "runs", "--limit", "2")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var r types.TrainingRun
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
		ids = append(ids, r.ID)
	}
	if strings.Join(ids, ",") != "third,second" {
		t.Errorf("runs = %v, want third,second", ids)
	}
}
