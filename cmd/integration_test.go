package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/enrolstat/internal/aggregate"
	"github.com/KaramelBytes/enrolstat/internal/snapshot"
	"github.com/KaramelBytes/enrolstat/internal/store"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags clears flag values and Changed state left over from earlier
// invocations in the same process.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	pterm.DisableOutput()
	color.NoColor = true
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

// setupHome isolates config and storage in a temp HOME and writes the
// two-source fixture.
func setupHome(t *testing.T) (home string, inputs []string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	for _, env := range []string{"ENROLSTAT_STORE_BACKEND", "ENROLSTAT_STORE_PATH", "ENROLSTAT_DATA_DIR", "ENROLSTAT_STORE_QUOTA"} {
		t.Setenv(env, "")
	}
	files := map[string]string{
		"a.csv": "state,age_0_5,age_18_greater\nX,10,20\n",
		"b.csv": "state,age_0_5,age_18_greater\nX,5,0\nY,0,100\n",
	}
	for _, name := range []string{"a.csv", "b.csv"} {
		p := filepath.Join(home, name)
		if err := os.WriteFile(p, []byte(files[name]), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		inputs = append(inputs, p)
	}
	return home, inputs
}

func shareToken(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if tok, ok := strings.CutPrefix(line, "Token: "); ok {
			return strings.TrimSpace(tok)
		}
	}
	t.Fatalf("no token in share output:\n%s", out)
	return ""
}

func TestCLI_Ingest_Show_Export_Share_Open(t *testing.T) {
	home, inputs := setupHome(t)

	out := runCmd(t, append([]string{"ingest", "--quiet"}, inputs...)...)
	if !strings.Contains(out, "Y") || !strings.Contains(out, "Dominant category") {
		t.Fatalf("unexpected ingest output:\n%s", out)
	}

	out = runCmd(t, "show")
	if !strings.Contains(out, "age_18_greater") || !strings.Contains(out, "Category totals") {
		t.Fatalf("unexpected show output:\n%s", out)
	}

	out = runCmd(t, "insights")
	if !strings.Contains(out, "Pattern consistency") {
		t.Fatalf("unexpected insights output:\n%s", out)
	}

	jsonPath := filepath.Join(home, "processed_data.json")
	runCmd(t, "export", "-o", jsonPath)
	b, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var doc struct {
		Metadata struct {
			AgeCols []string `json:"ageCols"`
		} `json:"metadata"`
		Data []struct {
			State string  `json:"state"`
			Total float64 `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(doc.Data) != 2 || doc.Data[0].State != "Y" || doc.Data[0].Total != 100 || doc.Data[1].Total != 35 {
		t.Fatalf("unexpected exported data: %+v", doc.Data)
	}
	if len(doc.Metadata.AgeCols) != 2 {
		t.Fatalf("unexpected ageCols: %v", doc.Metadata.AgeCols)
	}

	runCmd(t, "import", "--key", "copy", jsonPath)
	out = runCmd(t, "show", "--key", "copy")
	if !strings.Contains(out, "Y") || !strings.Contains(out, "age_0_5") {
		t.Fatalf("unexpected show output for imported dataset:\n%s", out)
	}

	out = runCmd(t, "export", "--format", "csv", "-o", "-")
	if !strings.Contains(out, "Y,100,0,100") || !strings.Contains(out, "X,35,15,20") {
		t.Fatalf("unexpected csv export:\n%s", out)
	}

	out = runCmd(t, "share", "--attribution", "Test data", "--base-url", "https://example.org/view")
	if !strings.Contains(out, "https://example.org/view?snapshot=") {
		t.Fatalf("share output missing link:\n%s", out)
	}
	token := shareToken(t, out)

	out = runCmd(t, "open", "https://example.org/view?snapshot="+token)
	if !strings.Contains(out, "Top: Y (100)") || !strings.Contains(out, "Attribution: Test data") {
		t.Fatalf("unexpected open output:\n%s", out)
	}
}

func TestCLI_EncryptedSnapshotRetriesPassphrase(t *testing.T) {
	_, inputs := setupHome(t)
	runCmd(t, append([]string{"ingest", "-q"}, inputs...)...)
	token := shareToken(t, runCmd(t, "share", "--passphrase", "secret"))

	orig := promptPassphrase
	defer func() { promptPassphrase = orig }()

	answers := []string{"wrong", "nope", "secret"}
	calls := 0
	promptPassphrase = func(string) (string, error) {
		a := answers[calls]
		calls++
		return a, nil
	}
	out := runCmd(t, "open", token)
	if calls != 3 || !strings.Contains(out, "Top: Y") {
		t.Fatalf("expected success on third attempt, calls=%d output:\n%s", calls, out)
	}

	calls = 0
	answers = []string{"a", "b", "c"}
	if _, err := execute(t, "open", token); !errors.Is(err, snapshot.ErrIncorrectPassphrase) {
		t.Fatalf("expected ErrIncorrectPassphrase, got %v", err)
	}
	if calls != maxPassphraseAttempts {
		t.Fatalf("expected %d attempts, got %d", maxPassphraseAttempts, calls)
	}

	if _, err := execute(t, "open", "--passphrase", "wrong", token); !errors.Is(err, snapshot.ErrIncorrectPassphrase) {
		t.Fatalf("expected ErrIncorrectPassphrase for flag passphrase, got %v", err)
	}
}

func TestCLI_OpenCorruptToken(t *testing.T) {
	setupHome(t)
	_, err := execute(t, "open", "not-a-real-token")
	if !errors.Is(err, snapshot.ErrSnapshotFormat) {
		t.Fatalf("expected ErrSnapshotFormat, got %v", err)
	}
	if errorHint(err) == "" {
		t.Fatalf("expected a hint for %v", err)
	}
}

func TestCLI_ImportRejectsInvalidDocument(t *testing.T) {
	home, _ := setupHome(t)
	p := filepath.Join(home, "bad.json")
	if err := os.WriteFile(p, []byte(`{"metadata": {"ageCols": []}, "data": []}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := execute(t, "import", p)
	if !errors.Is(err, store.ErrInvalidDataset) {
		t.Fatalf("expected ErrInvalidDataset, got %v", err)
	}
}

func TestCLI_IngestSchemaFailure(t *testing.T) {
	home, _ := setupHome(t)
	p := filepath.Join(home, "bad.csv")
	if err := os.WriteFile(p, []byte("state,date,pincode\nX,2024-01-01,110001\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := execute(t, "ingest", "-q", p)
	var se *aggregate.SchemaDetectionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaDetectionError, got %v", err)
	}
	if !strings.Contains(errorHint(err), "columns") {
		t.Fatalf("unexpected hint: %q", errorHint(err))
	}
	// nothing stored after a failed job
	if _, err := execute(t, "show"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after failed ingest, got %v", err)
	}
}

func TestCLI_List_Delete(t *testing.T) {
	_, inputs := setupHome(t)
	runCmd(t, append([]string{"ingest", "-q"}, inputs...)...)
	runCmd(t, append([]string{"ingest", "-q", "--key", "jan"}, inputs...)...)

	out := runCmd(t, "list")
	if !strings.Contains(out, store.CurrentDatasetKey) || !strings.Contains(out, "jan") {
		t.Fatalf("unexpected list output:\n%s", out)
	}
	runCmd(t, "show", "--key", "jan")
	runCmd(t, "delete", "jan")
	if _, err := execute(t, "show", "--key", "jan"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := execute(t, "delete", "jan"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCLI_IngestNoSaveWritesReports(t *testing.T) {
	home, inputs := setupHome(t)
	md := filepath.Join(home, "report.md")
	metrics := filepath.Join(home, "metrics.prom")
	runCmd(t, append([]string{"ingest", "-q", "--no-save", "-o", md, "--metrics-file", metrics}, inputs...)...)

	b, err := os.ReadFile(md)
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	if !strings.Contains(string(b), "[DATASET SUMMARY]") || !strings.Contains(string(b), "Grand total: 135") {
		t.Fatalf("unexpected markdown:\n%s", b)
	}
	m, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(m), "enrolstat_records_total") || !strings.Contains(string(m), "enrolstat_jobs_total") {
		t.Fatalf("unexpected metrics:\n%s", m)
	}
	if _, err := execute(t, "show"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected nothing stored with --no-save, got %v", err)
	}
}

func TestCLI_ConfigFileBackend(t *testing.T) {
	home, inputs := setupHome(t)
	runCmd(t, "config", "set", "store_backend", "file")
	runCmd(t, "config", "set", "top_n", "1")

	out := runCmd(t, "config", "show")
	if !strings.Contains(out, "store_backend: file") || !strings.Contains(out, "top_n: 1") {
		t.Fatalf("unexpected config output:\n%s", out)
	}

	runCmd(t, append([]string{"ingest", "-q"}, inputs...)...)
	if _, err := os.Stat(filepath.Join(home, ".enrolstat", "datasets", store.CurrentDatasetKey+".json")); err != nil {
		t.Fatalf("expected file backend dataset: %v", err)
	}
	out = runCmd(t, "show")
	if strings.Contains(out, "│ X ") {
		t.Fatalf("expected only the top group with top_n=1:\n%s", out)
	}

	if _, err := execute(t, "config", "set", "store_backend", "redis"); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if _, err := execute(t, "config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestCLI_IngestUsesConfiguredDelimiter(t *testing.T) {
	home, _ := setupHome(t)
	p := filepath.Join(home, "semi.txt")
	if err := os.WriteFile(p, []byte("state;age_0_5;age_18_greater\nX;1;2\nY;3;4\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runCmd(t, "config", "set", "delimiter", ";")
	runCmd(t, "ingest", "-q", p)
	out := runCmd(t, "export", "--format", "csv", "-o", "-")
	if !strings.Contains(out, "Y,7,3,4") || !strings.Contains(out, "X,3,1,2") {
		t.Fatalf("unexpected csv export:\n%s", out)
	}

	runCmd(t, "config", "set", "delimiter", "|")
	if _, err := execute(t, "ingest", "-q", "--delimiter", ";", p); err != nil {
		t.Fatalf("flag delimiter should override config: %v", err)
	}
}

func TestCLI_StorageQuotaExceeded(t *testing.T) {
	_, inputs := setupHome(t)
	runCmd(t, "config", "set", "store_quota", "10B")
	_, err := execute(t, append([]string{"ingest", "-q"}, inputs...)...)
	if !errors.Is(err, store.ErrStorageExhausted) {
		t.Fatalf("expected ErrStorageExhausted, got %v", err)
	}
	if !strings.Contains(errorHint(err), "reduce the input size") {
		t.Fatalf("unexpected hint: %q", errorHint(err))
	}
}
