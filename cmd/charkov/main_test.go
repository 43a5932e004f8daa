package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/CTAG07/charkov/pkg/markov"
)

// setupTestConfig writes a config pointing at a database in a temp dir and
// returns the config path.
func setupTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "charkov.json")
	content := fmt.Sprintf(`{"log_level": "error", "database_path": %q, "default_order": 1, "default_length": 20}`,
		filepath.Join(dir, "test.db"))
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

// runCLI executes the command tree with the given stdin and arguments.
func runCLI(t *testing.T, configPath, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateCommand(t *testing.T) {
	configPath := setupTestConfig(t)

	testCases := []struct {
		name     string
		stdin    string
		args     []string
		expected string
	}{
		{
			name:     "Unknown start state",
			args:     []string{"generate", "--text", "abcabc", "--order", "1", "--start", "q", "--length", "10"},
			expected: "Generated text: q\n",
		},
		{
			name:     "Length not above start",
			args:     []string{"generate", "--text", "abcabc", "--order", "2", "--start", "ab", "--length", "2"},
			expected: "Generated text: ab\n",
		},
		{
			name:     "Empty text",
			args:     []string{"generate", "--text", "", "--start", "abc", "--length", "10"},
			expected: "Generated text: abc\n",
		},
		{
			name:     "Single path",
			args:     []string{"generate", "--text", "xyz", "--order", "1", "--start", "x", "--length", "10"},
			expected: "Generated text: xyz\n",
		},
		{
			name:  "Interactive prompts",
			stdin: "abcabc\n1\nq\n10\n",
			args:  []string{"generate"},
			expected: "Enter text for Markov model:\nEnter the order of the model:\n" +
				"Enter start state:\nEnter the length of text to generate:\nGenerated text: q\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := runCLI(t, configPath, tc.stdin, tc.args...)
			if err != nil {
				t.Fatalf("generate failed: %v", err)
			}
			if out != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, out)
			}
		})
	}
}

func TestGenerateCommandDefaultStart(t *testing.T) {
	configPath := setupTestConfig(t)

	out, err := runCLI(t, configPath, "", "generate", "--text", "abcabc", "--length", "4", "--seed", "7")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	generated := strings.TrimSuffix(strings.TrimPrefix(out, "Generated text: "), "\n")
	if !strings.HasPrefix(generated, "a") {
		t.Errorf("expected output to begin with the first character of the text, got %q", generated)
	}
	if n := utf8.RuneCountInString(generated); n > 4 {
		t.Errorf("expected at most 4 characters, got %d (%q)", n, generated)
	}
}

func TestGenerateCommandErrors(t *testing.T) {
	configPath := setupTestConfig(t)

	_, err := runCLI(t, configPath, "", "generate", "--text", "abc", "--order", "0", "--start", "a")
	if !errors.Is(err, markov.ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder for order 0, got %v", err)
	}

	if _, err = runCLI(t, configPath, "abc\nnot-a-number\n", "generate"); err == nil {
		t.Error("expected an error for a non-numeric order")
	}

	if _, err = runCLI(t, configPath, "", "generate", "--model", "missing", "--start", "a"); err == nil {
		t.Error("expected an error for a missing model")
	}
}

func TestTrainAndDump(t *testing.T) {
	configPath := setupTestConfig(t)

	if _, err := runCLI(t, configPath, "abcabc", "train", "--model", "m", "--order", "1"); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	out, err := runCLI(t, configPath, "", "dump", "--model", "m")
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	expected := "\"a\" -> [\"b\" \"b\"]\n\"b\" -> [\"c\" \"c\"]\n\"c\" -> [\"a\" \"\"]\n"
	if out != expected {
		t.Errorf("dump = %q, want %q", out, expected)
	}

	// Training is cumulative.
	if _, err = runCLI(t, configPath, "ab", "train", "--model", "m"); err != nil {
		t.Fatalf("second train failed: %v", err)
	}
	out, _ = runCLI(t, configPath, "", "dump", "--model", "m")
	if !strings.Contains(out, "\"a\" -> [\"b\" \"b\" \"b\"]\n") {
		t.Errorf("expected a third a->b transition, got %q", out)
	}
	if !strings.Contains(out, "\"b\" -> [\"c\" \"c\" \"\"]\n") {
		t.Errorf("expected b to gain an end marker, got %q", out)
	}

	// A stored order cannot be changed.
	if _, err = runCLI(t, configPath, "abc", "train", "--model", "m", "--order", "2"); err == nil {
		t.Error("expected an error when training with a different order")
	}
}

func TestGenerateFromStoredModel(t *testing.T) {
	configPath := setupTestConfig(t)

	if _, err := runCLI(t, configPath, "xyz", "train", "--model", "m", "--order", "1"); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	if _, err := runCLI(t, configPath, "", "generate", "--model", "m"); err == nil {
		t.Error("expected an error without --start")
	}
	if _, err := runCLI(t, configPath, "", "generate", "--model", "m", "--start", "x", "--order", "2"); err == nil {
		t.Error("expected an error when --order differs from the stored order")
	}

	// Repeating the stored order is allowed.
	if out, err := runCLI(t, configPath, "", "generate", "--model", "m", "--start", "x", "--order", "1", "--length", "10"); err != nil || out != "Generated text: xyz\n" {
		t.Errorf("generate with matching --order = %q, %v", out, err)
	}

	out, err := runCLI(t, configPath, "", "generate", "--model", "m", "--start", "x", "--length", "10")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if out != "Generated text: xyz\n" {
		t.Errorf("expected %q, got %q", "Generated text: xyz\n", out)
	}
}

func TestExportRemoveImport(t *testing.T) {
	configPath := setupTestConfig(t)
	exportPath := filepath.Join(t.TempDir(), "m.json")

	if _, err := runCLI(t, configPath, "hello world", "train", "--model", "m", "--order", "2"); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	before, _ := runCLI(t, configPath, "", "dump", "--model", "m")

	if _, err := runCLI(t, configPath, "", "export", "--model", "m", "--out", exportPath); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if _, err := runCLI(t, configPath, "", "remove", "--model", "m"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := runCLI(t, configPath, "", "dump", "--model", "m"); err == nil {
		t.Fatal("expected dump of a removed model to fail")
	}
	if _, err := runCLI(t, configPath, "", "import", "--in", exportPath); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	after, err := runCLI(t, configPath, "", "dump", "--model", "m")
	if err != nil {
		t.Fatalf("dump after import failed: %v", err)
	}
	if after != before {
		t.Errorf("model changed across export/import:\nbefore:\n%s\nafter:\n%s", before, after)
	}
}

func TestStatsCommand(t *testing.T) {
	configPath := setupTestConfig(t)

	if _, err := runCLI(t, configPath, "abcabc", "train", "--model", "letters", "--order", "1"); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	out, err := runCLI(t, configPath, "", "stats")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one model line, got %q", out)
	}
	if fields := strings.Fields(lines[1]); strings.Join(fields, " ") != "letters 1 3 6 1" {
		t.Errorf("unexpected stats line %q", lines[1])
	}
}

func TestExportToStdout(t *testing.T) {
	configPath := setupTestConfig(t)

	if _, err := runCLI(t, configPath, "xyz", "train", "--model", "m", "--order", "1"); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	out, err := runCLI(t, configPath, "", "export", "--model", "m", "--out", "-")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var exported markov.ExportedModel
	if err = json.Unmarshal([]byte(out), &exported); err != nil {
		t.Fatalf("export output is not JSON: %v\n%s", err, out)
	}
	if exported.Name != "m" || exported.Order != 1 {
		t.Errorf("exported header = %q order %d, want \"m\" order 1", exported.Name, exported.Order)
	}
	want := map[string][]string{"x": {"y"}, "y": {"z"}, "z": {""}}
	if !reflect.DeepEqual(exported.Transitions, want) {
		t.Errorf("exported transitions = %v, want %v", exported.Transitions, want)
	}

	// The same output can be imported back under a fresh database.
	otherConfig := setupTestConfig(t)
	if _, err = runCLI(t, otherConfig, out, "import"); err != nil {
		t.Fatalf("import from stdin failed: %v", err)
	}
	if dump, _ := runCLI(t, otherConfig, "", "dump", "--model", "m"); dump != "\"x\" -> [\"y\"]\n\"y\" -> [\"z\"]\n\"z\" -> [\"\"]\n" {
		t.Errorf("dump after stdin import = %q", dump)
	}
}

func TestTrainRejectsInvalidOrder(t *testing.T) {
	configPath := setupTestConfig(t)

	_, err := runCLI(t, configPath, "abc", "train", "--model", "bad", "--order", "0")
	if !errors.Is(err, markov.ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}

	// No model may be left behind by the rejected run.
	out, err := runCLI(t, configPath, "", "stats")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 1 {
		t.Errorf("expected only the stats header, got %q", out)
	}
}
