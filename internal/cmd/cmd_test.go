package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/prism/internal/planner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// setupTestEnvironment points the config search path at a temp dir and
// gives each test a fresh viper.
func setupTestEnvironment(t *testing.T) (configDir string) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg"))

	viper.Reset()
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	t.Cleanup(viper.Reset)

	return filepath.Join(home, "xdg", "prism")
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "prism" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "prism")
	}

	expectedCmds := []string{"run", "plan", "config", "version"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(output, "prism ") {
		t.Errorf("output = %q, want prism prefix", output)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		want    any
		wantErr bool
	}{
		{"int", "display.fps", "60", 60, false},
		{"float", "timing.ema_alpha", "0.5", 0.5, false},
		{"bool true", "server.enabled", "true", true, false},
		{"bool false", "sinks.preview.enabled", "false", false, false},
		{"string", "queue.overflow_policy", "block", "block", false},
		{"bad int", "display.fps", "fast", nil, true},
		{"bad float", "timing.ema_alpha", "half", nil, true},
		{"bad bool", "server.enabled", "yes", nil, true},
		{"unknown key", "display.depth", "3", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseValue(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseValue(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseValue(%q, %q) = %v (%T), want %v (%T)", tt.key, tt.value, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestParseOverride(t *testing.T) {
	ov, err := parseOverride("binary", "auto")
	if err != nil {
		t.Fatalf("parseOverride failed: %v", err)
	}
	if ov.Key() != "binary/auto" {
		t.Errorf("Key() = %q, want %q", ov.Key(), "binary/auto")
	}

	if _, err := parseOverride("auto", "zipper"); err == nil {
		t.Error("expected error for unknown merge strategy")
	}
	if _, err := parseOverride("threaded", "auto"); err == nil {
		t.Error("expected error for unknown variant")
	}
}

func TestConfigShow(t *testing.T) {
	setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"(none - using defaults)", "display:", "overflow_policy: drop_oldest"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestConfigInit(t *testing.T) {
	configDir := setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	path := filepath.Join(configDir, "config.yaml")
	if !strings.Contains(output, path) {
		t.Errorf("output = %q, want path %q", output, path)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if !strings.HasPrefix(string(body), "# prism configuration") {
		t.Errorf("config file missing header:\n%s", body)
	}

	// A second init must not overwrite the file
	if _, err := executeCommand(rootCmd, "config", "init"); err == nil {
		t.Error("expected error when config file already exists")
	}
}

func TestConfigSet(t *testing.T) {
	configDir := setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "config", "set", "display.fps", "60")
	if err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	if !strings.Contains(output, "Set display.fps = 60") {
		t.Errorf("output = %q", output)
	}

	path := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	// A fresh viper reads the value back from the file
	viper.Reset()
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	output, err = executeCommand(rootCmd, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(output, "fps: 60") {
		t.Errorf("persisted value missing:\n%s", output)
	}
	if !strings.Contains(output, path) {
		t.Errorf("output should name the config file %q:\n%s", path, output)
	}
}

func TestConfigSet_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "display.depth", "3"},
		{"wrong kind", "display.fps", "fast"},
		{"fails validation", "queue.overflow_policy", "discard_everything"},
		{"out of range", "display.fps", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configDir := setupTestEnvironment(t)

			if _, err := executeCommand(rootCmd, "config", "set", tt.key, tt.value); err == nil {
				t.Fatalf("config set %s %s succeeded, want error", tt.key, tt.value)
			}
			if _, err := os.Stat(filepath.Join(configDir, "config.yaml")); !os.IsNotExist(err) {
				t.Errorf("rejected value was written to disk (stat err = %v)", err)
			}
		})
	}
}

func TestConfigPath(t *testing.T) {
	configDir := setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if !strings.Contains(output, filepath.Join(configDir, "config.yaml")) {
		t.Errorf("output missing default path:\n%s", output)
	}
	if !strings.Contains(output, "PRISM_") {
		t.Errorf("output missing env var hint:\n%s", output)
	}
}

func TestSimulatePlans(t *testing.T) {
	th := planner.DefaultThresholds()

	tests := []struct {
		name        string
		sampled     bool
		ov          planner.Override
		wantBinary  int // first stack size planned binary, 0 for never
		wantBatched int // first stack size planned batched, 0 for never
	}{
		{"warm", true, planner.Override{}, 4, 4},
		{"cold", false, planner.Override{}, 0, 0},
		{"forced merge", true, planner.ForceMerge(planner.MergeInPlace), 4, 0},
		{"forced variant", false, planner.ForceVariant(planner.VariantBinary), 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := simulatePlans(th, tt.ov, 6, 2, tt.sampled)
			if len(rows) != 6 {
				t.Fatalf("len(rows) = %d, want 6", len(rows))
			}

			firstBinary, firstBatched := 0, 0
			for _, row := range rows {
				if firstBinary == 0 && row.plan.Variant == planner.VariantBinary {
					firstBinary = row.count
				}
				if firstBatched == 0 && row.plan.Merge == planner.MergeBatched {
					firstBatched = row.count
				}
				if len(row.reasons) != 2 {
					t.Errorf("row %d has %d reasons, want 2", row.count, len(row.reasons))
				}
			}
			if firstBinary != tt.wantBinary {
				t.Errorf("first binary at %d, want %d", firstBinary, tt.wantBinary)
			}
			if firstBatched != tt.wantBatched {
				t.Errorf("first batched at %d, want %d", firstBatched, tt.wantBatched)
			}
		})
	}
}

func TestWritePlanTable(t *testing.T) {
	th := planner.DefaultThresholds()
	var buf bytes.Buffer
	writePlanTable(&buf, th, planner.Override{}, simulatePlans(th, planner.Override{}, 2, 1, false), 200)

	out := buf.String()
	for _, want := range []string{"override auto/auto", "COUNT", "cold", "iterative", "in_place"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines != 5 {
		t.Errorf("table has %d lines, want 5 (summary, blank, header, 2 rows):\n%s", lines, out)
	}
}

func TestPlanCommand_RejectsBadFlags(t *testing.T) {
	setupTestEnvironment(t)
	t.Cleanup(func() {
		planRenderers, planCost = 8, 2
	})

	if _, err := executeCommand(rootCmd, "plan", "--renderers", "0"); err == nil {
		t.Error("expected error for --renderers 0")
	}
	planRenderers = 8
	if _, err := executeCommand(rootCmd, "plan", "--cost", "-1"); err == nil {
		t.Error("expected error for negative --cost")
	}
}
