package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/rewind/internal/config/loader"
	"github.com/dshills/rewind/internal/engine/history"
)

const testPrefix = "RWTEST_"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadTest(t *testing.T, path string) (*Config, error) {
	t.Helper()
	return load(path, loader.NewEnvLoader(testPrefix))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.History.CheckpointThreshold != history.DefaultCheckpointThreshold {
		t.Errorf("CheckpointThreshold = %d", cfg.History.CheckpointThreshold)
	}
	if cfg.History.HighCost != history.HighCost {
		t.Errorf("HighCost = %d", cfg.History.HighCost)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "auto" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadNoFile(t *testing.T) {
	cfg, err := loadTest(t, "")
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.History.CheckpointThreshold != history.DefaultCheckpointThreshold {
		t.Errorf("CheckpointThreshold = %d", cfg.History.CheckpointThreshold)
	}

	cfg, err = loadTest(t, filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil || cfg == nil {
		t.Errorf("load(missing) = %v, %v", cfg, err)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[history]
checkpoint_threshold = 200

[history.costs]
fill = 25

[logging]
level = "debug"

[script]
timeout = "750ms"
`)
	cfg, err := loadTest(t, path)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.History.CheckpointThreshold != 200 {
		t.Errorf("CheckpointThreshold = %d, want 200", cfg.History.CheckpointThreshold)
	}
	if cfg.History.Costs["fill"] != 25 {
		t.Errorf("Costs = %v", cfg.History.Costs)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	if cfg.Script.Timeout != 750*time.Millisecond {
		t.Errorf("Timeout = %v", cfg.Script.Timeout)
	}
	// Untouched settings keep their defaults.
	if cfg.History.HighCost != history.HighCost || cfg.Script.InstructionLimit != 1_000_000 {
		t.Errorf("defaults lost: %+v %+v", cfg.History, cfg.Script)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
history:
  high_cost: 400
store:
  in_memory: true
  path: ""
`)
	cfg, err := loadTest(t, path)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.History.HighCost != 400 || !cfg.Store.InMemory {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "config.toml", "[history]\ncheckpoint_threshold = 200\n")
	t.Setenv(testPrefix+"HISTORY_CHECKPOINT_THRESHOLD", "300")
	t.Setenv(testPrefix+"LOG_LEVEL", "warn")

	cfg, err := loadTest(t, path)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.History.CheckpointThreshold != 300 {
		t.Errorf("CheckpointThreshold = %d, want 300", cfg.History.CheckpointThreshold)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadParseError(t *testing.T) {
	path := writeFile(t, "config.toml", "[history\n")
	_, err := loadTest(t, path)

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("load() error = %v, want *ParseError", err)
	}
	if perr.Path != path {
		t.Errorf("ParseError.Path = %q, want %q", perr.Path, path)
	}
}

func TestLoadUnknownKey(t *testing.T) {
	path := writeFile(t, "config.toml", "[history]\ncheckpoint_treshold = 3\n")
	if _, err := loadTest(t, path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadWrongType(t *testing.T) {
	path := writeFile(t, "config.toml", "[history]\ncheckpoint_threshold = \"lots\"\n")
	if _, err := loadTest(t, path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
		code   ValidationErrorCode
	}{
		{"threshold", func(c *Config) { c.History.CheckpointThreshold = 0 }, "history.checkpoint_threshold", ErrCodeOutOfRange},
		{"high cost", func(c *Config) { c.History.HighCost = -1 }, "history.high_cost", ErrCodeOutOfRange},
		{"op cost", func(c *Config) { c.History.Costs = map[string]int{"fill": -2} }, "history.costs.fill", ErrCodeOutOfRange},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level", ErrCodeInvalidEnum},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format", ErrCodeInvalidEnum},
		{"store path", func(c *Config) { c.Store.Path = "" }, "store.path", ErrCodeRequiredMissing},
		{"limit", func(c *Config) { c.Script.InstructionLimit = 0 }, "script.instruction_limit", ErrCodeOutOfRange},
		{"timeout", func(c *Config) { c.Script.Timeout = 0 }, "script.timeout", ErrCodeOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if verr.Path != tt.path || verr.Code != tt.code {
				t.Errorf("ValidationError = %s (%s), want %s (%s)", verr.Path, verr.Code, tt.path, tt.code)
			}
		})
	}
}

func TestValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.History.CheckpointThreshold = -1
	cfg.Logging.Level = "nope"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() succeeded")
	}
	msg := err.Error()
	if !strings.Contains(msg, "history.checkpoint_threshold") || !strings.Contains(msg, "logging.level") {
		t.Errorf("Validate() error = %q, want both failures", msg)
	}
}

func TestInMemoryStoreNeedsNoPath(t *testing.T) {
	cfg := Default()
	cfg.Store = Store{InMemory: true}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestCostTable(t *testing.T) {
	h := History{HighCost: 50, Costs: map[string]int{"fill": 3, "drawImage": 7}}
	table := h.CostTable()

	tests := []struct {
		op   history.OperationID
		want int
	}{
		{"putImageData", 50},
		{"drawImage", 7},
		{"fill", 3},
		{"stroke", history.DefaultCost},
	}
	for _, tt := range tests {
		if got := table.Cost(tt.op); got != tt.want {
			t.Errorf("Cost(%s) = %d, want %d", tt.op, got, tt.want)
		}
	}
}

func TestTimelineOptions(t *testing.T) {
	h := History{CheckpointThreshold: 42, HighCost: history.HighCost}
	tl, err := history.New(nopTarget{}, h.TimelineOptions()...)
	if err != nil {
		t.Fatalf("history.New() error = %v", err)
	}
	if tl.CheckpointThreshold() != 42 {
		t.Errorf("CheckpointThreshold() = %d, want 42", tl.CheckpointThreshold())
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.History.Costs = map[string]int{"fill": 9}
	cfg.Script.Timeout = 3 * time.Second

	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	path := writeFile(t, "config.yaml", string(data))
	back, err := loadTest(t, path)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if back.History.Costs["fill"] != 9 || back.Script.Timeout != 3*time.Second {
		t.Errorf("round trip = %+v", back)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != filepath.Join("/xdg", "rewind", "config.toml") {
		t.Errorf("DefaultPath() = %q", got)
	}
}

func TestValidationErrorCodeString(t *testing.T) {
	if ErrCodeInvalidEnum.String() != "invalid_enum" || ValidationErrorCode("").String() != "unknown" {
		t.Error("unexpected ValidationErrorCode names")
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ParseError{Path: "c.toml", Line: 3, Column: 7, Message: "expected ]"}, "config c.toml:3:7: expected ]"},
		{&ParseError{Path: "c.yaml", Line: 2, Message: "bad indent"}, "config c.yaml:2: bad indent"},
		{&ParseError{Path: "c.toml", Message: "empty key"}, "config c.toml: empty key"},
		{&ValidationError{Path: "history.checkpoint_threshold", Value: 0, Message: "must be positive"},
			"history.checkpoint_threshold = 0: must be positive"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

type nopTarget struct{}

func (nopTarget) Snapshot() (history.State, error) { return history.State{}, nil }
func (nopTarget) Restore(history.State) error      { return nil }
func (nopTarget) Apply(history.Command) error      { return nil }
