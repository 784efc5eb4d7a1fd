package loader

import (
	"errors"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"testing"
)

type memFS map[string]string

func (m memFS) ReadFile(path string) ([]byte, error) {
	s, ok := m[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return []byte(s), nil
}

func (m memFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m[path]; !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return nil, errors.New("not implemented")
}

func TestTOMLLoader(t *testing.T) {
	mfs := memFS{"/cfg.toml": `
[history]
checkpoint_threshold = 250

[history.costs]
fill = 5

[logging]
level = "debug"
`}
	got, err := NewTOMLLoaderWithFS(mfs, "/cfg.toml").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	history := got["history"].(map[string]any)
	if history["checkpoint_threshold"] != int64(250) {
		t.Errorf("checkpoint_threshold = %#v", history["checkpoint_threshold"])
	}
	if costs := history["costs"].(map[string]any); costs["fill"] != int64(5) {
		t.Errorf("costs = %#v", costs)
	}
	if got["logging"].(map[string]any)["level"] != "debug" {
		t.Errorf("logging = %#v", got["logging"])
	}
}

func TestTOMLLoaderMissingFile(t *testing.T) {
	got, err := NewTOMLLoaderWithFS(memFS{}, "/missing.toml").Load()
	if err != nil || got != nil {
		t.Errorf("Load() = %v, %v; want nil, nil", got, err)
	}
}

func TestTOMLParseError(t *testing.T) {
	mfs := memFS{"/bad.toml": "[history]\ncheckpoint_threshold = = 3\n"}
	_, err := NewTOMLLoaderWithFS(mfs, "/bad.toml").Load()

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Load() error = %v, want *ParseError", err)
	}
	if perr.Path != "/bad.toml" || perr.Line != 2 {
		t.Errorf("ParseError = %+v, want path /bad.toml line 2", perr)
	}
	if !strings.Contains(perr.Error(), "line 2") {
		t.Errorf("Error() = %q", perr.Error())
	}
}

func TestTOMLLoadFromReader(t *testing.T) {
	got, err := NewTOMLLoader("").LoadFromReader(strings.NewReader(`a = 1`))
	if err != nil || got["a"] != int64(1) {
		t.Errorf("LoadFromReader() = %v, %v", got, err)
	}
}

func TestYAMLLoader(t *testing.T) {
	mfs := memFS{"/cfg.yaml": `
history:
  checkpoint_threshold: 80
script:
  timeout: 2s
`}
	got, err := NewYAMLLoaderWithFS(mfs, "/cfg.yaml").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got["history"].(map[string]any)["checkpoint_threshold"] != 80 {
		t.Errorf("history = %#v", got["history"])
	}
	if got["script"].(map[string]any)["timeout"] != "2s" {
		t.Errorf("script = %#v", got["script"])
	}
}

func TestYAMLParseError(t *testing.T) {
	mfs := memFS{"/bad.yaml": "history: [unclosed\n"}
	_, err := NewYAMLLoaderWithFS(mfs, "/bad.yaml").Load()
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Load() error = %v, want *ParseError", err)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.yaml", "*loader.YAMLLoader"},
		{"a.YML", "*loader.YAMLLoader"},
		{"a.toml", "*loader.TOMLLoader"},
		{"config", "*loader.TOMLLoader"},
	}
	for _, tt := range tests {
		if got := reflect.TypeOf(ForFile(tt.path)).String(); got != tt.want {
			t.Errorf("ForFile(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestMerge(t *testing.T) {
	dst := map[string]any{
		"history": map[string]any{"checkpoint_threshold": 500, "high_cost": 1000},
		"logging": map[string]any{"level": "info"},
	}
	src := map[string]any{
		"history": map[string]any{"checkpoint_threshold": 10},
		"logging": "off",
		"store":   map[string]any{"path": "/tmp/x"},
	}
	got := Merge(dst, src)
	want := map[string]any{
		"history": map[string]any{"checkpoint_threshold": 10, "high_cost": 1000},
		"logging": "off",
		"store":   map[string]any{"path": "/tmp/x"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge() = %#v, want %#v", got, want)
	}
	if Merge(nil, nil) == nil {
		t.Error("Merge(nil, nil) returned nil map")
	}
}

func TestEnvLoader(t *testing.T) {
	l := NewEnvLoader(DefaultEnvPrefix)
	l.environ = func() []string {
		return []string{
			"PATH=/bin",
			"REWIND_LOG_LEVEL=debug",
			"REWIND_LOGGING_LEVEL=warn",
			"REWIND_SCRIPT_INSTRUCTION_LIMIT=5000",
			"REWIND_SCRIPT_TIMEOUT=250ms",
			"REWIND_STORE_IN_MEMORY=true",
			"REWIND_HISTORY_COSTS={fill: 7}",
			"REWIND_NOSECTION=1",
			"REWIND_THRESHOLD=42",
		}
	}
	got, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := map[string]any{
		"logging": map[string]any{"level": "debug"},
		"script":  map[string]any{"instruction_limit": int64(5000), "timeout": "250ms"},
		"store":   map[string]any{"in_memory": true},
		"history": map[string]any{
			"costs":                map[string]any{"fill": 7},
			"checkpoint_threshold": int64(42),
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %#v\nwant %#v", got, want)
	}
}

func TestEnvLoaderMappings(t *testing.T) {
	l := NewEnvLoaderWithMapping("APP_", nil)
	l.AddMapping("APP_DEPTH", "history.checkpoint_threshold")
	l.environ = func() []string { return []string{"APP_DEPTH=9"} }

	got, _ := l.Load()
	if got["history"].(map[string]any)["checkpoint_threshold"] != int64(9) {
		t.Errorf("Load() = %#v", got)
	}

	l.RemoveMapping("APP_DEPTH")
	got, _ = l.Load()
	if len(got) != 0 {
		t.Errorf("Load() after RemoveMapping = %#v, want empty", got)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", ""},
		{"yes", true},
		{"OFF", false},
		{"1", int64(1)},
		{"0", int64(0)},
		{"1.5", 1.5},
		{"3s", "3s"},
		{"[1, 2]", []any{1, 2}},
		{"{broken", "{broken"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestOSFS(t *testing.T) {
	path := t.TempDir() + "/x.toml"
	if err := os.WriteFile(path, []byte("k = 'v'"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := NewTOMLLoader(path).Load()
	if err != nil || got["k"] != "v" {
		t.Errorf("Load() = %v, %v", got, err)
	}
}
