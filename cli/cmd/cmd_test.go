package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/relay/adapter/builtin"
	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/dispatch"
	"github.com/pithecene-io/relay/types"
)

// runApp runs the relay commands with args and captures both writers.
func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := &cli.App{
		Name:           "relay",
		Writer:         &out,
		ErrWriter:      &errOut,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			SendCommand(),
			DestinationsCommand(),
			VersionCommand("abc123"),
		},
	}
	err := app.Run(append([]string{"relay"}, args...))
	return out.String(), errOut.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	ec, ok := err.(cli.ExitCoder)
	if !ok {
		t.Fatalf("error %v is not a cli.ExitCoder", err)
	}
	return ec.ExitCode()
}

type centralServer struct {
	mu     sync.Mutex
	bodies []map[string]any
	srv    *httptest.Server
}

func newCentralServer(t *testing.T) *centralServer {
	t.Helper()
	cs := &centralServer{}
	cs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)
		cs.mu.Lock()
		cs.bodies = append(cs.bodies, body)
		cs.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(cs.srv.Close)
	return cs
}

func (cs *centralServer) count() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.bodies)
}

func TestVersionCommand_JSON(t *testing.T) {
	out, _, err := runApp(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}

	var resp VersionResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if resp.Version != types.Version || resp.Commit != "abc123" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestVersionCommand_InvalidFormat(t *testing.T) {
	_, _, err := runApp(t, "version", "--format", "xml")
	if code := exitCode(t, err); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestSendCommand_DeliversAndRendersOutcomes(t *testing.T) {
	cs := newCentralServer(t)
	path := writeConfig(t, `
app_name: relay-test
destinations: [central_api, nope]
central_api:
  base_url: `+cs.srv.URL+`
`)

	out, stderr, err := runApp(t, "send",
		"--config", path,
		"--format", "json",
		"--event-name", "App Installed",
		"--event-type", "user_acquisition",
		"--customer", "shop.myshopify.com",
		"--value", "42",
		"--info", "email=owner@example.com",
		"--payload", "app_plan=Pro",
	)
	if err != nil {
		t.Fatalf("send: %v (stderr %s)", err, stderr)
	}

	var resp SendResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if resp.RecordID == "" || resp.EventName != "App Installed" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Delivered != 1 || len(resp.Outcomes) != 2 {
		t.Fatalf("outcomes = %+v", resp.Outcomes)
	}
	if o := resp.Outcomes[0]; o.Destination != "central_api" || o.State != dispatch.StateCompleted || !o.Accepted {
		t.Errorf("central_api outcome = %+v", o)
	}
	if o := resp.Outcomes[1]; o.State != dispatch.StateSkipped || o.SkipReason != "unknown_adapter" {
		t.Errorf("nope outcome = %+v", o)
	}
	if !strings.Contains(stderr, "unknown adapter") {
		t.Errorf("stderr should carry the unknown adapter warning: %s", stderr)
	}

	if cs.count() != 1 {
		t.Fatalf("central api calls = %d, want 1", cs.count())
	}
	body, _ := cs.bodies[0]["event"].(map[string]any)
	if body["app_name"] != "relay-test" {
		t.Errorf("app_name = %v, want config default", body["app_name"])
	}
	if body["event_value"] != float64(42) {
		t.Errorf("event_value = %#v, want 42", body["event_value"])
	}
}

func TestSendCommand_DestinationsOverride(t *testing.T) {
	cs := newCentralServer(t)
	path := writeConfig(t, `
app_name: relay-test
destinations: [central_api]
central_api:
  base_url: `+cs.srv.URL+`
`)

	out, _, err := runApp(t, "send",
		"--config", path,
		"--format", "json",
		"--event-name", "Plan Changed",
		"--event-type", "conversion",
		"--customer", "shop.myshopify.com",
		"--destinations", "",
	)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	var resp SendResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Outcomes) != 0 {
		t.Errorf("empty override should dispatch nowhere, got %+v", resp.Outcomes)
	}
	if cs.count() != 0 {
		t.Errorf("central api calls = %d, want 0", cs.count())
	}
}

func TestSendCommand_ValidationErrorExitsOne(t *testing.T) {
	path := writeConfig(t, "app_name: relay-test\n")

	_, _, err := runApp(t, "send",
		"--config", path,
		"--event-name", "App Installed",
		"--event-type", "user_acquisition",
	)
	if code := exitCode(t, err); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if err == nil || !strings.Contains(err.Error(), "customer_identifier") {
		t.Errorf("err = %v, want missing customer_identifier", err)
	}
}

func TestSendCommand_MissingConfigExitsOne(t *testing.T) {
	_, _, err := runApp(t, "send",
		"--config", filepath.Join(t.TempDir(), "absent.yaml"),
		"--event-name", "x",
		"--event-type", "y",
		"--customer", "z",
	)
	if code := exitCode(t, err); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestSendCommand_BadPairExitsOne(t *testing.T) {
	path := writeConfig(t, "app_name: relay-test\n")

	_, _, err := runApp(t, "send",
		"--config", path,
		"--event-name", "x",
		"--event-type", "y",
		"--customer", "z",
		"--info", "no-equals-sign",
	)
	if code := exitCode(t, err); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestSendCommand_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, "app_name: relay-test\n")

	_, _, err := runApp(t, "send",
		"--config", path,
		"--log-level", "loud",
		"--event-name", "x",
		"--event-type", "y",
		"--customer", "z",
	)
	if code := exitCode(t, err); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestDestinationsCommand(t *testing.T) {
	path := writeConfig(t, `
destinations: [central_api, klaviyo, mystery]
central_api:
  base_url: https://central.example.com
redis:
  url: redis://localhost:6379
whitelists:
  central_api: [App Installed]
`)

	out, _, err := runApp(t, "destinations", "--config", path, "--format", "json")
	if err != nil {
		t.Fatalf("destinations: %v", err)
	}

	var rows []DestinationRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}

	got := make(map[string]DestinationRow, len(rows))
	for _, r := range rows {
		got[r.Name] = r
	}
	want := map[string]string{
		"central_api": StatusActive,
		"klaviyo":     StatusNotConfigured,
		"redis":       StatusAvailable,
		"posthog":     StatusInactive,
		"archive":     StatusInactive,
		"mystery":     StatusUnknown,
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %+v", rows)
	}
	for name, status := range want {
		if got[name].Status != status {
			t.Errorf("%s status = %q, want %q", name, got[name].Status, status)
		}
	}
	if wl := got["central_api"].Whitelist; len(wl) != 1 || wl[0] != "App Installed" {
		t.Errorf("central_api whitelist = %v", wl)
	}
	if rows[len(rows)-1].Name != "mystery" || rows[len(rows)-1].Registered {
		t.Errorf("unregistered names should come last: %+v", rows[len(rows)-1])
	}
}

func TestListDestinations_RegistrationOrder(t *testing.T) {
	cfg := (config.Config{}).WithDefaults()
	rows := ListDestinations(builtin.NewRegistry(), cfg)

	if len(rows) != len(builtin.Names) {
		t.Fatalf("rows = %d, want %d", len(rows), len(builtin.Names))
	}
	for i, name := range builtin.Names {
		if rows[i].Name != name {
			t.Errorf("rows[%d] = %q, want %q", i, rows[i].Name, name)
		}
	}
}

func TestParseScalar(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"false", false},
		{"1", int64(1)},
		{"-7", int64(-7)},
		{"2.5", 2.5},
		{"Inf", "Inf"},
		{"NaN", "NaN"},
		{"T", "T"},
		{"Pro", "Pro"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseScalar(tt.in); got != tt.want {
			t.Errorf("parseScalar(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestParsePairs(t *testing.T) {
	got, err := parsePairs([]string{"plan=Pro", " seats =3", "note=a=b"})
	if err != nil {
		t.Fatalf("parsePairs: %v", err)
	}
	if got["plan"] != "Pro" || got["seats"] != int64(3) || got["note"] != "a=b" {
		t.Errorf("got %#v", got)
	}

	if m, err := parsePairs(nil); err != nil || m != nil {
		t.Errorf("parsePairs(nil) = %v, %v", m, err)
	}
	if _, err := parsePairs([]string{"=v"}); err == nil {
		t.Error("blank key should fail")
	}
}
