package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

const validJSON = `{
  "telegram": {"token": "123:abc", "poll_timeout": "10s"},
  "logging": {"level": "INFO", "console": true, "file": {"enabled": false, "path": ""}},
  "notification": {
    "enabled": true,
    "max_pending_per_user": 3,
    "triggers": {
      "match_queue": {"enabled": true, "tier": 0, "timeout_seconds": 120, "dm_template": "Reply !ready"},
      "role_retention": {"enabled": true, "tier": 2, "timeout_seconds": 86400, "dm_template": "Reply !active"}
    }
  }
}`

func TestLoadValidJSON(t *testing.T) {
	m := NewManager(writeFile(t, "config.json", validJSON))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	trig, ok := cfg.Notification.Triggers["match_queue"]
	if !ok || trig.TimeoutSeconds != 120 {
		t.Fatalf("match_queue trigger = %+v (ok=%v)", trig, ok)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return committed config")
	}
}

func TestLoadYAML(t *testing.T) {
	yaml := `
telegram:
  token: "123:abc"
  poll_timeout: 10s
logging:
  level: DEBUG
  console: true
  file:
    enabled: false
    path: ""
notification:
  enabled: true
  max_pending_per_user: 2
  triggers:
    pre_game:
      enabled: true
      tier: 1
      timeout_seconds: 300
      dm_template: "{match_name} soon, reply !ready"
`
	m := NewManager(writeFile(t, "config.yaml", yaml))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
	if cfg.Notification.Triggers["pre_game"].TimeoutSeconds != 300 {
		t.Fatalf("trigger = %+v", cfg.Notification.Triggers["pre_game"])
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	bad := strings.Replace(validJSON, `"telegram"`, `"mystery": 1, "telegram"`, 1)
	m := NewManager(writeFile(t, "config.json", bad))
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	m := NewManager(writeFile(t, "config.json", validJSON+`{"x":1}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestValidateRequiresTimeoutAndTemplate(t *testing.T) {
	nc := NotificationConfig{
		Enabled: true,
		Triggers: map[string]TriggerConfig{
			"match_queue": {Enabled: true, DMTemplate: "x"},
		},
	}
	if err := nc.Validate(); err == nil {
		t.Fatal("missing timeout accepted")
	}

	nc.Triggers["match_queue"] = TriggerConfig{Enabled: true, TimeoutSeconds: 60}
	if err := nc.Validate(); err == nil {
		t.Fatal("missing template accepted")
	}

	nc.Triggers["match_queue"] = TriggerConfig{Enabled: true, TimeoutSeconds: 60, DMTemplate: "x"}
	if err := nc.Validate(); err != nil {
		t.Fatalf("valid trigger rejected: %v", err)
	}
}

func TestValidateCustomTypeNeedsKeyword(t *testing.T) {
	nc := NotificationConfig{
		Enabled: true,
		Triggers: map[string]TriggerConfig{
			"tournament_ping": {Enabled: true, TimeoutSeconds: 60, DMTemplate: "x"},
		},
	}
	if err := nc.Validate(); err == nil {
		t.Fatal("custom type without keyword accepted")
	}
	nc.Triggers["tournament_ping"] = TriggerConfig{
		Enabled: true, TimeoutSeconds: 60, DMTemplate: "x", ConfirmKeyword: "!in",
	}
	if err := nc.Validate(); err != nil {
		t.Fatalf("keyworded custom type rejected: %v", err)
	}
}

func TestValidateSkipsDisabledTriggers(t *testing.T) {
	nc := NotificationConfig{
		Triggers: map[string]TriggerConfig{
			"match_queue": {Enabled: false},
		},
	}
	if err := nc.Validate(); err != nil {
		t.Fatalf("disabled trigger rejected: %v", err)
	}
}

func TestDefaultConfirmKeywords(t *testing.T) {
	cases := map[string]string{
		"match_queue":    "!ready",
		"pre_game":       "!ready",
		"role_retention": "!active",
		"custom":         "",
	}
	for typ, want := range cases {
		if got := DefaultConfirmKeyword(typ); got != want {
			t.Fatalf("keyword(%s) = %q, want %q", typ, got, want)
		}
	}
	// Explicit keyword wins over the default.
	tc := TriggerConfig{ConfirmKeyword: "!go"}
	if got := tc.Keyword("match_queue"); got != "!go" {
		t.Fatalf("explicit keyword = %q", got)
	}
}

func TestParseDurationField(t *testing.T) {
	if _, err := ParseDurationField("k", "not-a-duration"); err == nil {
		t.Fatal("bad duration accepted")
	}
	d, err := ParseDurationOrDefault("k", "", 5)
	if err != nil || d != 5 {
		t.Fatalf("default not applied: %v %v", d, err)
	}
}
