package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Run("should fill defaults", func(t *testing.T) {
		cfg, err := Parse([]byte(`
ledger:
  program_id: Subs3Program1111111111111111111111111111111
http:
  jwt_secret: s3cret
`), true)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if cfg.Ledger.Backend != BackendMemory || cfg.HTTP.Port != 8080 || cfg.Log.Level != "info" {
			t.Errorf("unexpected defaults: %+v", cfg)
		}
		if cfg.Ledger.LockTTL != 30*time.Second || cfg.HTTP.RequestTimeout != 15*time.Second {
			t.Errorf("unexpected duration defaults: %+v", cfg)
		}
		if !cfg.Runtime.Dev {
			t.Error("expected dev mode to be carried over")
		}
	})

	t.Run("should decode durations", func(t *testing.T) {
		cfg, err := Parse([]byte(`
ledger: {program_id: x, backend: memory}
http: {jwt_secret: s, request_timeout: 3s}
scheduler: {due_scan_interval: 1m}
`), false)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if cfg.HTTP.RequestTimeout != 3*time.Second || cfg.Scheduler.DueScanInterval != time.Minute {
			t.Errorf("unexpected durations: %+v", cfg)
		}
	})

	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"missing program id", `http: {jwt_secret: s}`, "ledger.program_id"},
		{"missing jwt secret", `ledger: {program_id: x}`, "http.jwt_secret"},
		{"postgres without url", `{ledger: {program_id: x, backend: postgres}, http: {jwt_secret: s}}`, "database.url"},
		{"redis without url", `{ledger: {program_id: x, backend: redis}, http: {jwt_secret: s}}`, "redis.url"},
		{"unknown backend", `{ledger: {program_id: x, backend: etcd}, http: {jwt_secret: s}}`, "memory|postgres|redis"},
		{"rate limit without redis", `{ledger: {program_id: x}, http: {jwt_secret: s, rate_limit: 5}}`, "rate_limit"},
	}
	for _, tc := range cases {
		t.Run("should reject "+tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), false)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
