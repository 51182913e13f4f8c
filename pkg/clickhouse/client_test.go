package clickhouse

import (
	"net/url"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name   string
		cfg    ClientConfig
		scheme string
		query  map[string]string
	}{
		{
			name:   "native",
			cfg:    ClientConfig{Host: "ch", Port: 9000, Database: "klinescope", User: "u", Password: "p@ss", DialTimeout: 5 * time.Second},
			scheme: "clickhouse",
			query:  map[string]string{"dial_timeout": "5s"},
		},
		{
			name: "http with async insert",
			cfg: ClientConfig{Host: "ch", Port: 8123, Database: "db", User: "u", UseHTTP: true,
				AsyncInsert: true, WaitForAsync: true, MaxExecTime: 30 * time.Second},
			scheme: "http",
			query:  map[string]string{"async_insert": "1", "wait_for_async_insert": "1", "max_execution_time": "30"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(BuildDSN(tt.cfg))
			if err != nil {
				t.Fatalf("parse dsn: %v", err)
			}
			if u.Scheme != tt.scheme || u.Hostname() != tt.cfg.Host || u.Path != "/"+tt.cfg.Database {
				t.Fatalf("unexpected dsn %s", u)
			}
			if pw, _ := u.User.Password(); pw != tt.cfg.Password {
				t.Fatalf("password not preserved: %q", pw)
			}
			for k, v := range tt.query {
				if got := u.Query().Get(k); got != v {
					t.Errorf("%s = %q want %q", k, got, v)
				}
			}
			if u.Query().Get("write_timeout") != "" {
				t.Errorf("write_timeout must not be sent")
			}
		})
	}
}
