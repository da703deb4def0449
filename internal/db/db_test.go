package db

import (
	"net/url"
	"testing"

	"github.com/matchup/apiserver/config"
)

func TestPostgresURL(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     6543,
		User:     "svc",
		Password: "p@ss/word",
		DBName:   "accounts",
	}

	raw := PostgresURL(cfg)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Scheme != "postgres" {
		t.Fatalf("unexpected scheme %q", u.Scheme)
	}
	if u.Host != "db.internal:6543" {
		t.Fatalf("unexpected host %q", u.Host)
	}
	if pw, _ := u.User.Password(); pw != "p@ss/word" {
		t.Fatalf("password not round-tripped: %q", pw)
	}
	if u.Path != "/accounts" {
		t.Fatalf("unexpected path %q", u.Path)
	}
	if got := u.Query().Get("sslmode"); got != "disable" {
		t.Fatalf("expected sslmode=disable, got %q", got)
	}

	cfg.UseSSL = true
	u, _ = url.Parse(PostgresURL(cfg))
	if got := u.Query().Get("sslmode"); got != "require" {
		t.Fatalf("expected sslmode=require, got %q", got)
	}
}
