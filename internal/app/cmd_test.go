package app

import (
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     Command
		wantRest []string
	}{
		{"empty defaults to serve", nil, CommandServe, nil},
		{"serve", []string{"serve"}, CommandServe, nil},
		{"worker", []string{"worker"}, CommandWorker, nil},
		{"ingest all users", []string{"ingest"}, CommandIngest, nil},
		{"ingest single user", []string{"ingest", "user-1"}, CommandIngest, []string{"user-1"}},
		{"digest", []string{"digest"}, CommandDigest, nil},
		{"cleanup", []string{"cleanup"}, CommandCleanup, nil},
		{"migrate", []string{"migrate"}, CommandMigrate, nil},
		{"seed", []string{"seed"}, CommandSeed, nil},
		{"adduser with args", []string{"adduser", "alice", "alice@example.com"}, CommandAddUser, []string{"alice", "alice@example.com"}},
		{"addfeed with args", []string{"addfeed", "ACS", "JACS", "https://example.com/feed"}, CommandAddFeed, []string{"ACS", "JACS", "https://example.com/feed"}},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck, nil},
		{"unknown defaults to serve", []string{"bogus"}, CommandServe, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rest := ParseCommand(tt.args)
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
			if len(rest) != len(tt.wantRest) {
				t.Fatalf("rest = %v, want %v", rest, tt.wantRest)
			}
			for i := range rest {
				if rest[i] != tt.wantRest[i] {
					t.Errorf("rest[%d] = %q, want %q", i, rest[i], tt.wantRest[i])
				}
			}
		})
	}
}
