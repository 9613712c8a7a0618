package config

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("NOTIFY_CHAT_ID", "42")
	t.Setenv("GITHUB_ROOT_URL", "")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("POLL_INTERVAL_MINUTES", "")
	t.Setenv("ALLOWED_USERS", "")
	t.Setenv("NOTIF_SOUND", "")
	t.Setenv("SEND_NOTIFICATIONS", "")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := &Config{
		GithubToken:      "ghp_test",
		GithubRootURL:    "https://github.com",
		TelegramBotToken: "123:abc",
		NotifyChatID:     42,
		DatabasePath:     "./data/notifier.db",
		LogLevel:         "info",
		IntervalMinutes:  MinIntervalMinutes,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRequiredVars(t *testing.T) {
	tests := []struct {
		name    string
		unset   string
		wantErr string
	}{
		{name: "github token", unset: "GITHUB_TOKEN", wantErr: "GITHUB_TOKEN"},
		{name: "telegram token", unset: "TELEGRAM_BOT_TOKEN", wantErr: "TELEGRAM_BOT_TOKEN"},
		{name: "notify chat id", unset: "NOTIFY_CHAT_ID", wantErr: "NOTIFY_CHAT_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tt.unset, "")

			_, err := Load()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadIntervalClamp(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "10", want: 10},
		{raw: "2", want: 2},
		{raw: "1", want: MinIntervalMinutes},
		{raw: "0", want: MinIntervalMinutes},
		{raw: "-5", want: MinIntervalMinutes},
		{raw: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv("POLL_INTERVAL_MINUTES", tt.raw)

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if diff := cmp.Diff(tt.want, cfg.IntervalMinutes); diff != "" {
				t.Errorf("interval mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadBools(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{raw: "1", want: true},
		{raw: "true", want: true},
		{raw: "TRUE", want: true},
		{raw: "yes", want: true},
		{raw: "on", want: true},
		{raw: "", want: false},
		{raw: "0", want: false},
		{raw: "false", want: false},
		{raw: "maybe", want: false},
	}

	for _, tt := range tests {
		t.Run("value "+tt.raw, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv("NOTIF_SOUND", tt.raw)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.NotifSound != tt.want {
				t.Errorf("NotifSound = %v, want %v", cfg.NotifSound, tt.want)
			}
		})
	}
}

func TestLoadAllowedUsers(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ALLOWED_USERS", "100, 200,,300")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]int64{100, 200, 300}, cfg.AllowedUsers); diff != "" {
		t.Errorf("allowed users mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAllowedUsersInvalid(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ALLOWED_USERS", "100,bob")

	if _, err := Load(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestIsUserAllowed(t *testing.T) {
	open := &Config{}
	if !open.IsUserAllowed(7) {
		t.Error("empty allow list should permit everyone")
	}

	restricted := &Config{AllowedUsers: []int64{100, 200}}
	if !restricted.IsUserAllowed(200) {
		t.Error("listed user should be allowed")
	}
	if restricted.IsUserAllowed(300) {
		t.Error("unlisted user should be denied")
	}
}
