package cmd

import "testing"

func TestParseChannelFlag(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		kind    string
		aud     string
		dest    string
		wantErr bool
	}{
		{
			name: "chat with colons in destination",
			raw:  "chat:customer:https://hooks.slack.com/services/T/B/X",
			kind: "chat", aud: "customer", dest: "https://hooks.slack.com/services/T/B/X",
		},
		{
			name: "email",
			raw:  "email:developer:eng@example.com",
			kind: "email", aud: "developer", dest: "eng@example.com",
		},
		{name: "missing destination", raw: "chat:customer", wantErr: true},
		{name: "empty audience", raw: "chat::https://x", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := parseChannelFlag(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseChannelFlag(%q) succeeded, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseChannelFlag(%q): %v", tt.raw, err)
			}
			if ch.Kind != tt.kind || ch.Audience != tt.aud || ch.Destination != tt.dest {
				t.Errorf("parseChannelFlag(%q) = %+v", tt.raw, ch)
			}
		})
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	want := map[string]bool{
		"serve":      false,
		"backfill":   false,
		"regenerate": false,
		"connect":    false,
		"disconnect": false,
		"migrate":    false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q is not registered", name)
		}
	}
}
