// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package cli

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want Command
	}{
		{"default", nil, CmdConsole},
		{"plain command", []string{"plain"}, CmdPlain},
		{"plain flag", []string{"--plain"}, CmdPlain},
		{"version", []string{"version"}, CmdVersion},
		{"help", []string{"help"}, CmdHelp},
		{"help flag", []string{"--help"}, CmdHelp},
		{"config path", []string{"config", "path"}, CmdConfigPath},
		{"hash", []string{"hash", "1234"}, CmdHash},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.argv)
			if err != nil {
				t.Fatalf("Parse(%v): %v", tc.argv, err)
			}
			if got.Command != tc.want {
				t.Errorf("Parse(%v).Command = %v, want %v", tc.argv, got.Command, tc.want)
			}
		})
	}
}

func TestParse_Flags(t *testing.T) {
	args, err := Parse([]string{"--offline", "--sync-url", "http://example:8990", "--config=/tmp/c.toml"})
	if err != nil {
		t.Fatal(err)
	}
	if !args.Offline || args.SyncURL != "http://example:8990" || args.ConfigPath != "/tmp/c.toml" {
		t.Errorf("args = %+v", args)
	}
}

func TestParse_Errors(t *testing.T) {
	for _, argv := range [][]string{
		{"--config"},
		{"--sync-url"},
		{"hash"},
		{"config"},
		{"config", "frobnicate"},
		{"bogus"},
		{"--bogus"},
	} {
		if _, err := Parse(argv); err == nil {
			t.Errorf("Parse(%v) should fail", argv)
		}
	}
}

func TestParse_HashCapturesPasscode(t *testing.T) {
	args, err := Parse([]string{"hash", "s3cret"})
	if err != nil {
		t.Fatal(err)
	}
	if args.Passcode != "s3cret" {
		t.Errorf("Passcode = %q", args.Passcode)
	}
}
