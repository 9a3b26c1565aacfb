package sysutil

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogLevel(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" DEBUG ", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Fatalf("SetLogLevel(%q): level = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "True", " yes ", "y", "ON"} {
		if !IsTruthy(v) {
			t.Fatalf("IsTruthy(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"", "0", "false", "no", "off", "   ", "enable"} {
		if IsTruthy(v) {
			t.Fatalf("IsTruthy(%q) = true, want false", v)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("FirstNonEmpty() = %q, want empty", got)
	}
	if got := FirstNonEmpty("", "  ", "\t"); got != "" {
		t.Fatalf("FirstNonEmpty(blanks) = %q, want empty", got)
	}
	// Original spacing of the winner is preserved.
	if got := FirstNonEmpty("", " sqlite.db ", "mysql"); got != " sqlite.db " {
		t.Fatalf("FirstNonEmpty = %q", got)
	}
	if got := FirstNonEmpty("primary", "fallback"); got != "primary" {
		t.Fatalf("FirstNonEmpty = %q, want primary", got)
	}
}
