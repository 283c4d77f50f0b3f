package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"banana", true, true},
		{"banana", false, false},
		{"  true  ", false, true},
	}
	for _, tc := range cases {
		t.Setenv("AICOACH_TEST_BOOL", tc.value)
		if got := ParseBoolEnv("AICOACH_TEST_BOOL", tc.def); got != tc.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tc.value, tc.def, got, tc.want)
		}
	}
}

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("AICOACH_TEST_STR", "")
	if got := GetEnvDefault("AICOACH_TEST_STR", "fallback"); got != "fallback" {
		t.Errorf("GetEnvDefault with empty value = %q, want fallback", got)
	}
	t.Setenv("AICOACH_TEST_STR", "set")
	if got := GetEnvDefault("AICOACH_TEST_STR", "fallback"); got != "set" {
		t.Errorf("GetEnvDefault with set value = %q, want set", got)
	}
}
