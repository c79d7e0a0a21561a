package env_mode

import "testing"

func TestParseEnv(t *testing.T) {
	tests := map[string]ENV_MODE{
		"":            DevMode,
		"dev":         DevMode,
		"Development": DevMode,
		" prod ":      ProMode,
		"PRODUCTION":  ProMode,
		"pro":         ProMode,
		"testing":     TestMode,
		"test":        TestMode,
		"staging":     DevMode,
	}
	for in, want := range tests {
		if got := ParseEnv(in); got != want {
			t.Errorf("ParseEnv(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetMode(t *testing.T) {
	t.Setenv(ENV_MODE_KEY, "")
	prev := Mode()
	t.Cleanup(func() { SetMode(prev) })

	SetMode(ProMode)
	if got := Mode(); got != ProMode {
		t.Fatalf("Mode() = %q after SetMode(ProMode)", got)
	}
	if aliases := Mode().Aliases(); len(aliases) != 2 || aliases[1] != "prod" {
		t.Fatalf("unexpected aliases %v", aliases)
	}
}
