package env_mode

import (
	"os"
	"strings"
	"sync"
)

const ENV_MODE_KEY = "IMAGEPIPE_ENV"

type ENV_MODE string

const (
	DevMode  ENV_MODE = "development"
	ProMode  ENV_MODE = "production"
	TestMode ENV_MODE = "test"
)

var (
	currentEnv ENV_MODE
	modeMu     sync.Mutex
)

func ParseEnv(env string) ENV_MODE {
	normalizedEnv := strings.ToLower(strings.TrimSpace(env))
	switch normalizedEnv {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// Aliases lists the short names config files may use for the mode,
// e.g. config.prod.yaml for production.
func (m ENV_MODE) Aliases() []string {
	switch m {
	case ProMode:
		return []string{"pro", "prod"}
	case TestMode:
		return []string{"testing"}
	default:
		return []string{"dev"}
	}
}

// Mode returns the mode read from IMAGEPIPE_ENV on first use.
func Mode() ENV_MODE {
	modeMu.Lock()
	defer modeMu.Unlock()
	if currentEnv == "" {
		currentEnv = ParseEnv(os.Getenv(ENV_MODE_KEY))
	}
	return currentEnv
}

// SetMode overrides the mode for this process.
func SetMode(mode ENV_MODE) {
	modeMu.Lock()
	defer modeMu.Unlock()
	currentEnv = mode
	os.Setenv(ENV_MODE_KEY, string(mode))
}
