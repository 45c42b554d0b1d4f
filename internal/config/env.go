package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once
	dotenvPath string
	dotenvErr  error
)

// LoadDotEnv loads the first .env file found from the current directory up to
// the filesystem root, so NETPILOT_* overrides can live next to a checkout.
// Existing environment variables win. Subsequent calls are no-ops.
func LoadDotEnv() error {
	// Keep unit tests hermetic unless explicitly opted in.
	if runningUnderGoTest() && os.Getenv("NETPILOT_TEST_DOTENV") != "1" {
		return nil
	}
	dotenvOnce.Do(func() {
		path := findDotEnv()
		if path == "" {
			return
		}
		if err := godotenv.Load(path); err != nil {
			dotenvErr = err
			return
		}
		dotenvPath = path
	})
	return dotenvErr
}

// DotEnvPath returns the .env file that was loaded, or "".
func DotEnvPath() string {
	return dotenvPath
}

func findDotEnv() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".env")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func runningUnderGoTest() bool {
	if strings.HasSuffix(os.Args[0], ".test") {
		return true
	}
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "-test.") {
			return true
		}
	}
	return false
}
