package driver

import (
	"os"
	"os/exec"
	"runtime"

	"github.com/jmylchreest/promoscout/internal/logger"
)

// chromeEnv names variables checked before any search, in order.
var chromeEnv = []string{"PROMOSCOUT_CHROME_PATH", "CHROME_PATH"}

// chromeCandidates returns binary names and install paths for goos.
func chromeCandidates(goos string) []string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser", "chrome"}
	switch goos {
	case "darwin":
		return append(names,
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium")
	case "windows":
		return append(names,
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`)
	default:
		return append(names, "/usr/bin/google-chrome-stable", "/usr/bin/chromium", "/snap/bin/chromium")
	}
}

// FindChromePath returns the browser to launch: an explicit environment
// override, else the first Chrome/Chromium found on PATH or in a usual
// install location. Empty means each engine applies its own lookup (rod and
// playwright can download a browser).
func FindChromePath() string {
	for _, env := range chromeEnv {
		if path := os.Getenv(env); path != "" {
			logger.Debug("browser from environment", "env", env, "path", path)
			return path
		}
	}
	for _, name := range chromeCandidates(runtime.GOOS) {
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug("found browser binary", "name", name, "path", path)
			return path
		}
	}
	logger.Debug("no browser binary found on system")
	return ""
}
