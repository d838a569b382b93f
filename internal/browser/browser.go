// Package browser opens URLs in the user's default handler.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Open launches url in the platform's default browser. The launcher
// process is started and not waited on; callers treat Open as
// fire-and-forget.
func Open(url string) error {
	name, args := launcher(runtime.GOOS, url)
	if name == "" {
		return fmt.Errorf("no URL handler for platform %s", runtime.GOOS)
	}

	// #nosec G204 -- launcher name is a fixed per-platform command
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	return nil
}

// launcher returns the platform-specific command used to open a URL.
// An empty name means the platform has no known handler.
func launcher(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "linux":
		return "xdg-open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "", nil
	}
}
