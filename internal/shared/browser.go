package shared

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// BrowserCommand returns the program and arguments that open target on goos.
//
// A non-empty browser, usually $BROWSER, takes precedence over the platform opener.
// Only absolute http and https URLs are accepted.
func BrowserCommand(goos, browser, target string) (string, []string, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", nil, fmt.Errorf("%w: refusing to open %q", ErrInvalidArgument, target)
	}

	if fields := strings.Fields(browser); len(fields) > 0 {
		return fields[0], append(fields[1:], target), nil
	}

	switch goos {
	case "darwin":
		return "open", []string{target}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{target}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}, nil
	}
	return "", nil, fmt.Errorf("unsupported platform: %s", goos)
}

// OpenBrowser starts the system browser on target, typically the Google consent page of `connect youtube`.
func OpenBrowser(target string) error {
	name, args, err := BrowserCommand(runtime.GOOS, os.Getenv("BROWSER"), target)
	if err != nil {
		return err
	}
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
