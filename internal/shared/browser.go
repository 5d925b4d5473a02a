package shared

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

var getRuntime = func() string { return runtime.GOOS }

// browserCommand returns the argv that opens target. $BROWSER wins over the platform default.
func browserCommand(goos, target string) ([]string, error) {
	if custom := strings.TrimSpace(os.Getenv("BROWSER")); custom != "" {
		return append(strings.Fields(custom), target), nil
	}

	switch goos {
	case "darwin":
		return []string{"open", target}, nil
	case "linux", "freebsd", "openbsd":
		return []string{"xdg-open", target}, nil
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", target}, nil
	default:
		return nil, fmt.Errorf("%w: no browser launcher for %s", ErrNotImplemented, goos)
	}
}

// OpenBrowser starts the user's browser on the authorization page without waiting for it.
func OpenBrowser(target string) error {
	argv, err := browserCommand(getRuntime(), target)
	if err != nil {
		return err
	}
	if err := exec.Command(argv[0], argv[1:]...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
