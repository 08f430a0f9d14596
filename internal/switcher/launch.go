package switcher

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"runtime"
)

// launchCandidates lists the command forms tried per platform, in order.
// Launching is best-effort: the first candidate that starts wins, and there
// is no confirmation that the application actually became visible.
func launchCandidates(goos string) [][]string {
	switch goos {
	case "darwin":
		return [][]string{
			{"open", "-a", "CC Switch"},
			{"open", "-a", "cc-switch"},
		}
	case "windows":
		return [][]string{
			{"cmd", "/c", "start", "", "CC-Switch.exe"},
			{"cmd", "/c", "start", "", "cc-switch.exe"},
		}
	default: // linux and friends
		return [][]string{
			{"cc-switch"},
			{"CC-Switch"},
			{"flatpak", "run", "com.ccswitch.CCSwitch"},
		}
	}
}

// startProcess is swapped out in tests to avoid spawning real processes.
var startProcess = func(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	// Fire-and-forget: detach from the child so it outlives the daemon.
	return cmd.Process.Release()
}

// Open launches the cc-switch desktop application. It tries each platform
// candidate in order and returns nil as soon as one starts. When every
// candidate fails the returned error carries a user-facing recommendation
// to start the application manually.
func (r *Reader) Open(ctx context.Context) error {
	candidates := launchCandidates(runtime.GOOS)

	var lastErr error
	for _, argv := range candidates {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		if err := startProcess(cmd); err != nil {
			lastErr = err
			continue
		}
		log.Printf("[Switcher] launched cc-switch via %q", argv[0])
		return nil
	}

	return fmt.Errorf("could not launch cc-switch (%v), please start the application manually", lastErr)
}
