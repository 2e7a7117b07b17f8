// Package launch starts a Firefox instance with its debugger server
// enabled and establishes the wire connection to it.
package launch

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SkyN9ne/firefox-debugger/internal/rdp"
)

// Options configure a launch.
type Options struct {
	// Executable is the Firefox binary; empty means discover it.
	Executable string

	// Port is the debugger server port Firefox listens on.
	Port int

	// URL is opened in the new instance, if set.
	URL string

	// ExtraArgs are appended to the Firefox command line.
	ExtraArgs []string

	Log *zap.Logger
}

// connectRetryInterval and connectTimeout bound the post-launch dial loop:
// Firefox opens its debugger port well after the process starts.
const (
	connectRetryInterval = 200 * time.Millisecond
	connectTimeout       = 20 * time.Second
)

// Instance is a launched Firefox process and its temporary profile.
type Instance struct {
	cmd        *exec.Cmd
	profileDir string
	addr       string
	log        *zap.Logger
}

// Start discovers the executable, prepares a throwaway profile with
// remote debugging enabled, and starts the process. The caller connects
// with Connect and cleans up with Terminate.
func Start(ctx context.Context, opts Options) (*Instance, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("launch")

	executable := opts.Executable
	if executable == "" {
		found, err := FindExecutable()
		if err != nil {
			return nil, err
		}
		executable = found
	}

	profileDir, err := prepareProfile(opts.Port)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-profile", profileDir,
		"-start-debugger-server", strconv.Itoa(opts.Port),
		"-no-remote",
		"-new-instance",
	}
	args = append(args, opts.ExtraArgs...)
	if opts.URL != "" {
		args = append(args, opts.URL)
	}

	cmd := exec.CommandContext(ctx, executable, args...)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(profileDir)
		return nil, fmt.Errorf("start %s: %w", executable, err)
	}

	log.Info("firefox started",
		zap.String("executable", executable),
		zap.String("profile", profileDir),
		zap.Int("port", opts.Port),
		zap.Int("pid", cmd.Process.Pid))

	return &Instance{
		cmd:        cmd,
		profileDir: profileDir,
		addr:       net.JoinHostPort("127.0.0.1", strconv.Itoa(opts.Port)),
		log:        log,
	}, nil
}

// Connect dials the debugger server with bounded retries: the port opens
// a few seconds after process start.
func (i *Instance) Connect(ctx context.Context) (*rdp.SocketTransport, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	attempts := 0
	for {
		attempts++
		transport, err := rdp.NewSocketTransport(i.addr)
		if err == nil {
			i.log.Info("connected to debugger server",
				zap.String("addr", i.addr), zap.Int("attempts", attempts))
			return transport, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("debugger server at %s not reachable after %d attempts: %w", i.addr, attempts, err)
		case <-time.After(connectRetryInterval):
		}
	}
}

// Terminate kills the process and removes the temporary profile.
func (i *Instance) Terminate() error {
	var killErr error
	if i.cmd.Process != nil {
		killErr = i.cmd.Process.Kill()
		i.cmd.Wait()
	}
	if err := os.RemoveAll(i.profileDir); err != nil {
		i.log.Warn("profile cleanup failed", zap.Error(err))
	}
	if killErr != nil {
		return fmt.Errorf("kill firefox: %w", killErr)
	}
	return nil
}

// FindExecutable locates the Firefox binary for the current platform.
func FindExecutable() (string, error) {
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			"/Applications/Firefox.app/Contents/MacOS/firefox",
			"/Applications/Firefox Developer Edition.app/Contents/MacOS/firefox",
		}
	case "windows":
		candidates = []string{
			filepath.Join(os.Getenv("ProgramFiles"), "Mozilla Firefox", "firefox.exe"),
			filepath.Join(os.Getenv("ProgramFiles(x86)"), "Mozilla Firefox", "firefox.exe"),
		}
	default:
		for _, name := range []string{"firefox", "firefox-esr", "firefox-developer-edition"} {
			if path, err := exec.LookPath(name); err == nil {
				return path, nil
			}
		}
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no firefox executable found; set one explicitly")
}

// prepareProfile creates a throwaway profile directory whose preferences
// enable the debugger server without a connection prompt.
func prepareProfile(port int) (string, error) {
	dir := filepath.Join(os.TempDir(), "firefox-debugger-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create profile dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "user.js"), []byte(profilePrefs(port)), 0o600); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("write profile prefs: %w", err)
	}
	return dir, nil
}

func profilePrefs(port int) string {
	return fmt.Sprintf(`user_pref("devtools.debugger.remote-enabled", true);
user_pref("devtools.debugger.prompt-connection", false);
user_pref("devtools.debugger.remote-port", %d);
user_pref("devtools.chrome.enabled", true);
user_pref("browser.shell.checkDefaultBrowser", false);
user_pref("browser.sessionstore.resume_from_crash", false);
user_pref("datareporting.policy.dataSubmissionEnabled", false);
`, port)
}
