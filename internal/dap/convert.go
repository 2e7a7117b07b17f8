package dap

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/SkyN9ne/firefox-debugger/internal/rdp"
)

// pathToURL converts an editor source path into the URL form the debuggee
// uses. Paths that already carry a scheme pass through unchanged.
func pathToURL(p string) string {
	if p == "" || strings.Contains(p, "://") {
		return p
	}
	slashed := filepath.ToSlash(p)
	if !strings.HasPrefix(slashed, "/") {
		// Windows drive path.
		slashed = "/" + slashed
	}
	return "file://" + slashed
}

// urlToSource converts a debuggee source URL into an editor source.
// Local files get a path the editor can open; remote sources keep their
// URL as a display name.
func urlToSource(url string) *Source {
	if url == "" {
		return nil
	}
	if rest, ok := strings.CutPrefix(url, "file://"); ok {
		p := filepath.FromSlash(rest)
		if len(rest) > 3 && rest[0] == '/' && rest[2] == ':' {
			// file:///C:/... carries an extra slash before the drive.
			p = filepath.FromSlash(rest[1:])
		}
		return &Source{Name: filepath.Base(p), Path: p}
	}
	return &Source{Name: path.Base(url)}
}

// mapStopReason translates the server's pause reason into the editor's
// stopped-event vocabulary.
func mapStopReason(reason string) string {
	switch reason {
	case rdp.PauseReasonBreakpoint:
		return "breakpoint"
	case rdp.PauseReasonResumeLimit:
		return "step"
	case rdp.PauseReasonException:
		return "exception"
	case rdp.PauseReasonDebugger:
		return "breakpoint"
	case rdp.PauseReasonAttached:
		return "entry"
	default:
		return "pause"
	}
}
