// Package lcu bootstraps the connection to the local League Client API: it
// locates the lockfile the client writes on startup, parses the credentials
// inside it, and builds authenticated HTTP clients bound to the local port.
package lcu

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Lockfile carries the connection descriptor the client writes on startup,
// colon-separated: name:pid:port:password:protocol.
type Lockfile struct {
	Name     string
	PID      int
	Port     int
	Password string
	Protocol string
	Path     string
}

// ErrLockfileNotFound indicates no lockfile exists at any known location.
var ErrLockfileNotFound = errors.New("lockfile not found; is the client running?")

func candidatePaths() []string {
	var paths []string
	if runtime.GOOS == "windows" {
		if localApp := os.Getenv("LOCALAPPDATA"); localApp != "" {
			paths = append(paths,
				filepath.Join(localApp, "Riot Games", "Riot Client", "Config", "lockfile"),
				filepath.Join(localApp, "League of Legends", "lockfile"),
			)
		}
		return paths
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return paths
	}
	// macOS and Linux locations are both probed so one build covers both.
	paths = append(paths,
		filepath.Join(home, "Library", "Application Support", "League of Legends", "lockfile"),
		filepath.Join(home, ".local", "share", "League of Legends", "lockfile"),
	)
	return paths
}

// FindLockfile returns the first existing lockfile among the per-OS candidates.
func FindLockfile() (string, error) {
	for _, p := range candidatePaths() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", ErrLockfileNotFound
}

// ParseLockfile reads and parses a lockfile.
func ParseLockfile(path string) (Lockfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Lockfile{}, err
	}
	content := strings.TrimSpace(string(raw))
	parts := strings.Split(content, ":")
	if len(parts) != 5 {
		return Lockfile{}, fmt.Errorf("unexpected lockfile format in %s", path)
	}
	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return Lockfile{}, fmt.Errorf("invalid pid in lockfile: %w", err)
	}
	port, err := strconv.Atoi(parts[2])
	if err != nil {
		return Lockfile{}, fmt.Errorf("invalid port in lockfile: %w", err)
	}
	return Lockfile{
		Name:     parts[0],
		PID:      pid,
		Port:     port,
		Password: parts[3],
		Protocol: parts[4],
		Path:     path,
	}, nil
}

// BaseURL returns the client API origin. The client only listens on loopback.
func (l Lockfile) BaseURL() string {
	return fmt.Sprintf("https://127.0.0.1:%d", l.Port)
}
