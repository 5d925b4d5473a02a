package services

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/desertthunder/vinyl/internal/shared"
	cookiejar "github.com/juju/persistent-cookiejar"
	"golang.org/x/net/publicsuffix"
)

// FileJar is the CLI's [http.CookieJar] for the facade session, saved to disk after every
// change so a login survives restarts.
//
// It also keeps the listener id used for note reactions in a sidecar file, generated on first use.
type FileJar struct {
	*cookiejar.Jar

	mu       sync.Mutex
	path     string
	userPath string
	userID   string
}

// DefaultSessionPath returns the session file location under the user config dir.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "vinyl-session.json"
	}
	return filepath.Join(dir, "vinyl", "session.json")
}

// OpenFileJar loads the session at path. A missing file yields an empty jar; an empty path keeps the jar in memory.
func OpenFileJar(path string) (*FileJar, error) {
	opts := &cookiejar.Options{PublicSuffixList: publicsuffix.List, Filename: path, NoPersist: path == ""}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create session dir: %w", err)
		}
	}

	jar, err := cookiejar.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", path, err)
	}

	j := &FileJar{Jar: jar, path: path}
	if path == "" {
		return j, nil
	}

	j.userPath = path + ".user"
	data, err := os.ReadFile(j.userPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read listener id: %w", err)
	default:
		j.userID = strings.TrimSpace(string(data))
	}
	return j, nil
}

// SetCookies stores the cookies of a facade response and saves the session.
func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.Jar.SetCookies(u, cookies)
	_ = j.save()
}

// Has reports whether an unexpired cookie named name is held.
func (j *FileJar) Has(name string) bool {
	for _, c := range j.AllCookies() {
		if c.Name == name {
			return true
		}
	}
	return false
}

// UserID returns the persisted listener id, creating one if needed.
func (j *FileJar) UserID() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.userID == "" {
		j.userID = shared.GenerateID()
		if j.userPath != "" {
			_ = os.WriteFile(j.userPath, []byte(j.userID+"\n"), 0o600)
		}
	}
	return j.userID
}

// Clear drops every cookie, keeping the listener id.
func (j *FileJar) Clear() error {
	j.RemoveAll()
	return j.save()
}

func (j *FileJar) save() error {
	if j.path == "" {
		return nil
	}
	if err := j.Save(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
