package zotero

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"zotindex/internal/domain"
)

// DatabaseFile is the name of the Zotero database inside its data directory.
const DatabaseFile = "zotero.sqlite"

// Env is the part of the process environment the locator depends on.
type Env struct {
	GOOS     string
	Home     string
	Username string
}

// PathRule lists the candidate database paths for one platform family.
type PathRule struct {
	Match      func(goos string) bool
	Candidates func(env Env) []string
}

// DefaultRules are evaluated top to bottom; the first rule whose Match
// accepts the platform supplies the candidates.
var DefaultRules = []PathRule{
	{
		Match: func(goos string) bool { return goos == "darwin" },
		Candidates: func(env Env) []string {
			return []string{filepath.Join(env.Home, "Zotero", DatabaseFile)}
		},
	},
	{
		Match: func(goos string) bool { return goos == "windows" },
		Candidates: func(env Env) []string {
			return []string{
				filepath.Join(env.Home, "Zotero", DatabaseFile),
				filepath.Join(env.Home, "Documents and Settings", env.Username, "Zotero", DatabaseFile),
			}
		},
	},
	{
		Match: func(string) bool { return true },
		Candidates: func(env Env) []string {
			return []string{filepath.Join(env.Home, "Zotero", DatabaseFile)}
		},
	},
}

// CandidatePaths returns the ordered candidate paths for env.
func CandidatePaths(env Env) []string {
	for _, rule := range DefaultRules {
		if rule.Match(env.GOOS) {
			return rule.Candidates(env)
		}
	}
	return nil
}

// Locate returns the first candidate for which exists reports true. When
// none exists the error wraps domain.ErrNotFound and names the paths tried.
func Locate(env Env, exists func(path string) bool) (string, error) {
	candidates := CandidatePaths(env)
	for _, path := range candidates {
		if exists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: Zotero database not found (tried %v)", domain.ErrNotFound, candidates)
}

// Available reports whether a local database can be located.
func Available(env Env, exists func(path string) bool) bool {
	_, err := Locate(env, exists)
	return err == nil
}

// FileExists is the filesystem existence check used outside of tests.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CurrentEnv captures the locator inputs from the running process.
func CurrentEnv(goos string) (Env, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Env{}, fmt.Errorf("%w: cannot determine home directory: %v", domain.ErrConfiguration, err)
	}
	return Env{GOOS: goos, Home: home, Username: os.Getenv("USERNAME")}, nil
}

// FindInDir searches a custom Zotero data directory for the database file,
// preferring the shallowest match.
func FindInDir(dir string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), "**/"+DatabaseFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: data directory %s", domain.ErrNotFound, dir)
		}
		return "", fmt.Errorf("failed to search %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no %s under %s", domain.ErrNotFound, DatabaseFile, dir)
	}

	sort.Slice(matches, func(i, j int) bool {
		di, dj := depth(matches[i]), depth(matches[j])
		if di != dj {
			return di < dj
		}
		return matches[i] < matches[j]
	})
	return filepath.Join(dir, filepath.FromSlash(matches[0])), nil
}

func depth(p string) int {
	n := 0
	for _, r := range p {
		if r == '/' {
			n++
		}
	}
	return n
}

// Resolve turns a configured path into a database file path. An empty path
// falls back to Locate; a directory is searched with FindInDir.
func Resolve(path string, env Env) (string, error) {
	if path == "" {
		return Locate(env, FileExists)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return "", err
	}
	if info.IsDir() {
		return FindInDir(path)
	}
	return path, nil
}
