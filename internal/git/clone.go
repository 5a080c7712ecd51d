package git

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Language is the detected implementation language of a checkout.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangUnknown    Language = "unknown"
)

// Clone acquires the repository into dest. A stale checkout at dest is
// removed first so every run starts from a clean tree. GitHub HTTPS
// URLs get the configured token injected for authenticated access.
func (g *Git) Clone(ctx context.Context, repoURL, dest string) error {
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("removing stale checkout %s: %w", dest, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating checkout parent: %w", err)
	}

	cloneURL := g.injectToken(repoURL)
	cmd := exec.CommandContext(ctx, g.gitPath, "clone", cloneURL, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// injectToken rewrites a GitHub HTTPS URL to carry the token, leaving
// every other URL (file://, ssh, local paths) untouched.
func (g *Git) injectToken(repoURL string) string {
	if g.token == "" {
		return repoURL
	}
	if !strings.HasPrefix(repoURL, "https://github.com/") && !strings.HasPrefix(repoURL, "http://github.com/") {
		return repoURL
	}
	u, err := url.Parse(repoURL)
	if err != nil {
		return repoURL
	}
	u.User = url.User(g.token)
	return u.String()
}

// IsLocal reports whether the repository URL points at a local target,
// where pushes and CI polling are skipped.
func IsLocal(repoURL string) bool {
	return strings.HasPrefix(repoURL, "file://") ||
		strings.HasPrefix(repoURL, "/") ||
		strings.HasPrefix(repoURL, "./")
}

// DetectLanguage inspects a checkout for well-known project markers.
func DetectLanguage(root string) Language {
	if hasAny(root, "pyproject.toml", "requirements.txt", "setup.py") {
		return LangPython
	}
	if hasAny(root, "package.json") {
		return LangJavaScript
	}
	return LangUnknown
}

func hasAny(root string, names ...string) bool {
	found := false
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		for _, n := range names {
			if !d.IsDir() && d.Name() == n {
				found = true
				return filepath.SkipAll
			}
		}
		return nil
	})
	return found
}
