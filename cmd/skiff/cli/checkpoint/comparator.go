package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// gitDir and skiffDir are excluded from workspace walks. The mirror's own
// metadata lives under the store root, which is also excluded when it is
// nested inside the workspace.
const (
	gitDir   = ".git"
	skiffDir = ".skiff"
)

// ModifiedTimeCache maps absolute workspace paths to their last-observed
// modification time in whole seconds since the epoch. It is updated after
// every successful stage and used as a cheap pre-check before expensive work.
type ModifiedTimeCache map[string]int64

// SkippedPath records a walk entry that could not be inspected, together
// with the reason. Skipped entries are surfaced to the caller rather than
// silently dropped.
type SkippedPath struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Changeset is the result of a full three-way comparison between the live
// workspace and the mirror working copy. Paths are workspace-relative.
type Changeset struct {
	Changed []string
	Created []string
	Deleted []string
	Skipped []SkippedPath
}

// Empty reports whether the changeset carries no staged work. Skipped
// entries do not count as work.
func (c *Changeset) Empty() bool {
	return len(c.Changed) == 0 && len(c.Created) == 0 && len(c.Deleted) == 0
}

// Comparator detects what changed between the live workspace and the mirror
// without reading file contents. Mtime comparison uses whole-second
// granularity and strict greater-than; two edits within the same second are
// indistinguishable. Content hashing would be the natural strengthening.
type Comparator struct {
	workspaceRoot string
	mirrorRoot    string
	cache         ModifiedTimeCache
}

// NewComparator creates a comparator over the given workspace and mirror
// working copy, starting with an empty mtime cache.
func NewComparator(workspaceRoot, mirrorRoot string) *Comparator {
	return &Comparator{
		workspaceRoot: workspaceRoot,
		mirrorRoot:    mirrorRoot,
		cache:         make(ModifiedTimeCache),
	}
}

// AnyModified is the fast gate used before triggering a checkpoint. It
// forward-walks the live tree comparing each file's mtime against the cache;
// a path absent from the cache, or with a strictly greater mtime, returns
// true immediately. If the forward walk finds nothing, a reverse walk over
// the mirror detects deletions. Returns false only if both walks complete
// clean.
func (c *Comparator) AnyModified() (bool, error) {
	modified := false

	err := c.walkWorkspace(func(absPath, _ string, info os.FileInfo) error {
		cached, ok := c.cache[absPath]
		if !ok || info.ModTime().Unix() > cached {
			modified = true
			return filepath.SkipAll
		}
		return nil
	}, nil)
	if err != nil {
		return false, fmt.Errorf("walking workspace: %w", err)
	}
	if modified {
		return true, nil
	}

	err = c.walkMirror(func(_, relPath string, _ os.FileInfo) error {
		if _, statErr := os.Lstat(filepath.Join(c.workspaceRoot, relPath)); os.IsNotExist(statErr) {
			modified = true
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("walking mirror: %w", err)
	}

	return modified, nil
}

// ComputeChangeset performs the full three-way comparison producing explicit
// path sets. Entries that cannot be stat'd are recorded under Skipped.
func (c *Comparator) ComputeChangeset() (*Changeset, error) {
	cs := &Changeset{}

	err := c.walkWorkspace(func(absPath, relPath string, info os.FileInfo) error {
		mirrorPath := filepath.Join(c.mirrorRoot, relPath)
		_, statErr := os.Lstat(mirrorPath)
		switch {
		case os.IsNotExist(statErr):
			cs.Created = append(cs.Created, relPath)
		case statErr != nil:
			cs.Skipped = append(cs.Skipped, SkippedPath{Path: relPath, Reason: statErr.Error()})
		default:
			cached, ok := c.cache[absPath]
			if !ok || info.ModTime().Unix() > cached {
				cs.Changed = append(cs.Changed, relPath)
			}
		}
		return nil
	}, cs)
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}

	err = c.walkMirror(func(_, relPath string, _ os.FileInfo) error {
		_, statErr := os.Lstat(filepath.Join(c.workspaceRoot, relPath))
		switch {
		case os.IsNotExist(statErr):
			cs.Deleted = append(cs.Deleted, relPath)
		case statErr != nil:
			cs.Skipped = append(cs.Skipped, SkippedPath{Path: relPath, Reason: statErr.Error()})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking mirror: %w", err)
	}

	return cs, nil
}

// Observe stats the workspace file and records its mtime in the cache.
// Called after each successful stage so the next AnyModified sees the file
// as clean.
func (c *Comparator) Observe(relPath string) error {
	absPath := filepath.Join(c.workspaceRoot, relPath)
	info, err := os.Lstat(absPath)
	if err != nil {
		return fmt.Errorf("observing %s: %w", relPath, err)
	}
	c.cache[absPath] = info.ModTime().Unix()
	return nil
}

// Forget drops a path from the cache. Called when a file is deleted from
// both trees.
func (c *Comparator) Forget(relPath string) {
	delete(c.cache, filepath.Join(c.workspaceRoot, relPath))
}

// ResetCache discards every cached observation. Used after a workspace
// resync, which rewrites file mtimes wholesale.
func (c *Comparator) ResetCache() {
	c.cache = make(ModifiedTimeCache)
}

// walkFn receives the absolute path, the workspace-relative path, and the
// file info for each regular file visited.
type walkFn func(absPath, relPath string, info os.FileInfo) error

// walkWorkspace walks the live tree, excluding .git and .skiff directories
// at any depth (a vendored checkout's .git must not be staged) and the
// mirror store root when it is nested inside the workspace. Unreadable
// entries are appended to cs.Skipped when cs is non-nil, otherwise silently
// passed over (the fast gate cannot stage them anyway).
func (c *Comparator) walkWorkspace(fn walkFn, cs *Changeset) error {
	return filepath.Walk(c.workspaceRoot, func(path string, info os.FileInfo, walkErr error) error {
		relPath, relErr := filepath.Rel(c.workspaceRoot, path)
		if relErr != nil {
			return nil //nolint:nilerr // Paths we cannot make relative are outside our tree
		}
		if walkErr != nil {
			if cs != nil {
				cs.Skipped = append(cs.Skipped, SkippedPath{Path: relPath, Reason: walkErr.Error()})
			}
			return nil //nolint:nilerr // Recorded as skipped; the walk continues
		}

		if info.IsDir() {
			if relPath == "." {
				return nil
			}
			if info.Name() == gitDir || info.Name() == skiffDir || path == c.mirrorRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			if cs != nil {
				cs.Skipped = append(cs.Skipped, SkippedPath{Path: relPath, Reason: "not a regular file"})
			}
			return nil
		}

		return fn(path, relPath, info)
	})
}

// walkMirror walks the mirror working copy, excluding its internal .git
// metadata directory.
func (c *Comparator) walkMirror(fn walkFn) error {
	err := filepath.Walk(c.mirrorRoot, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // Mirror-side stat failures surface on the next stage
		}

		relPath, relErr := filepath.Rel(c.mirrorRoot, path)
		if relErr != nil {
			return nil //nolint:nilerr
		}
		if info.IsDir() {
			if relPath == gitDir || strings.HasPrefix(relPath, gitDir+string(filepath.Separator)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		return fn(path, relPath, info)
	})
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// cacheSnapshot returns a copy of the cache for persistence.
func (c *Comparator) cacheSnapshot() map[string]int64 {
	out := make(map[string]int64, len(c.cache))
	for k, v := range c.cache {
		out[k] = v
	}
	return out
}

// restoreCache replaces the cache with persisted observations.
func (c *Comparator) restoreCache(entries map[string]int64) {
	c.cache = make(ModifiedTimeCache, len(entries))
	for k, v := range entries {
		c.cache[k] = v
	}
}
