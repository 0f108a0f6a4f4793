package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Author is the signature used for mirror commits.
type Author struct {
	Name  string
	Email string
}

// ShadowStore owns a private commit-graph-backed mirror of the workspace.
// The mirror is a non-bare git repository living under the per-installation
// data directory; each checkpoint is a commit whose tree equals the
// workspace state at that instant. The store is single-owner: mutating
// operations must be externally serialized.
type ShadowStore struct {
	workspaceRoot string
	storeRoot     string
	repo          *git.Repository
	comparator    *Comparator
	author        Author
}

// InitStore creates a new shadow store at storeRoot mirroring workspaceRoot.
// Fails with ErrAlreadyInitialized if storeRoot already holds a store.
func InitStore(workspaceRoot, storeRoot string, author Author) (*ShadowStore, error) {
	if _, err := os.Stat(filepath.Join(storeRoot, gitDir)); err == nil {
		return nil, ErrAlreadyInitialized
	}

	if err := os.MkdirAll(storeRoot, 0o750); err != nil {
		return nil, &StoreError{Op: "init", Err: err}
	}

	repo, err := git.PlainInit(storeRoot, false)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryAlreadyExists) {
			return nil, ErrAlreadyInitialized
		}
		return nil, &StoreError{Op: "init", Err: err}
	}

	return &ShadowStore{
		workspaceRoot: workspaceRoot,
		storeRoot:     storeRoot,
		repo:          repo,
		comparator:    NewComparator(workspaceRoot, storeRoot),
		author:        author,
	}, nil
}

// OpenStore opens an existing shadow store. Fails with ErrNotInitialized if
// no store exists at storeRoot.
func OpenStore(workspaceRoot, storeRoot string, author Author) (*ShadowStore, error) {
	repo, err := git.PlainOpen(storeRoot)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNotInitialized
		}
		return nil, &StoreError{Op: "open", Err: err}
	}

	return &ShadowStore{
		workspaceRoot: workspaceRoot,
		storeRoot:     storeRoot,
		repo:          repo,
		comparator:    NewComparator(workspaceRoot, storeRoot),
		author:        author,
	}, nil
}

// Comparator returns the store's directory comparator. Read-only callers use
// it for the AnyModified fast gate.
func (s *ShadowStore) Comparator() *Comparator { return s.comparator }

// Root returns the store root directory.
func (s *ShadowStore) Root() string { return s.storeRoot }

// StageAndCommit runs the comparator, applies the resulting changeset to the
// mirror working copy (copy for changed/created, delete for removed), and
// commits the mirror tree with the current head as sole parent. Empty
// changesets still produce a commit; the duplication policy is decided by
// the caller, not silently here. The mtime cache is updated for every
// touched path.
func (s *ShadowStore) StageAndCommit(ctx context.Context, message string) (plumbing.Hash, *Changeset, error) {
	cs, err := s.comparator.ComputeChangeset()
	if err != nil {
		return plumbing.ZeroHash, nil, &StoreError{Op: "diff", Err: err}
	}

	worktree, err := s.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, nil, &StoreError{Op: "worktree", Err: err}
	}

	staged := make([]string, 0, len(cs.Changed)+len(cs.Created))
	staged = append(staged, cs.Changed...)
	staged = append(staged, cs.Created...)

	for _, relPath := range staged {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return plumbing.ZeroHash, cs, ctxErr
		}

		src := filepath.Join(s.workspaceRoot, relPath)
		dst := filepath.Join(s.storeRoot, relPath)
		if err := copyFile(src, dst); err != nil {
			return plumbing.ZeroHash, cs, &SyncError{Op: "copy", Path: relPath, Err: err}
		}
		if _, err := worktree.Add(filepath.ToSlash(relPath)); err != nil {
			return plumbing.ZeroHash, cs, &SyncError{Op: "stage", Path: relPath, Err: err}
		}
	}

	for _, relPath := range cs.Deleted {
		// Worktree.Remove deletes the mirror copy and drops the index entry
		// in one step.
		if _, err := worktree.Remove(filepath.ToSlash(relPath)); err != nil && !os.IsNotExist(err) {
			return plumbing.ZeroHash, cs, &SyncError{Op: "delete", Path: relPath, Err: err}
		}
	}

	sig := object.Signature{Name: s.author.Name, Email: s.author.Email, When: time.Now()}
	commitHash, err := worktree.Commit(message, &git.CommitOptions{
		Author:            &sig,
		Committer:         &sig,
		AllowEmptyCommits: true,
	})
	if err != nil {
		return plumbing.ZeroHash, cs, &StoreError{Op: "commit", Err: err}
	}

	for _, relPath := range staged {
		if err := s.comparator.Observe(relPath); err != nil {
			return plumbing.ZeroHash, cs, &SyncError{Op: "observe", Path: relPath, Err: err}
		}
	}
	for _, relPath := range cs.Deleted {
		s.comparator.Forget(relPath)
	}

	return commitHash, cs, nil
}

// ResetTo hard-resets the mirror working copy to the given commit,
// discarding any uncommitted mirror-side state. The live workspace is not
// touched; use SyncWorkspaceFrom afterwards.
func (s *ShadowStore) ResetTo(commit plumbing.Hash) error {
	worktree, err := s.repo.Worktree()
	if err != nil {
		return &StoreError{Op: "worktree", Err: err}
	}

	if err := worktree.Reset(&git.ResetOptions{Commit: commit, Mode: git.HardReset}); err != nil {
		return &StoreError{Op: "reset", Err: err}
	}
	return nil
}

// SyncWorkspaceFrom makes the live workspace match the tree of the given
// commit: every file in the tree is written out, and workspace files absent
// from the tree are deleted. Tree paths are validated with strict prefix
// checks before being joined to the workspace root; a path that would escape
// fails the sync rather than guessing. The mtime cache is rebuilt from the
// resulting workspace state.
func (s *ShadowStore) SyncWorkspaceFrom(commit plumbing.Hash) error {
	commitObj, err := s.repo.CommitObject(commit)
	if err != nil {
		return &StoreError{Op: "lookup", Err: err}
	}
	tree, err := commitObj.Tree()
	if err != nil {
		return &StoreError{Op: "tree", Err: err}
	}

	inTree := make(map[string]struct{})

	iter := tree.Files()
	defer iter.Close()
	for {
		file, iterErr := iter.Next()
		if errors.Is(iterErr, io.EOF) {
			break
		}
		if iterErr != nil {
			return &StoreError{Op: "iterate", Err: iterErr}
		}

		relPath, pathErr := treePathToRelative(file.Name)
		if pathErr != nil {
			return &SyncError{Op: "resolve", Path: file.Name, Err: pathErr}
		}
		inTree[relPath] = struct{}{}

		if err := s.writeWorkspaceFile(relPath, file); err != nil {
			return err
		}
	}

	if err := s.deleteWorkspaceExtras(inTree); err != nil {
		return err
	}

	s.comparator.ResetCache()
	for relPath := range inTree {
		if err := s.comparator.Observe(relPath); err != nil {
			return &SyncError{Op: "observe", Path: relPath, Err: err}
		}
	}

	return nil
}

// Destroy irreversibly removes the entire store, including the mirror
// working copy and its commit graph.
func (s *ShadowStore) Destroy() error {
	if err := os.RemoveAll(s.storeRoot); err != nil {
		return &StoreError{Op: "destroy", Err: err}
	}
	return nil
}

// Head returns the hash of the mirror's current head commit, or ZeroHash if
// the store has no commits yet.
func (s *ShadowStore) Head() plumbing.Hash {
	ref, err := s.repo.Head()
	if err != nil {
		return plumbing.ZeroHash
	}
	return ref.Hash()
}

// FileAtCommit reads the content of a single file from a commit's tree.
// Returns object.ErrFileNotFound if the tree has no such path.
func (s *ShadowStore) FileAtCommit(commit plumbing.Hash, relPath string) ([]byte, error) {
	commitObj, err := s.repo.CommitObject(commit)
	if err != nil {
		return nil, &StoreError{Op: "lookup", Err: err}
	}
	tree, err := commitObj.Tree()
	if err != nil {
		return nil, &StoreError{Op: "tree", Err: err}
	}

	file, err := tree.File(filepath.ToSlash(relPath))
	if err != nil {
		return nil, err
	}
	content, err := file.Contents()
	if err != nil {
		return nil, &StoreError{Op: "read", Err: err}
	}
	return []byte(content), nil
}

// FilesAtCommit lists every file path in a commit's tree.
func (s *ShadowStore) FilesAtCommit(commit plumbing.Hash) ([]string, error) {
	commitObj, err := s.repo.CommitObject(commit)
	if err != nil {
		return nil, &StoreError{Op: "lookup", Err: err}
	}
	tree, err := commitObj.Tree()
	if err != nil {
		return nil, &StoreError{Op: "tree", Err: err}
	}

	var files []string
	iter := tree.Files()
	defer iter.Close()
	for {
		file, iterErr := iter.Next()
		if errors.Is(iterErr, io.EOF) {
			break
		}
		if iterErr != nil {
			return nil, &StoreError{Op: "iterate", Err: iterErr}
		}
		files = append(files, file.Name)
	}
	return files, nil
}

// writeWorkspaceFile writes one tree file into the workspace, preserving the
// executable bit.
func (s *ShadowStore) writeWorkspaceFile(relPath string, file *object.File) error {
	absPath := filepath.Join(s.workspaceRoot, relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o750); err != nil {
		return &SyncError{Op: "mkdir", Path: relPath, Err: err}
	}

	content, err := file.Contents()
	if err != nil {
		return &SyncError{Op: "read", Path: relPath, Err: err}
	}

	perm := os.FileMode(0o644)
	if file.Mode == filemode.Executable {
		perm = 0o755
	}
	if err := os.WriteFile(absPath, []byte(content), perm); err != nil {
		return &SyncError{Op: "write", Path: relPath, Err: err}
	}
	return nil
}

// deleteWorkspaceExtras removes workspace files that are absent from the
// target tree.
func (s *ShadowStore) deleteWorkspaceExtras(inTree map[string]struct{}) error {
	var extras []string
	err := s.comparator.walkWorkspace(func(_, relPath string, _ os.FileInfo) error {
		if _, ok := inTree[relPath]; !ok {
			extras = append(extras, relPath)
		}
		return nil
	}, nil)
	if err != nil {
		return &SyncError{Op: "scan", Err: err}
	}

	for _, relPath := range extras {
		if err := os.Remove(filepath.Join(s.workspaceRoot, relPath)); err != nil && !os.IsNotExist(err) {
			return &SyncError{Op: "delete", Path: relPath, Err: err}
		}
	}
	return nil
}

// treePathToRelative converts a slash-separated git tree path into a
// workspace-relative filesystem path, rejecting anything that would escape
// the workspace root.
func treePathToRelative(treePath string) (string, error) {
	if treePath == "" {
		return "", errors.New("empty tree path")
	}
	cleaned := filepath.Clean(filepath.FromSlash(treePath))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("tree path %q escapes the workspace", treePath)
	}
	return cleaned, nil
}

// copyFile copies src to dst, creating parent directories and preserving the
// executable bit.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}

	in, err := os.Open(src) //nolint:gosec // paths come from walking the workspace
	if err != nil {
		return err
	}
	defer in.Close()

	perm := os.FileMode(0o644)
	if info.Mode()&0o111 != 0 {
		perm = 0o755
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm) //nolint:gosec // dst is inside the store root
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
