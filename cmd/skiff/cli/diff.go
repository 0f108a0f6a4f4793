package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/skiffchat/cli/cmd/skiff/cli/checkpoint"
	"github.com/skiffchat/cli/cmd/skiff/cli/paths"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <tag> [path]",
		Short: "Show how the workspace differs from a checkpoint",
		Long: `Compares the current workspace against the state captured at a checkpoint.
With a path, prints a line diff for that file; without one, lists files that
were added, removed, or changed since the checkpoint.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := checkpoint.ParseTag(args[0])
			if err != nil {
				return err
			}

			mgr, _, err := openManager(cmd.Context())
			if err != nil {
				return err
			}

			commit, err := mgr.ResolveCommit(tag)
			if err != nil {
				if errors.Is(err, checkpoint.ErrTagNotFound) {
					return fmt.Errorf("no checkpoint %s; run 'skiff list' to see what exists", tag)
				}
				return err
			}

			ws, err := workspaceRoot()
			if err != nil {
				return err
			}

			if len(args) == 2 {
				return diffFile(mgr, commit, ws, filepath.ToSlash(args[1]))
			}
			return diffSummary(mgr, commit, ws)
		},
	}

	return cmd
}

// diffFile prints a colorized line diff of one file between the checkpoint
// and the current workspace.
func diffFile(mgr *checkpoint.Manager, commit plumbing.Hash, workspaceRoot, relPath string) error {
	before, err := mgr.Store().FileAtCommit(commit, relPath)
	if err != nil && !errors.Is(err, object.ErrFileNotFound) {
		return err
	}

	after, err := os.ReadFile(filepath.Join(workspaceRoot, filepath.FromSlash(relPath))) //nolint:gosec // user-supplied path within their own workspace
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if before == nil && after == nil {
		return fmt.Errorf("%s exists neither in the checkpoint nor in the workspace", relPath)
	}

	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lines := dmp.DiffLinesToChars(string(before), string(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(beforeChars, afterChars, false), lines)

	changed := false
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			changed = true
			break
		}
	}
	if !changed {
		fmt.Printf("%s is unchanged\n", relPath)
		return nil
	}

	fmt.Print(dmp.DiffPrettyText(diffs))
	return nil
}

// diffSummary lists files added, removed, or changed relative to the
// checkpoint, using content comparison against the commit tree.
func diffSummary(mgr *checkpoint.Manager, commit plumbing.Hash, workspaceRoot string) error {
	store := mgr.Store()

	inCommit, err := store.FilesAtCommit(commit)
	if err != nil {
		return err
	}
	commitSet := make(map[string]struct{}, len(inCommit))
	for _, p := range inCommit {
		commitSet[p] = struct{}{}
	}

	var added, removed, changed []string

	err = filepath.Walk(workspaceRoot, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // unreadable entries are simply not compared
		}
		rel, relErr := filepath.Rel(workspaceRoot, path)
		if relErr != nil {
			return nil //nolint:nilerr
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if info.Name() == ".git" || paths.IsInfrastructurePath(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || paths.IsInfrastructurePath(rel) {
			return nil
		}

		if _, ok := commitSet[rel]; !ok {
			added = append(added, rel)
			return nil
		}
		delete(commitSet, rel)

		content, err := store.FileAtCommit(commit, rel)
		if err != nil {
			changed = append(changed, rel)
			return nil //nolint:nilerr // treat unreadable tree entries as changed
		}
		current, err := os.ReadFile(path) //nolint:gosec // walking the user's own workspace
		if err != nil || string(content) != string(current) {
			changed = append(changed, rel)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for p := range commitSet {
		removed = append(removed, p)
	}

	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(changed)

	if len(added)+len(removed)+len(changed) == 0 {
		fmt.Println("Workspace matches the checkpoint")
		return nil
	}
	for _, p := range added {
		fmt.Printf("A  %s\n", p)
	}
	for _, p := range removed {
		fmt.Printf("D  %s\n", p)
	}
	for _, p := range changed {
		fmt.Printf("M  %s\n", p)
	}
	return nil
}
