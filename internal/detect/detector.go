// Package detect diffs a revision against its first parent and produces the
// language-tagged, path-sorted change list the parser set consumes.
package detect

import (
	"context"
	"io"
	"sort"
	"unicode/utf8"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/report"
)

// Change is one detected file change. OldText/NewText carry blob content for
// the sides that exist; binary files carry neither.
type Change struct {
	Path       string
	Kind       report.ChangeKind
	Language   string
	IsBinary   bool
	SafeToRead bool
	OldText    string
	NewText    string
}

// Detector enumerates changes for a commit.
type Detector struct {
	ignore *IgnoreMatcher
}

// New creates a detector; nil globs selects the default ignore list.
func New(ignoreGlobs []string) *Detector {
	return &Detector{ignore: NewIgnoreMatcher(ignoreGlobs)}
}

// Detect lists the changes introduced by the commit identified by sha. A
// commit with no parent enumerates every tracked file as ADDED; otherwise the
// commit tree is diffed against its first parent. Output is path-sorted.
func (d *Detector) Detect(ctx context.Context, repo *gogit.Repository, sha string) ([]Change, error) {
	commit, err := repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNotFound, "revision not found").
			WithContext("commit", sha).
			Build()
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryGit, "failed to read commit tree").Build()
	}

	var changes []Change
	if commit.NumParents() == 0 {
		changes, err = d.initialCommit(ctx, tree)
	} else {
		var parent *object.Commit
		parent, err = commit.Parent(0)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryGit, "failed to resolve first parent").Build()
		}
		var parentTree *object.Tree
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryGit, "failed to read parent tree").Build()
		}
		changes, err = d.diffTrees(ctx, parentTree, tree)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

func (d *Detector) initialCommit(ctx context.Context, tree *object.Tree) ([]Change, error) {
	var changes []Change
	iter := tree.Files()
	defer iter.Close()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryGit, "failed to iterate tree files").Build()
		}
		if d.ignore.Match(file.Name) {
			continue
		}
		c := Change{Path: file.Name, Kind: report.ChangeAdded, Language: DetectLanguage(file.Name)}
		d.loadBlob(file.Blob, &c.NewText, &c)
		c.SafeToRead = !c.IsBinary
		changes = append(changes, c)
	}
	return changes, nil
}

func (d *Detector) diffTrees(ctx context.Context, parentTree, tree *object.Tree) ([]Change, error) {
	diff, err := object.DiffTreeWithOptions(ctx, parentTree, tree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryGit, "failed to diff trees").Build()
	}

	var changes []Change
	for _, entry := range diff {
		action, err := entry.Action()
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryGit, "failed to classify tree change").Build()
		}

		c := Change{}
		switch action {
		case merkletrie.Insert:
			c.Path = entry.To.Name
			c.Kind = report.ChangeAdded
		case merkletrie.Delete:
			c.Path = entry.From.Name
			c.Kind = report.ChangeDeleted
		case merkletrie.Modify:
			c.Path = entry.To.Name
			c.Kind = report.ChangeModified
		}
		if d.ignore.Match(c.Path) {
			continue
		}
		c.Language = DetectLanguage(c.Path)

		if action != merkletrie.Insert {
			if from, _, err := entry.Files(); err == nil && from != nil {
				d.loadBlob(from.Blob, &c.OldText, &c)
			}
		}
		if action != merkletrie.Delete {
			if _, to, err := entry.Files(); err == nil && to != nil {
				d.loadBlob(to.Blob, &c.NewText, &c)
			}
		}
		c.SafeToRead = !c.IsBinary
		if c.IsBinary {
			c.OldText, c.NewText = "", ""
		}
		changes = append(changes, c)
	}
	return changes, nil
}

// loadBlob reads blob content as UTF-8 text. Content that does not decode is
// marked binary and never handed to a parser.
func (d *Detector) loadBlob(blob object.Blob, dst *string, c *Change) {
	r, err := blob.Reader()
	if err != nil {
		c.IsBinary = true
		return
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		c.IsBinary = true
		return
	}
	if !utf8.Valid(data) {
		c.IsBinary = true
		*dst = ""
		return
	}
	*dst = string(data)
}
