package testinfo

import (
	"github.com/go-git/go-git/v5"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
)

// GitRoot is the worktree root of the repository enclosing dir.
func GitRoot(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", breverrors.WrapAndTrace(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", breverrors.WrapAndTrace(err)
	}
	return wt.Filesystem.Root(), nil
}
