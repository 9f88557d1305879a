// Package gitremote derives a GitLab project path from a repository's remote.
package gitremote

import (
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/teranos/gitlab-ls/errors"
)

// DefaultRemote is the remote consulted when none is named.
const DefaultRemote = "origin"

// ProjectFromDir opens the repository containing dir, searching parent
// directories, and returns the namespace/project path of remoteName.
func ProjectFromDir(dir, remoteName string) (string, error) {
	if remoteName == "" {
		remoteName = DefaultRemote
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", errors.Wrapf(err, "failed to open repository at %s", dir)
	}
	remote, err := repo.Remote(remoteName)
	if err != nil {
		return "", errors.WithHint(
			errors.Wrapf(err, "remote %q", remoteName),
			"pass --project namespace/project")
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", errors.Newf("remote %q has no URL", remoteName)
	}
	return ProjectFromURL(urls[0])
}

// ProjectFromURL extracts namespace/project from a clone URL. It accepts
// https://host/group/sub/project.git, ssh://git@host:22/group/project.git
// and the scp-like git@host:group/project.git.
func ProjectFromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	var path string

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", errors.Wrapf(err, "invalid remote URL %q", raw)
		}
		path = u.Path
	} else if at := strings.Index(raw, ":"); at > 0 && !strings.HasPrefix(raw, "/") {
		// scp-like syntax: [user@]host:path
		path = raw[at+1:]
	} else {
		return "", errors.Newf("remote URL %q is a local path", raw)
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	if strings.Count(path, "/") < 1 {
		return "", errors.Newf("remote URL %q has no namespace/project path", raw)
	}
	// GitLab's web paths separate the project from sub-pages with /-/
	if i := strings.Index(path, "/-/"); i >= 0 {
		path = path[:i]
	}
	return path, nil
}
