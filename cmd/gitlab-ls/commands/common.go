// Package commands implements the gitlab-ls subcommands.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teranos/gitlab-ls/config"
	"github.com/teranos/gitlab-ls/errors"
	"github.com/teranos/gitlab-ls/internal/gitremote"
	"github.com/teranos/gitlab-ls/logger"
)

// ExitError ends the process with Code without printing anything.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// addProjectFlags registers --project and --remote on cmd.
func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("project", "p", "", "GitLab project path, e.g. group/project (default: from the git remote)")
	cmd.Flags().String("remote", gitremote.DefaultRemote, "Git remote used to find the project")
}

// resolveProject returns --project, or the project of the repository holding dir.
func resolveProject(cmd *cobra.Command, dir string) (string, error) {
	project, _ := cmd.Flags().GetString("project")
	if project != "" {
		return project, nil
	}
	remote, _ := cmd.Flags().GetString("remote")
	project, err := gitremote.ProjectFromDir(dir, remote)
	if err != nil {
		return "", err
	}
	logger.Debugw("Project detected from git remote", logger.FieldProject, project, "remote", remote)
	return project, nil
}

// loadConfig loads configuration and warns about unknown keys in the files read.
func loadConfig() (*config.Config, []string, error) {
	cfg, files, err := config.LoadWithSources()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load config")
	}
	for _, file := range files {
		unknown, err := config.UnknownKeys(file)
		if err != nil {
			continue
		}
		for _, key := range unknown {
			logger.Warnw("Unknown configuration key", "file", file, "key", key)
		}
	}
	return cfg, files, nil
}

func workingDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "failed to get working directory")
	}
	return dir, nil
}

func absDir(file string) (string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %s", file)
	}
	return filepath.Dir(abs), nil
}
