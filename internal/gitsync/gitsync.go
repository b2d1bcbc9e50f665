// Package gitsync pulls pipeline settings from a git repository: per-table
// lag overrides and the semantic model live beside the dashboards that depend
// on them, so analysts change freshness targets with a commit.
package gitsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"gopkg.in/yaml.v3"

	"slicehouse/internal/secrets"
	"slicehouse/pkg/errors"
	"slicehouse/pkg/models"
)

// Settings is what the synced repository provides.
type Settings struct {
	LagOverrides map[string]string `yaml:"lag_overrides"`
}

const settingsFile = "pipeline.yaml"

// SemanticModelFile is the semantic model path inside the synced repository.
const SemanticModelFile = "semantic.yaml"

// Syncer clones or pulls the settings repository into a local cache.
type Syncer struct {
	cfg      models.SyncConfig
	cacheDir string
}

// NewSyncer creates a syncer caching under cacheDir.
func NewSyncer(cfg models.SyncConfig, cacheDir string) *Syncer {
	return &Syncer{cfg: cfg, cacheDir: cacheDir}
}

// Dir returns the local checkout directory.
func (s *Syncer) Dir() string {
	return filepath.Join(s.cacheDir, "sync")
}

func (s *Syncer) auth() (transport.AuthMethod, error) {
	if s.cfg.Username == "" {
		return nil, nil
	}
	token, err := secrets.Get(secrets.AccountGitToken)
	if err != nil {
		return nil, err
	}
	return &githttp.BasicAuth{Username: s.cfg.Username, Password: token}, nil
}

// Sync clones the repository on first use and pulls afterwards. An up-to-date
// checkout is not an error.
func (s *Syncer) Sync(ctx context.Context) error {
	if s.cfg.GitURL == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "no sync repository configured").
			WithSuggestions("Set sync.git_url in the config file")
	}
	auth, err := s.auth()
	if err != nil {
		return err
	}

	dir := s.Dir()
	repo, err := git.PlainOpen(dir)
	if err == git.ErrRepositoryNotExists {
		cloneOpts := &git.CloneOptions{URL: s.cfg.GitURL, Auth: auth, Depth: 1}
		if s.cfg.Branch != "" {
			cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(s.cfg.Branch)
			cloneOpts.SingleBranch = true
		}
		if _, err := git.PlainCloneContext(ctx, dir, false, cloneOpts); err != nil {
			return errors.Wrap(err, errors.ErrCodeRepoSyncFailed,
				fmt.Sprintf("failed to clone %s", s.cfg.GitURL)).
				WithContext("url", s.cfg.GitURL).AsRecoverable()
		}
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRepoNotFound,
			fmt.Sprintf("cannot open sync checkout at %s", dir))
	}

	wt, err := repo.Worktree()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRepoSyncFailed, "failed to open worktree")
	}
	err = wt.PullContext(ctx, &git.PullOptions{Auth: auth})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return errors.Wrap(err, errors.ErrCodeRepoSyncFailed,
			fmt.Sprintf("failed to pull %s", s.cfg.GitURL)).AsRecoverable()
	}
	return nil
}

// contentDir returns the directory inside the checkout holding the settings.
func (s *Syncer) contentDir() string {
	if s.cfg.Path != "" {
		return filepath.Join(s.Dir(), s.cfg.Path)
	}
	return s.Dir()
}

// Settings loads the synced pipeline settings. A missing settings file yields
// empty settings: the repository may only carry the semantic model.
func (s *Syncer) Settings() (*Settings, error) {
	path := filepath.Join(s.contentDir(), settingsFile)
	data, err := os.ReadFile(path) // #nosec G304 - path is under the managed cache
	if os.IsNotExist(err) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRepoSyncFailed,
			fmt.Sprintf("cannot read synced settings %s", path))
	}
	var out Settings
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid,
			"synced pipeline settings are not valid YAML")
	}
	return &out, nil
}

// SemanticModelPath returns the synced semantic model path, or "" when the
// repository does not carry one.
func (s *Syncer) SemanticModelPath() string {
	path := filepath.Join(s.contentDir(), SemanticModelFile)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
