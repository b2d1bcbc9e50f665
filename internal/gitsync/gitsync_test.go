package gitsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slicehouse/pkg/models"
)

// initUpstream creates a local repository to sync from.
func initUpstream(t *testing.T, files map[string]string) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	commit(t, repo, dir, files, "initial settings")
	return dir, repo
}

func commit(t *testing.T, repo *git.Repository, dir string, files map[string]string, msg string) {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		_, err = wt.Add(name)
		require.NoError(t, err)
	}
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.test", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestSyncCloneAndSettings(t *testing.T) {
	upstream, _ := initUpstream(t, map[string]string{
		"pipeline.yaml": "lag_overrides:\n  daily_sales: 30s\n",
		"semantic.yaml": "name: synced\ntables:\n  - name: daily_sales\n",
	})

	s := NewSyncer(models.SyncConfig{GitURL: upstream}, t.TempDir())
	require.NoError(t, s.Sync(context.Background()))

	settings, err := s.Settings()
	require.NoError(t, err)
	assert.Equal(t, "30s", settings.LagOverrides["daily_sales"])
	assert.NotEmpty(t, s.SemanticModelPath())
}

func TestSyncPullPicksUpChanges(t *testing.T) {
	upstream, repo := initUpstream(t, map[string]string{
		"pipeline.yaml": "lag_overrides:\n  daily_sales: 30s\n",
	})

	s := NewSyncer(models.SyncConfig{GitURL: upstream}, t.TempDir())
	require.NoError(t, s.Sync(context.Background()))

	commit(t, repo, upstream, map[string]string{
		"pipeline.yaml": "lag_overrides:\n  daily_sales: 2m\n",
	}, "tighten lag")

	require.NoError(t, s.Sync(context.Background()))
	settings, err := s.Settings()
	require.NoError(t, err)
	assert.Equal(t, "2m", settings.LagOverrides["daily_sales"])

	// Syncing with nothing new upstream is not an error.
	require.NoError(t, s.Sync(context.Background()))
}

func TestSyncWithSubPath(t *testing.T) {
	upstream, _ := initUpstream(t, map[string]string{
		"warehouse/pipeline.yaml": "lag_overrides:\n  menu_performance: 1h\n",
	})

	s := NewSyncer(models.SyncConfig{GitURL: upstream, Path: "warehouse"}, t.TempDir())
	require.NoError(t, s.Sync(context.Background()))

	settings, err := s.Settings()
	require.NoError(t, err)
	assert.Equal(t, "1h", settings.LagOverrides["menu_performance"])
	assert.Empty(t, s.SemanticModelPath())
}

func TestSyncRequiresURL(t *testing.T) {
	s := NewSyncer(models.SyncConfig{}, t.TempDir())
	assert.Error(t, s.Sync(context.Background()))
}

func TestSettingsMissingFileIsEmpty(t *testing.T) {
	upstream, _ := initUpstream(t, map[string]string{"README.md": "settings live elsewhere"})

	s := NewSyncer(models.SyncConfig{GitURL: upstream}, t.TempDir())
	require.NoError(t, s.Sync(context.Background()))

	settings, err := s.Settings()
	require.NoError(t, err)
	assert.Empty(t, settings.LagOverrides)
}
