package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatch/internal/bid"
	"github.com/JakeFAU/bidwatch/internal/config"
	"github.com/JakeFAU/bidwatch/internal/scheduler"
)

type mockApp struct {
	mock.Mock
}

func (m *mockApp) Run(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockApp) Search(ctx context.Context, keyword string) ([]bid.Record, error) {
	args := m.Called(ctx, keyword)
	records, _ := args.Get(0).([]bid.Record)
	return records, args.Error(1)
}

func (m *mockApp) Close() {
	m.Called()
}

// useMockApp swaps the factory and captures the config the command built.
func useMockApp(t *testing.T, m *mockApp) *config.Config {
	t.Helper()
	captured := &config.Config{}
	prev := newApp
	newApp = func(cfg config.Config, _ bid.KeywordSet, _ *zap.Logger) (App, error) {
		*captured = cfg
		return m, nil
	}
	t.Cleanup(func() { newApp = prev })
	return captured
}

func setupEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("BIDWATCH_NOTIFY_KEY", "test-key")
	path := filepath.Join(t.TempDir(), "keyword.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"keyword":{"main":["培训"],"others":[],"not":["办公室"]}}`), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestWatchAppliesFlagOverrides(t *testing.T) {
	keywords := setupEnv(t)
	m := &mockApp{}
	m.On("Run", mock.Anything).Return(nil).Once()
	m.On("Close").Return().Once()
	cfg := useMockApp(t, m)

	_, err := execute(t, "watch", "--keywords", keywords, "--mode", "duration", "--duration", "30m")
	require.NoError(t, err)
	m.AssertExpectations(t)
	require.Equal(t, "duration", cfg.Scheduler.Mode)
	require.Equal(t, 30*time.Minute, cfg.Scheduler.Duration)
	require.Equal(t, keywords, cfg.Keywords)
}

func TestWatchPrintsStructuredFailure(t *testing.T) {
	keywords := setupEnv(t)
	m := &mockApp{}
	failure := &scheduler.Failure{StatusCode: 500, Body: scheduler.FailureBody{Error: "boom"}}
	m.On("Run", mock.Anything).Return(failure).Once()
	m.On("Close").Return().Once()
	useMockApp(t, m)

	out, err := execute(t, "watch", "--keywords", keywords, "--mode", "once")
	require.ErrorAs(t, err, &failure)
	require.JSONEq(t, `{"statusCode":500,"body":{"error":"boom"}}`, out)
}

func TestWatchRejectsInvalidMode(t *testing.T) {
	keywords := setupEnv(t)
	m := &mockApp{}
	useMockApp(t, m)

	_, err := execute(t, "watch", "--keywords", keywords, "--mode", "sometimes")
	require.ErrorContains(t, err, "scheduler.mode")
	m.AssertNotCalled(t, "Run", mock.Anything)
}

func TestSearchPrintsRecords(t *testing.T) {
	keywords := setupEnv(t)
	m := &mockApp{}
	m.On("Search", mock.Anything, "培训").Return([]bid.Record{
		{Title: "XX培训项目", DocType: "采购公告", Link: "http://x/1?a=1&b=2", Source: "tower"},
	}, nil).Once()
	m.On("Close").Return().Once()
	useMockApp(t, m)

	out, err := execute(t, "search", "--keywords", keywords, "培训")
	require.NoError(t, err)
	require.Contains(t, out, `"title":"XX培训项目"`)
	require.Contains(t, out, `"link":"http://x/1?a=1&b=2"`)
	m.AssertExpectations(t)
}

func TestMissingKeyAbortsBeforeApp(t *testing.T) {
	keywords := setupEnv(t)
	t.Setenv("BIDWATCH_NOTIFY_KEY", "")
	t.Setenv("key_main", "")
	m := &mockApp{}
	useMockApp(t, m)

	_, err := execute(t, "watch", "--keywords", keywords)
	require.ErrorContains(t, err, "notify.key")
	m.AssertNotCalled(t, "Run", mock.Anything)
}

func TestMissingKeywordFileAborts(t *testing.T) {
	setupEnv(t)
	m := &mockApp{}
	useMockApp(t, m)

	_, err := execute(t, "watch", "--keywords", filepath.Join(t.TempDir(), "none.json"))
	require.ErrorContains(t, err, "keyword file")
}
