package di

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/email-priority/internal/adapters/filter"
	"github.com/mikey/email-priority/internal/config"
	"github.com/mikey/email-priority/internal/core"
	"github.com/mikey/email-priority/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	flags, err := ParseFlags([]string{"-vip", "-provider", "openai", "-openai-api-key", "sk-test", "-file", "mail.eml"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, flags.VIP)
	assert.Equal(t, "openai", flags.Provider)
	assert.Equal(t, "sk-test", flags.OpenAIAPIKey)
	assert.Equal(t, "mail.eml", flags.InputFile)
	assert.Equal(t, 2048, flags.MaxBodySize)

	flags, err = ParseFlags([]string{"-recent", "5", "-entry", "abc"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 5, flags.Recent)
	assert.Equal(t, "abc", flags.EntryID)

	_, err = ParseFlags([]string{"-no-such-flag"}, io.Discard)
	assert.Error(t, err)
}

func TestCreateConfigFromFlags(t *testing.T) {
	cfg := createConfigFromFlags(&CLIFlags{Provider: "gemini", GeminiAPIKey: "g-key", GeminiModelName: "gemini-1.5-flash", MaxBodySize: 512, VIP: true})

	assert.Equal(t, "cli", cfg.GetString("server.filter_type"))
	assert.True(t, cfg.GetBool("cli.vip"))
	assert.Equal(t, config.ClassifierConfig{SentimentProvider: "gemini", EmotionProvider: "gemini"}, cfg.GetClassifier())
	assert.Equal(t, "g-key", cfg.GetGemini().APIKey)
	assert.Equal(t, 512, cfg.GetGemini().MaxBodySize)

	breakerCfg, err := cfg.GetBreaker()
	require.NoError(t, err)
	assert.False(t, breakerCfg.Enabled)
}

func TestBuildCLIContainer(t *testing.T) {
	container, err := BuildCLIContainer(&CLIFlags{Provider: "huggingface", MaxBodySize: 1024, VIP: true})
	require.NoError(t, err)

	err = container.Invoke(func(ef ports.EmailFilter, service *core.PriorityService, cfg *config.Config) {
		assert.IsType(t, &filter.CliFilter{}, ef)
		assert.NotNil(t, service)
		assert.Equal(t, 1024, cfg.GetInt("huggingface.max_body_size"))
	})
	require.NoError(t, err)
}

func TestBuildCLIContainerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("priority:\n  vip_domains:\n    - example.com\n"), 0o600))

	container, err := BuildCLIContainer(&CLIFlags{ConfigFile: path})
	require.NoError(t, err)

	err = container.Invoke(func(ef ports.EmailFilter, cfg *config.Config) {
		assert.IsType(t, &filter.CliFilter{}, ef)
		assert.Equal(t, []string{"example.com"}, cfg.GetPriority().VIPDomains)
	})
	require.NoError(t, err)
}

func TestBuildCLIContainerHistoryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("history:\n  enabled: true\n  type: memory\n  retention: 1h\n"), 0o600))

	container, err := BuildCLIContainer(&CLIFlags{ConfigFile: path})
	require.NoError(t, err)

	err = container.Invoke(func(history core.HistoryRepository, opts core.HistoryOptions) {
		require.NotNil(t, history)
		assert.True(t, opts.Enabled)
		assert.Equal(t, time.Hour, opts.Retention)

		entries, err := history.Recent(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, entries)

		if stopper, ok := history.(interface{ Stop() }); ok {
			stopper.Stop()
		}
	})
	require.NoError(t, err)
}

func TestBuildCLIContainerHistoryDisabledByDefault(t *testing.T) {
	container, err := BuildCLIContainer(&CLIFlags{Provider: "huggingface"})
	require.NoError(t, err)

	err = container.Invoke(func(history core.HistoryRepository, opts core.HistoryOptions) {
		assert.Nil(t, history)
		assert.False(t, opts.Enabled)
	})
	require.NoError(t, err)
}

func TestBuildCLIContainerUnknownProvider(t *testing.T) {
	container, err := BuildCLIContainer(&CLIFlags{Provider: "watson"})
	require.NoError(t, err)

	err = container.Invoke(func(ports.EmailFilter) {})
	assert.ErrorContains(t, err, "unsupported classifier provider: watson")
}

func TestBuildContainer(t *testing.T) {
	container, err := BuildContainer()
	require.NoError(t, err)

	err = container.Invoke(func(ef ports.EmailFilter, history core.HistoryRepository, opts core.HistoryOptions) {
		assert.IsType(t, &filter.PostfixFilter{}, ef)
		assert.Nil(t, history)
		assert.False(t, opts.Enabled)
	})
	require.NoError(t, err)
}
