package config_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	cfg "github.com/takanoriyanagitani/go-rowdump2parquet/config"
	pw "github.com/takanoriyanagitani/go-rowdump2parquet/writer"
)

const sampleYAML string = `
compression: zstd
overwrite: fail
row_group_size: 1024
datasets:
  - name: sessions
    source: data/ga_sessions.pkl
    output: out/ga_sessions.parquet
    columns: [session_id, visit_date]
logging:
  level: debug
`

func TestDefault(t *testing.T) {
	t.Parallel()

	conf := cfg.Default()
	require.NoError(t, conf.Validate())
	assert.Equal(t, "gzip", conf.Compression)
	require.Len(t, conf.Datasets, 2)
	assert.Equal(t, "ga_sessions.pkl", conf.Datasets[0].Source)
	assert.Equal(t, "ga_hits.parquet.gz", conf.Datasets[1].Output)
}

func TestParse(t *testing.T) {
	t.Parallel()

	conf, e := cfg.Parse([]byte(sampleYAML))
	require.NoError(t, e)

	assert.Equal(t, "zstd", conf.Compression)
	assert.Equal(t, "fail", conf.Overwrite)
	assert.Equal(t, 1024, conf.RowGroupSize)
	require.Len(t, conf.Datasets, 1)
	assert.Equal(t, []string{"session_id", "visit_date"}, conf.Datasets[0].Columns)

	level, e := conf.Logging.SlogLevel()
	require.NoError(t, e)
	assert.Equal(t, slog.LevelDebug, level)

	wc, e := conf.WriteConfig()
	require.NoError(t, e)
	assert.Equal(t, pw.OverwriteFail, wc.Overwrite)
	assert.Equal(t, 1024, wc.RowGroupSize)
	assert.Len(t, wc.Options, 1)
}

func TestParseKeepsDefaultDatasets(t *testing.T) {
	t.Parallel()

	conf, e := cfg.Parse([]byte("compression: snappy\n"))
	require.NoError(t, e)
	assert.Len(t, conf.Datasets, 2)
	assert.Equal(t, "overwrite", conf.Overwrite)
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"codec", "compression: lzo\n", rp.ErrUnsupportedCompression},
		{"policy", "overwrite: maybe\n", cfg.ErrInvalidPolicy},
		{"level", "logging: {level: loud}\n", cfg.ErrInvalidLevel},
		{"dataset", "datasets: [{name: x}]\n", cfg.ErrInvalidDataset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, e := cfg.Parse([]byte(tt.doc))
			assert.ErrorIs(t, e, tt.wantErr)
		})
	}

	_, e := cfg.Parse([]byte("datasets: {not: a list}"))
	assert.Error(t, e)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	var path string = filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	conf, e := cfg.Load(path)
	require.NoError(t, e)
	assert.Equal(t, "zstd", conf.Compression)

	_, e = cfg.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, e, rp.ErrNotFound)
}

// Not parallel: mutates the process environment.
func TestFromEnv(t *testing.T) {
	var path string = filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	t.Setenv(cfg.EnvConfig, path)
	t.Setenv(cfg.EnvCompression, "snappy")
	t.Setenv(cfg.EnvOverwrite, "overwrite")
	t.Setenv(cfg.EnvLogLevel, "warn")

	conf, e := cfg.FromEnv(context.Background())
	require.NoError(t, e)
	assert.Equal(t, "snappy", conf.Compression)
	assert.Equal(t, "overwrite", conf.Overwrite)
	assert.Equal(t, "warn", conf.Logging.Level)
	assert.Len(t, conf.Datasets, 1)
}

func TestFromEnvBadFile(t *testing.T) {
	t.Setenv(cfg.EnvConfig, filepath.Join(t.TempDir(), "absent.yaml"))

	_, e := cfg.FromEnv(context.Background())
	assert.ErrorIs(t, e, rp.ErrNotFound)
}

func TestFromEnvBadOverride(t *testing.T) {
	t.Setenv(cfg.EnvConfig, "")
	t.Setenv(cfg.EnvCompression, "lzo")

	_, e := cfg.FromEnv(context.Background())
	assert.ErrorIs(t, e, rp.ErrUnsupportedCompression)
}

const cleanYAML string = `
datasets:
  - name: sessions
    source: ga_sessions.pkl
    output: ga_sessions.parquet
  - name: hits
    source: ga_hits.pkl
    output: ga_hits.parquet
clean:
  enabled: true
  rules:
    sessions:
      drop_duplicates: true
      dates: [visit_date]
      types: {visit_number: int64}
      allow:
        utm_medium: [organic, cpc]
      fill: {utm_source: unknown}
      outliers: [visit_number]
`

func TestParseClean(t *testing.T) {
	t.Parallel()

	conf, e := cfg.Parse([]byte(cleanYAML))
	require.NoError(t, e)
	assert.True(t, conf.Clean.Enabled)

	sessions, found := conf.Clean.RulesFor("sessions")
	require.True(t, found)
	assert.True(t, sessions.DropDuplicates)
	assert.False(t, sessions.LowerStrings)
	assert.Equal(t, []string{"organic", "cpc"}, sessions.Allow["utm_medium"])
	assert.Equal(t, map[string]string{"visit_number": "int64"}, sessions.Types)

	hits, found := conf.Clean.RulesFor("hits")
	require.True(t, found, "hits falls back to the built-in rules")
	require.Len(t, hits.References, 1)
	assert.Equal(t, "sessions", hits.References[0].Dataset)

	_, found = conf.Clean.RulesFor("orders")
	assert.False(t, found)

	assert.False(t, cfg.Default().Clean.Enabled)
}

func TestParseCleanInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "type name",
			doc:  "clean: {enabled: true, rules: {sessions: {types: {visit_number: blob}}}}\n",
		},
		{
			name: "reference to a later dataset",
			doc: `
datasets:
  - {name: hits, source: h.pkl, output: h.parquet}
  - {name: sessions, source: s.pkl, output: s.parquet}
clean: {enabled: true}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, e := cfg.Parse([]byte(tt.doc))
			assert.ErrorIs(t, e, cfg.ErrInvalidClean)
		})
	}

	_, e := cfg.Parse([]byte(`
datasets:
  - {name: hits, source: h.pkl, output: h.parquet}
  - {name: sessions, source: s.pkl, output: s.parquet}
`))
	assert.NoError(t, e, "rules are only checked when cleaning is enabled")
}

func TestFromEnvClean(t *testing.T) {
	t.Setenv(cfg.EnvConfig, "")
	t.Setenv(cfg.EnvClean, "true")

	conf, e := cfg.FromEnv(context.Background())
	require.NoError(t, e)
	assert.True(t, conf.Clean.Enabled)

	t.Setenv(cfg.EnvClean, "sometimes")
	_, e = cfg.FromEnv(context.Background())
	assert.ErrorIs(t, e, cfg.ErrInvalidClean)
}
