package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	cl "github.com/takanoriyanagitani/go-rowdump2parquet/clean"
	pw "github.com/takanoriyanagitani/go-rowdump2parquet/writer"
)

var (
	ErrNoDatasets     error = errors.New("no datasets configured")
	ErrInvalidDataset error = errors.New("invalid dataset entry")
	ErrInvalidPolicy  error = errors.New("invalid overwrite policy")
	ErrInvalidLevel   error = errors.New("invalid log level")
	ErrInvalidClean   error = errors.New("invalid clean section")
)

type Config struct {
	Compression  string          `yaml:"compression"`
	Overwrite    string          `yaml:"overwrite"`
	RowGroupSize int             `yaml:"row_group_size"`
	Datasets     []DatasetConfig `yaml:"datasets"`
	Clean        CleanConfig     `yaml:"clean"`
	Logging      LoggingConfig   `yaml:"logging"`
}

// CleanConfig enables the measured clean step between load and convert.
// Datasets without an entry in Rules use clean.DefaultRules.
type CleanConfig struct {
	Enabled bool                `yaml:"enabled"`
	Rules   map[string]cl.Rules `yaml:"rules"`
}

func (c CleanConfig) RulesFor(name string) (cl.Rules, bool) {
	if r, found := c.Rules[name]; found {
		return r, true
	}
	r, found := cl.DefaultRules()[name]
	return r, found
}

type DatasetConfig struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Output string `yaml:"output"`
	// Columns, when set, adds a projected reload of those columns.
	Columns []string `yaml:"columns"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		Compression:  pw.CompressionDefault,
		Overwrite:    string(pw.OverwriteAlways),
		RowGroupSize: pw.WriteConfigDefault.RowGroupSize,
		Datasets: []DatasetConfig{
			{Name: "sessions", Source: "ga_sessions.pkl", Output: "ga_sessions.parquet.gz"},
			{Name: "hits", Source: "ga_hits.pkl", Output: "ga_hits.parquet.gz"},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Parse overlays the YAML document on the defaults. A document that lists
// datasets replaces the default pair.
func Parse(data []byte) (Config, error) {
	var conf Config = Default()
	conf.Datasets = nil

	e := yaml.Unmarshal(data, &conf)
	if nil != e {
		return conf, fmt.Errorf("error parsing config: %w", e)
	}
	if 0 == len(conf.Datasets) {
		conf.Datasets = Default().Datasets
	}
	return conf, conf.Validate()
}

func Load(path string) (Config, error) {
	data, e := os.ReadFile(path)
	if nil != e {
		return Config{}, fmt.Errorf("error reading config file: %w", rp.Classify(e))
	}
	return Parse(data)
}

func (c Config) Validate() error {
	if 0 == len(c.Datasets) {
		return ErrNoDatasets
	}
	for i, ds := range c.Datasets {
		if "" == ds.Name || "" == ds.Source || "" == ds.Output {
			return fmt.Errorf("%w: #%d needs name, source and output", ErrInvalidDataset, i)
		}
	}

	_, e := pw.CompOptMap.Lookup(c.Compression)
	if nil != e {
		return e
	}

	switch pw.OverwritePolicy(c.Overwrite) {
	case pw.OverwriteAlways, pw.OverwriteFail:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPolicy, c.Overwrite)
	}

	e = c.validateClean()
	if nil != e {
		return e
	}

	_, e = c.Logging.SlogLevel()
	return e
}

// validateClean checks the rules of every configured dataset. A reference
// must name a dataset processed earlier in the run.
func (c Config) validateClean() error {
	if !c.Clean.Enabled {
		return nil
	}
	var earlier map[string]struct{} = make(map[string]struct{}, len(c.Datasets))
	for _, ds := range c.Datasets {
		r, found := c.Clean.RulesFor(ds.Name)
		if found {
			e := r.Validate()
			if nil != e {
				return fmt.Errorf("%w: %s: %w", ErrInvalidClean, ds.Name, e)
			}
			for _, ref := range r.References {
				if _, ok := earlier[ref.Dataset]; !ok {
					return fmt.Errorf(
						"%w: %s references %q, which is not an earlier dataset",
						ErrInvalidClean, ds.Name, ref.Dataset,
					)
				}
			}
		}
		earlier[ds.Name] = struct{}{}
	}
	return nil
}

// WriteConfig builds the parquet writer configuration for this run.
func (c Config) WriteConfig() (pw.WriteConfig, error) {
	var wc pw.WriteConfig = pw.WriteConfigDefault.
		WithOverwrite(pw.OverwritePolicy(c.Overwrite)).
		WithRowGroupSize(c.RowGroupSize)
	return wc.AddCompressOption(c.Compression)
}
