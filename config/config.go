// Package config parses the node's command-line and config-file
// parameters, grounded on the teacher's config/config.go (go-flags +
// flags.IniParser pattern), trimmed to the parameters this engine's DAG
// Manager actually consumes (spec.md §6 "Parameters (configurable)").
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/mstonedag/node/dag"
	"github.com/mstonedag/node/util"
	"github.com/pkg/errors"
)

const (
	defaultConfigFilename = "mstoned.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
)

var defaultHomeDir = util.AppDataDir("mstoned", false)

var (
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(defaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// Config holds every flag this node accepts, mirroring the teacher's flat
// Config struct rather than nested per-subsystem structs.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir     string `long:"logdir" description:"Directory to log output"`
	LogLevel   string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`

	PunctualityThreshold      uint64 `long:"punctualitythreshold" description:"Max milestone-height lag a block's referenced milestone may have before it is dropped"`
	DeleteForkThreshold       uint64 `long:"deleteforkthreshold" description:"Milestone-height lag at which a non-best chain is pruned"`
	ObcEnableThresholdSeconds int64  `long:"obcenablethreshold" description:"Seconds behind live tip before the orphan container is bypassed"`
	SortitionThreshold        uint64 `long:"sortitionthreshold" description:"Minimum minerChainHeight required to carry transactions"`

	MaxGetDataSize         int   `long:"maxgetdatasize" description:"Max hashes per GetData batch"`
	MaxGetInvLength        int   `long:"maxgetinvlength" description:"Max locator length after doubling"`
	KMaxInventorySize      int   `long:"kmaxinventorysize" description:"Max hashes returned per forward Inv traversal"`
	SyncTaskTimeoutSeconds int64 `long:"synctasktimeout" description:"Seconds before an outbound sync task ages out"`
}

func defaultConfig() *Config {
	p := dag.DefaultParams()
	return &Config{
		ConfigFile: defaultConfigFile,
		DataDir:    defaultDataDir,
		LogDir:     defaultLogDir,
		LogLevel:   defaultLogLevel,

		PunctualityThreshold:      p.PunctualityThreshold,
		DeleteForkThreshold:       p.DeleteForkThreshold,
		ObcEnableThresholdSeconds: p.ObcEnableThresholdSeconds,
		SortitionThreshold:        p.SortitionThreshold,
		MaxGetDataSize:            p.MaxGetDataSize,
		MaxGetInvLength:           p.MaxGetInvLength,
		KMaxInventorySize:         p.KMaxInventorySize,
		SyncTaskTimeoutSeconds:    p.SyncTaskTimeoutSeconds,
	}
}

// Load parses command-line args over the defaults, then the config file if
// present, matching the teacher's "flags first for -C/-b, then ini file,
// then flags again so CLI wins" double-parse idiom.
func Load(args []string) (*Config, error) {
	preCfg := defaultConfig()
	preParser := flags.NewParser(preCfg, flags.Default)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	cfg.ConfigFile = preCfg.ConfigFile
	if _, err := os.Stat(cfg.ConfigFile); err == nil {
		fileParser := flags.NewParser(cfg, flags.Default)
		if err := flags.NewIniParser(fileParser).ParseFile(cfg.ConfigFile); err != nil {
			if _, ok := err.(*os.PathError); !ok {
				return nil, errors.Wrap(err, "failed parsing config file")
			}
		}
	}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PunctualityThreshold == 0 {
		return errors.New("punctualitythreshold must be positive")
	}
	if c.SortitionThreshold == 0 {
		return fmt.Errorf("sortitionthreshold must be positive")
	}
	return nil
}

// Params projects the configured thresholds into the dag package's Params
// shape, the only part of Config the engine itself depends on.
func (c *Config) Params() dag.Params {
	return dag.Params{
		PunctualityThreshold:      c.PunctualityThreshold,
		DeleteForkThreshold:       c.DeleteForkThreshold,
		ObcEnableThresholdSeconds: c.ObcEnableThresholdSeconds,
		SortitionThreshold:        c.SortitionThreshold,
		MaxGetDataSize:            c.MaxGetDataSize,
		MaxGetInvLength:           c.MaxGetInvLength,
		KMaxInventorySize:         c.KMaxInventorySize,
		SyncTaskTimeoutSeconds:    c.SyncTaskTimeoutSeconds,
	}
}
