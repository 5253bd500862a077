package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	odb "github.com/go-git/go-odb"
	"github.com/go-git/go-odb/config"
	"github.com/go-git/go-odb/internal/trace"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// globalOptions holds the flags shared by every command.
type globalOptions struct {
	gitDir  string
	config  string
	timeout time.Duration
	verbose bool
}

func newRootCommand(fs billy.Filesystem) *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:          "odb",
		Short:        "Read objects from git repositories",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&g.gitDir, "git-dir", ".git", "path to the git directory")
	flags.StringVar(&g.config, "config", "", "engine configuration file; by default the [odb] section of the repository config")
	flags.DurationVar(&g.timeout, "timeout", 0, "maximum time spent resolving an object")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "log engine activity to stderr")

	cmd.AddCommand(
		newCatFileCommand(fs, g),
		newVersionCommand(),
	)

	return cmd
}

// root returns the absolute path of the git directory.
func (g *globalOptions) root() (string, error) {
	return filepath.Abs(g.gitDir)
}

func (g *globalOptions) logger() (*zap.Logger, error) {
	if g.verbose || trace.Enabled() {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Encoding = "console"
	return cfg.Build()
}

func (g *globalOptions) options(fs billy.Filesystem, root string) (odb.Options, error) {
	if g.config == "" {
		c, err := config.ReadRepository(fs, root)
		if err != nil {
			return odb.Options{}, fmt.Errorf("reading repository config: %w", err)
		}

		return c.Options(), nil
	}

	path, err := filepath.Abs(g.config)
	if err != nil {
		return odb.Options{}, err
	}

	c, err := config.ReadFile(fs, path)
	if err != nil {
		return odb.Options{}, fmt.Errorf("reading %s: %w", g.config, err)
	}

	return c.Options(), nil
}

// newEngine builds an engine configured from the flags and the repository
// config. The returned function closes the engine and flushes the logger.
func (g *globalOptions) newEngine(fs billy.Filesystem, root string) (*odb.Engine, func() error, error) {
	o, err := g.options(fs, root)
	if err != nil {
		return nil, nil, err
	}

	log, err := g.logger()
	if err != nil {
		return nil, nil, err
	}

	o.Logger = log
	e, err := odb.NewEngine(fs, o)
	if err != nil {
		return nil, nil, err
	}

	return e, func() error {
		err := e.Close()
		_ = log.Sync()
		return err
	}, nil
}
