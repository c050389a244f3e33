package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mantra-hq/mantra-releases-sub000/internal/config"
)

type configOptions struct {
	dataDir string
	write   bool
	force   bool
}

// runConfigCommand prints the effective configuration, or writes it to the
// config file with --write.
func runConfigCommand(args []string, out io.Writer) error {
	opts, err := parseConfigArgs(args)
	if err != nil {
		return err
	}
	if opts.dataDir == "" {
		opts.dataDir, err = config.DefaultDataDir()
		if err != nil {
			return err
		}
	}

	cfg, err := config.Load(opts.dataDir)
	if err != nil {
		return err
	}
	path := config.Path(cfg.DataDir)

	if !opts.write {
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# %s\n%s", path, data)
		return nil
	}

	if _, err := os.Stat(path); err == nil && !opts.force {
		return fmt.Errorf("config %q already exists; use --force to overwrite", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config %q: %w", path, err)
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}

func parseConfigArgs(args []string) (configOptions, error) {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	dataDir := fs.String("data-dir", "", "OpenClaw data directory (default ~/.openclaw)")
	write := fs.Bool("write", false, "write the effective config to the config file")
	force := fs.Bool("force", false, "overwrite an existing config file")

	if err := fs.Parse(args); err != nil {
		return configOptions{}, fmt.Errorf("%w\n%s", err, configUsageText())
	}
	if fs.NArg() != 0 {
		return configOptions{}, fmt.Errorf("unexpected argument %q\n%s", fs.Arg(0), configUsageText())
	}
	return configOptions{
		dataDir: strings.TrimSpace(*dataDir),
		write:   *write,
		force:   *force,
	}, nil
}

func configUsageText() string {
	return strings.TrimSpace(`
Usage:
  mantra-tui config [--data-dir <dir>] [--write [--force]]

Print the effective configuration (file values plus MANTRA_TUI_*
environment overrides) as YAML.

Flags:
  --data-dir <dir>   OpenClaw data directory (default ~/.openclaw)
  --write            Save the effective configuration to mantra-tui.yaml
  --force            Overwrite an existing mantra-tui.yaml
`)
}
