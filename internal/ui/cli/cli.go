package cli

import "flag"

const versionString = "0.4.0"
const defaultConfigPath = "./revwatch.toml"

type cliOptions struct {
	configPath string
	once       bool
	ui         bool
	verbose    bool
	version    bool
	author     string
	limit      int
}

func parseOptions(args []string) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("revwatch", flag.ContinueOnError)

	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	fs.BoolVar(&opts.once, "once", false, "Run a single poll cycle, print the changes and exit")
	fs.BoolVar(&opts.ui, "ui", false, "Enable terminal UI mode")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")
	fs.StringVar(&opts.author, "author", "", "Track the last code change of this user (overrides monitor.author)")
	fs.IntVar(&opts.limit, "limit", 0, "Maximum rows printed by -once (0 = all)")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	return opts, nil
}
