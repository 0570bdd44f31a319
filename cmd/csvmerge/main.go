// Command csvmerge merges CSV files on a key column. Files are applied in
// argument order: for rows sharing a key, later files overwrite earlier
// values column by column.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/csvmerge/internal/config"
	"github.com/JonMunkholm/csvmerge/internal/core"
	"github.com/JonMunkholm/csvmerge/internal/history"
	"github.com/JonMunkholm/csvmerge/internal/logging"
	"github.com/JonMunkholm/csvmerge/internal/profile"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	// A missing .env is normal for the CLI.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	output       string
	profile      string
	profilesFile string
	keyColumn    string
	delimiter    string
	quote        string
	onMalformed  string
	noFilter     bool
	keyContains  string
	minLengthCol string
	minLength    int
	lf           bool
	verbose      bool
	logFormat    string
	help         bool
	files        []string
	minLengthSet bool
}

func parseFlags(args []string, stderr io.Writer, cfg *config.Config) (*options, *pflag.FlagSet, error) {
	fs := pflag.NewFlagSet("csvmerge", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVarP(&o.output, "output", "o", cfg.Merge.OutputName, `Write the merged CSV here ("-" for stdout)`)
	fs.StringVarP(&o.profile, "profile", "p", "", "Merge profile to use (default: "+cfg.Merge.DefaultProfile+")")
	fs.StringVar(&o.profilesFile, "profiles", cfg.Merge.ProfilesFile, "YAML file with named merge profiles")
	fs.StringVarP(&o.keyColumn, "key", "k", "", "Key column (overrides the profile)")
	fs.StringVarP(&o.delimiter, "delimiter", "d", "", `Field delimiter: a character or tab, comma, semicolon, pipe`)
	fs.StringVarP(&o.quote, "quote", "q", "", "Quote character")
	fs.StringVar(&o.onMalformed, "on-malformed", "", "Rows with too many fields: skip or fail")
	fs.BoolVar(&o.noFilter, "no-filter", false, "Ignore the profile's filter (--key-contains and --min-length-column still apply)")
	fs.StringVar(&o.keyContains, "key-contains", "", "Keep only rows whose key contains this text")
	fs.StringVar(&o.minLengthCol, "min-length-column", "", "Keep only rows where this column is longer than --min-length")
	fs.IntVar(&o.minLength, "min-length", 0, "Length used with --min-length-column")
	fs.BoolVar(&o.lf, "lf", false, "Write LF line endings instead of CRLF")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "Log each source as it is merged")
	fs.StringVar(&o.logFormat, "log-format", cfg.Logging.Format, "Log format: text or json")
	fs.BoolVarP(&o.help, "help", "h", false, "Show this help message")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: csvmerge [options] FILE...\n\n")
		fmt.Fprintf(stderr, "Merges CSV files on a key column. Later files overwrite earlier values.\n")
		fmt.Fprintf(stderr, "Use - as a FILE to read standard input.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  csvmerge a.csv b.csv                    # write merged.csv\n")
		fmt.Fprintf(stderr, "  csvmerge -o - -k id a.csv b.csv         # key on id, print to stdout\n")
		fmt.Fprintf(stderr, "  csvmerge -p filtered export*.csv        # use the filtered profile\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	o.files = fs.Args()
	o.minLengthSet = fs.Changed("min-length")
	return o, fs, nil
}

func (o *options) overrides() profile.Overrides {
	ov := profile.Overrides{
		KeyColumn:     o.keyColumn,
		MalformedRows: o.onMalformed,
		Delimiter:     o.delimiter,
		Quote:         o.quote,
		NoFilter:      o.noFilter,
		KeyContains:   o.keyContains,
	}
	if o.lf {
		ov.LineEnding = "lf"
	}
	if o.minLengthCol != "" {
		ov.MinLength = &profile.MinLength{Column: o.minLengthCol, Length: o.minLength}
	}
	return ov
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "csvmerge: %v\n", err)
		return exitError
	}

	opts, fs, err := parseFlags(args, stderr, cfg)
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "csvmerge: %v\n", err)
		fs.Usage()
		return exitUsage
	}
	if opts.help {
		fs.Usage()
		return exitOK
	}
	if len(opts.files) == 0 {
		fmt.Fprintf(stderr, "csvmerge: no input files\n")
		fs.Usage()
		return exitUsage
	}
	if opts.minLengthSet && opts.minLengthCol == "" {
		fmt.Fprintf(stderr, "csvmerge: --min-length needs --min-length-column\n")
		return exitUsage
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logging.SetupWriter(stderr, level, opts.logFormat)

	var profiles *profile.Set
	if opts.profilesFile != "" {
		profiles, err = profile.Load(opts.profilesFile, cfg.Merge)
		if err != nil {
			fmt.Fprintf(stderr, "csvmerge: %v\n", err)
			return exitError
		}
	} else {
		profiles = profile.Builtin(cfg.Merge)
	}

	sources, closeAll, err := openSources(opts.files, stdin)
	defer closeAll()
	if err != nil {
		fmt.Fprintf(stderr, "csvmerge: %v\n", err)
		return exitError
	}

	// Local runs are bounded by the file size limit only.
	cfg.Upload.MaxFiles = 0
	cfg.Upload.Timeout = 0
	svc := core.NewService(cfg, profiles, history.NewMemoryStore(1), nil)
	defer svc.Close()

	result, err := svc.Merge(core.ContextWithOrigin(ctx, core.OriginCLI), core.MergeRequest{
		Profile:   opts.profile,
		Overrides: opts.overrides(),
		Sources:   sources,
	})
	if err != nil {
		reportError(stderr, err)
		return exitError
	}

	write := func(w io.Writer) error { return svc.WriteCSV(w, result) }
	if opts.output == "-" {
		err = writeStream(stdout, write)
	} else {
		err = writeFileAtomic(opts.output, write)
	}
	if err != nil {
		fmt.Fprintf(stderr, "csvmerge: write %s: %v\n", opts.output, err)
		return exitError
	}

	if opts.output != "-" {
		t := result.Stats.Totals
		fmt.Fprintf(stderr, "csvmerge: merged %d files (%d rows read, %d accepted, %d without key, %d filtered, %d skipped) into %s: %d rows, %d columns\n",
			len(sources), t.Rows, t.Accepted, t.NoKey, t.Filtered, t.Skipped, opts.output, result.Stats.RowsOut, result.Stats.Columns)
	}
	return exitOK
}

func reportError(stderr io.Writer, err error) {
	fmt.Fprintf(stderr, "csvmerge: %v\n", err)
	if core.IsUserFacing(err) {
		msg := core.MapError(err)
		fmt.Fprintf(stderr, "  %s (Code: %s)\n", msg.Action, msg.Code)
	}
}

// openSources opens every input in order. "-" reads stdin and may appear
// once.
func openSources(paths []string, stdin io.Reader) ([]core.NamedSource, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	sources := make([]core.NamedSource, 0, len(paths))
	usedStdin := false
	for _, path := range paths {
		if path == "-" {
			if usedStdin {
				return nil, closeAll, errors.New("standard input can only be read once")
			}
			usedStdin = true
			sources = append(sources, core.NamedSource{Name: "stdin", Reader: stdin})
			continue
		}

		f, err := os.Open(path)
		if err != nil {
			return nil, closeAll, err
		}
		files = append(files, f)
		sources = append(sources, core.NamedSource{Name: path, Reader: f})
	}
	return sources, closeAll, nil
}
