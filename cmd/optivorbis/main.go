// Command optivorbis losslessly shrinks an Ogg-encapsulated Vorbis I file
// by rebuilding its setup codebooks around a length-limited optimal prefix
// code and re-encapsulating the result as a tightly packed Ogg stream.
//
// Usage:
//
//	optivorbis [OPTIONS] <input-file> <output-file|->
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/optivorbis/optivorbis/internal/prng"
	"github.com/optivorbis/optivorbis/internal/vorbis"
	"github.com/optivorbis/optivorbis/remux"
)

const version = "0.1.0"

// remuxerOptions collects repeated --remuxer_option KEY=VALUE flags.
type remuxerOptions map[string]string

func (o remuxerOptions) String() string {
	pairs := make([]string, 0, len(o))
	for k, v := range o {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (o remuxerOptions) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("--remuxer_option expects KEY=VALUE, got %q", s)
	}
	o[key] = value
	return nil
}

type verboseCount int

func (v *verboseCount) String() string { return strconv.Itoa(int(*v)) }
func (v *verboseCount) Set(string) error {
	*v++
	return nil
}
func (v *verboseCount) IsBoolFlag() bool { return true }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("optivorbis", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		help         bool
		showVersion  bool
		quiet        bool
		verbose      verboseCount
		remuxerName  string
		vendorAction string
		fieldsAction string
	)
	remuxerOpts := remuxerOptions{}

	fs.BoolVar(&help, "h", false, "show usage")
	fs.BoolVar(&help, "help", false, "show usage")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.BoolVar(&quiet, "q", false, "suppress non-error output")
	fs.BoolVar(&quiet, "quiet", false, "suppress non-error output")
	fs.Var(&verbose, "v", "increase log verbosity (repeatable)")
	fs.Var(&verbose, "verbose", "increase log verbosity (repeatable)")
	fs.StringVar(&remuxerName, "r", "", "remuxer to use (default: inferred from extension; only value is ogg2ogg)")
	fs.StringVar(&remuxerName, "remuxer", "", "remuxer to use (default: inferred from extension; only value is ogg2ogg)")
	fs.StringVar(&vendorAction, "vendor_string_action", "copy", "copy|replace|appendTag|appendShortTag|empty")
	fs.StringVar(&fieldsAction, "comment_fields_action", "copy", "copy|delete")
	fs.Var(remuxerOpts, "remuxer_option", "KEY=VALUE, repeatable (ogg2ogg keys: randomize_stream_serials, first_stream_serial_offset, ignore_start_sample_offset, error_on_no_vorbis_streams)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if help {
		printUsage(fs)
		return 0
	}
	if showVersion {
		fmt.Println("optivorbis " + version)
		return 0
	}

	rest := fs.Args()
	if len(rest) != 2 {
		printUsage(fs)
		return 2
	}
	inputPath, outputPath := rest[0], rest[1]

	if remuxerName != "" && remuxerName != "ogg2ogg" {
		fmt.Fprintf(os.Stderr, "optivorbis: unknown remuxer %q (only ogg2ogg is supported)\n", remuxerName)
		return 2
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	switch {
	case quiet:
		logger.SetLevel(logrus.ErrorLevel)
	case verbose >= 2:
		logger.SetLevel(logrus.TraceLevel)
	case verbose == 1:
		logger.SetLevel(logrus.DebugLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	cfg, err := buildConfig(vendorAction, fieldsAction, remuxerOpts, logger.WithField("cmd", "optivorbis"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "optivorbis: %v\n", err)
		return 1
	}

	in, err := os.Open(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "optivorbis: open input: %v\n", err)
		return 1
	}
	defer in.Close()

	var out io.Writer
	if outputPath == "-" {
		out = os.Stdout
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "optivorbis: create output: %v\n", err)
			return 1
		}
		defer f.Close()
		out = f
	}

	stats, err := remux.Remux(in, out, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "optivorbis: %v\n", err)
		return 1
	}

	for _, serr := range stats.StreamErrors {
		logger.WithError(serr).Warn("stream dropped")
	}

	if !quiet {
		saved := stats.InputBytes - stats.OutputBytes
		fmt.Printf("%s -> %s: %d stream(s) rewritten, %d dropped, %d -> %d bytes (%d saved)\n",
			inputPath, outputPath, stats.VorbisStreams, stats.DroppedStreams,
			stats.InputBytes, stats.OutputBytes, saved)
	}

	return 0
}

func buildConfig(vendorAction, fieldsAction string, opts remuxerOptions, logger *logrus.Entry) (remux.Config, error) {
	cfg := remux.DefaultConfig()
	cfg.Logger = logger

	va, err := parseVendorAction(vendorAction)
	if err != nil {
		return cfg, err
	}
	cfg.VendorAction = va

	fa, err := parseFieldsAction(fieldsAction)
	if err != nil {
		return cfg, err
	}
	cfg.FieldsAction = fa

	for key, value := range opts {
		switch key {
		case "randomize_stream_serials":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return cfg, fmt.Errorf("randomize_stream_serials: %w", err)
			}
			cfg.RandomizeStreamSerials = b
		case "first_stream_serial_offset":
			n, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return cfg, fmt.Errorf("first_stream_serial_offset: %w", err)
			}
			cfg.FirstStreamSerialOffset = uint32(n)
		case "ignore_start_sample_offset":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return cfg, fmt.Errorf("ignore_start_sample_offset: %w", err)
			}
			cfg.IgnoreStartSampleOffset = b
		case "error_on_no_vorbis_streams":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return cfg, fmt.Errorf("error_on_no_vorbis_streams: %w", err)
			}
			cfg.ErrorOnNoVorbisStreams = b
		default:
			return cfg, fmt.Errorf("unknown remuxer_option key %q", key)
		}
	}

	if cfg.RandomizeStreamSerials {
		cfg.Rand = prng.New()
	}

	return cfg, nil
}

func parseVendorAction(s string) (vorbis.VendorAction, error) {
	switch s {
	case "copy", "":
		return vorbis.VendorCopy, nil
	case "replace":
		return vorbis.VendorReplace, nil
	case "appendTag":
		return vorbis.VendorAppendTag, nil
	case "appendShortTag":
		return vorbis.VendorAppendShortTag, nil
	case "empty":
		return vorbis.VendorEmpty, nil
	default:
		return 0, fmt.Errorf("unknown vendor_string_action %q", s)
	}
}

func parseFieldsAction(s string) (vorbis.FieldsAction, error) {
	switch s {
	case "copy", "":
		return vorbis.FieldsCopy, nil
	case "delete":
		return vorbis.FieldsDelete, nil
	default:
		return 0, fmt.Errorf("unknown comment_fields_action %q", s)
	}
}

func printUsage(fs interface{ PrintDefaults() }) {
	fmt.Fprintln(os.Stderr, "usage: optivorbis [OPTIONS] <input-file> <output-file|->")
	fs.PrintDefaults()
}
