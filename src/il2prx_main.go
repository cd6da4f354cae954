package il2prx

/*------------------------------------------------------------------
 *
 * Purpose:	Main program for the IL2P receiver.
 *
 * Inputs:	A file of hard decision bits from the demodulator, one
 *		per byte as written by a GNU Radio file sink, or packed
 *		8 to a byte with -p.  A name ending in .zst is
 *		decompressed on the fly.  "-" reads stdin.
 *
 * Outputs:	Packets in the SQLite database (with -S), payloads of
 *		good packets in the payload file, MQTT, metrics, and a
 *		summary on stdout.
 *
 * Description:	The bits go through the access code correlator, the
 *		framer and the IL2P decoder in chunks, exactly as they
 *		would arrive from a live flowgraph.
 *
 *------------------------------------------------------------------*/

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/pflag"
)

func Il2prxMain() {
	var configFile = pflag.StringP("config", "c", "", "YAML configuration file.")
	var seedStr = pflag.StringP("seed", "s", "", "Descrambler seed, 9 bits.  Default 0x1f0.")
	var runID = pflag.Int64P("processing-run-id", "r", 0, "Processing run id.  0 creates a new run when storing packets.")
	var storePackets = pflag.BoolP("store-packets", "S", false, "Store packets in the database.")
	var accessThreshold = pflag.IntP("access-threshold", "t", DefaultAccessThreshold, "Access code bit errors allowed.")
	var database = pflag.StringP("database", "d", "", "SQLite database file.")
	var outputDir = pflag.StringP("output-dir", "o", "", "Directory for the payload file.")
	var outputPattern = pflag.String("output-pattern", "", "strftime pattern for the payload file name.")
	var noPayloadFile = pflag.BoolP("no-payload-file", "P", false, "Do not write a payload file.")
	var chunkBits = pflag.IntP("chunk-bits", "n", 0, "Bits handed to the decoder at a time.")
	var packed = pflag.BoolP("packed", "p", false, "Input has 8 bits per byte, MSB first.")
	var logLevel = pflag.StringP("log-level", "l", "", "debug, info, warn or error.")
	var metricsListen = pflag.String("metrics-listen", "", "Serve Prometheus metrics on this address, e.g. :9100.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Decode IL2P packets from a file of demodulated bits.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] bitfile\n", os.Args[0])
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:  %s -S -r 12 pass.bits.zst\n", os.Args[0])
	}

	pflag.Parse()

	if *version {
		printVersion(os.Stdout, "il2prx", false)
		return
	}

	if *help || pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(1)
	}

	var cfg, err = LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %s\n", err)
		os.Exit(1)
	}

	// Command line wins over the file, but only for options actually given.
	var changed = pflag.CommandLine.Changed
	if changed("seed") {
		var s, perr = strconv.ParseUint(*seedStr, 0, 16)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "Invalid seed %q: %s\n", *seedStr, perr)
			os.Exit(1)
		}
		cfg.Seed = uint16(s)
	}
	if changed("processing-run-id") {
		cfg.RunID = *runID
	}
	if changed("store-packets") {
		cfg.StorePackets = *storePackets
	}
	if changed("access-threshold") {
		cfg.AccessThreshold = *accessThreshold
	}
	if changed("database") {
		cfg.Database = *database
	}
	if changed("output-dir") {
		cfg.OutputDir = *outputDir
	}
	if changed("output-pattern") {
		cfg.OutputPattern = *outputPattern
	}
	if changed("chunk-bits") {
		cfg.ChunkBits = *chunkBits
	}
	if changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if changed("metrics-listen") {
		cfg.MetricsListen = *metricsListen
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %s\n", err)
		os.Exit(1)
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := runReceiver(ctx, cfg, pflag.Arg(0), *packed, !*noPayloadFile, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) *log.Logger {
	var logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "il2p",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

// openBits opens the input, undoing zstd compression if the name says so.
func openBits(path string) (io.ReadCloser, error) {
	var f *os.File
	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, err
		}
	}

	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}

	var dec, err = zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &zstdReadCloser{Decoder: dec, f: f}, nil
}

type zstdReadCloser struct {
	*zstd.Decoder
	f *os.File
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return z.f.Close()
}

/*------------------------------------------------------------------
 *
 * Name:	runReceiver
 *
 * Purpose:	Set up the sinks, push the whole input through a
 *		session and print the summary.
 *
 * Errors:	Failing to open the input or any requested sink is
 *		fatal.  Anything after that is logged and counted.
 *
 *------------------------------------------------------------------*/

func runReceiver(ctx context.Context, cfg Config, input string, packed bool, payloadFile bool, out io.Writer) error {
	var logger = newLogger(cfg.LogLevel)

	var in, err = openBits(input)
	if err != nil {
		return fmt.Errorf("could not open input: %w", err)
	}
	defer in.Close()

	var store *Store
	if cfg.StorePackets {
		store, err = OpenStore(cfg.Database)
		if err != nil {
			return fmt.Errorf("could not open database %s: %w", cfg.Database, err)
		}
		defer store.Close()

		if cfg.RunID == 0 {
			cfg.RunID, err = store.CreateRun(ctx, Run{
				SourceFile:      input,
				OutputPath:      cfg.OutputDir,
				AccessThreshold: cfg.AccessThreshold,
				StorePackets:    true,
				Seed:            cfg.Seed,
			})
			if err != nil {
				return err
			}
			logger.Info("created processing run", "id", cfg.RunID)
		}
	}

	var payload *PayloadFile
	if payloadFile {
		payload, err = OpenPayloadFile(cfg.OutputDir, cfg.OutputPattern, time.Now())
		if err != nil {
			return err
		}
		defer payload.Close()
		logger.Info("writing raw payloads", "path", payload.Path())

		if store != nil {
			if err := store.SetRunOutputFile(ctx, cfg.RunID, payload.Path()); err != nil {
				logger.Warn("could not record output file", "err", err)
			}
		}
	}

	var publisher *MQTTPublisher
	if cfg.MQTT.Enabled {
		publisher, err = NewMQTTPublisher(cfg.MQTT, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
	}

	var metrics = NewMetrics()
	if cfg.MetricsListen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsListen); err != nil {
				logger.Error("metrics listener", "err", err)
			}
		}()
	}

	var scfg = SessionConfig{
		RunID:           cfg.RunID,
		Seed:            cfg.Seed,
		StorePackets:    cfg.StorePackets,
		AccessThreshold: cfg.AccessThreshold,
		Logger:          logger,
		Metrics:         metrics,
	}
	// Assigning a nil pointer to an interface field would make it non-nil.
	if store != nil {
		scfg.Store = store
	}
	if payload != nil {
		scfg.Payload = payload
	}
	if publisher != nil {
		scfg.Publisher = publisher
	}

	var session = NewSession(scfg)

	var chunkBytes = cfg.ChunkBits
	if packed {
		chunkBytes = (cfg.ChunkBits + 7) / 8
	}
	var r = bufio.NewReaderSize(in, 64*1024)
	var buf = make([]byte, chunkBytes)

	for ctx.Err() == nil {
		var n, rerr = io.ReadFull(r, buf)
		if n > 0 {
			var bits = buf[:n]
			if packed {
				bits = UnpackBits(bits)
			}
			session.ProcessBits(ctx, bits)
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("reading %s: %w", input, rerr)
		}
	}

	printSummary(out, session.Stats())

	if store != nil {
		var run, serr = store.RunSummary(ctx, cfg.RunID)
		if serr != nil {
			logger.Warn("could not update run summary", "err", serr)
		} else {
			fmt.Fprintf(out, "Run %d: %d packets stored, %d good.\n", run.ID, run.PacketCount, run.GoodPackets)
		}
	}

	return nil
}

func printSummary(out io.Writer, st SessionStats) {
	fmt.Fprintf(out, "%d frames, %d packets, %d passed CRC, %d payload bytes written.\n",
		st.Frames, st.Packets, st.CRCGood, st.PayloadBytes)
	if st.Framer.StaleMarkers > 0 || st.Framer.ZeroLenFrames > 0 {
		fmt.Fprintf(out, "Sync markers dropped: %d stale, %d zero length.\n", st.Framer.StaleMarkers, st.Framer.ZeroLenFrames)
	}

	var reasons = make([]string, 0, len(st.Discards))
	for reason := range st.Discards {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(out, "Discarded %d: %s\n", st.Discards[reason], reason)
	}
	if st.SinkErrors > 0 {
		fmt.Fprintf(out, "%d sink errors, see log.\n", st.SinkErrors)
	}
}
