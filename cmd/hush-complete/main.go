// hush-complete is the host harness for the hush completion engine. It
// takes an input buffer and cursor offset, runs one completion request the
// way the shell's line editor would, and prints the ordered candidates. It
// also manages the persistent probe metadata cache.
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/harborshell/hush/internal/completion"
	"github.com/harborshell/hush/internal/core"
	"github.com/harborshell/hush/internal/execindex"
	"github.com/harborshell/hush/internal/metadata"
	"github.com/harborshell/hush/internal/registry"
	"github.com/harborshell/hush/internal/styles"
)

var BUILD_VERSION = "dev"

var line = flag.String("line", "", "the input buffer to complete")
var pos = flag.Int("pos", -1, "cursor offset into the buffer (default: end of buffer)")
var cwd = flag.String("cwd", "", "working directory for completion (default: current directory)")
var timeout = flag.Duration("timeout", 0, "per-probe timeout override")
var noStore = flag.Bool("no-store", false, "skip the persistent metadata cache")
var cacheStats = flag.Bool("cache-stats", false, "print persistent cache statistics and exit")
var cacheClear = flag.Bool("cache-clear", false, "clear the persistent cache and exit")

var helpFlag bool
var versionFlag bool

func init() {
	flag.BoolVar(&helpFlag, "h", false, "display help information")
	flag.BoolVar(&helpFlag, "help", false, "display help information")

	flag.BoolVar(&versionFlag, "v", false, "display build version")
	flag.BoolVar(&versionFlag, "version", false, "display build version")

	// Register custom zstd sink for compressed logging
	if err := zap.RegisterSink("zstd", newCompressedSink); err != nil {
		panic(fmt.Sprintf("failed to register zstd sink: %v", err))
	}
}

func main() {
	flag.Parse()

	if versionFlag {
		fmt.Println(BUILD_VERSION)
		return
	}

	if helpFlag {
		printUsage()
		return
	}

	if *cacheStats || *cacheClear {
		if err := runCacheCommand(); err != nil {
			fmt.Fprintln(os.Stderr, styles.ERROR(err.Error()))
			os.Exit(1)
		}
		return
	}

	logger, err := initializeLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		logger = zap.NewNop()
	}
	defer func() {
		_ = logger.Sync()
	}()

	sessionID := uuid.New().String()
	logger = logger.With(zap.String("session", sessionID))
	logger.Info("-------- new hush-complete session --------", zap.Any("args", os.Args))

	if err := run(logger); err != nil {
		logger.Error("unhandled error", zap.Error(err))
		fmt.Fprintln(os.Stderr, styles.ERROR(err.Error()))
		os.Exit(1)
	}
}

func run(logger *zap.Logger) error {
	buffer := *line
	if buffer == "" && flag.NArg() > 0 {
		buffer = strings.Join(flag.Args(), " ")
	}

	cursor := *pos
	if cursor < 0 || cursor > len(buffer) {
		cursor = len(buffer)
	}

	workingDir := *cwd
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
		workingDir = wd
	}

	cache := metadata.NewCache(logger)
	if !*noStore {
		store, err := metadata.OpenStore(core.MetadataFile())
		if err != nil {
			logger.Warn("continuing without persistent cache", zap.Error(err))
		} else {
			defer func() {
				_ = store.Close()
			}()
			cache.SetStore(store)
		}
	}

	index := execindex.New(nil, logger)
	provider := completion.NewProvider(
		registry.Default(),
		index,
		cache,
		func() string { return workingDir },
		logger,
	)
	if *timeout > 0 {
		provider.Runner().Timeout = *timeout
	}

	started := time.Now()
	candidates := provider.GetCompletions(buffer, cursor)
	logger.Info("completion request served",
		zap.Int("candidates", len(candidates)),
		zap.Duration("elapsed", time.Since(started)))

	for _, candidate := range candidates {
		if strings.HasSuffix(candidate, "/") {
			fmt.Println(styles.CANDIDATE_DIR(candidate))
		} else {
			fmt.Println(candidate)
		}
	}
	return nil
}

func runCacheCommand() error {
	store, err := metadata.OpenStore(core.MetadataFile())
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	if *cacheClear {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("probe metadata cache cleared")
		return nil
	}

	count, oldest, err := store.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}
	fmt.Println(styles.HEADER("Probe metadata cache"))
	fmt.Printf("  %-10s %d\n", "entries:", count)
	if count > 0 {
		fmt.Printf("  %-10s %s\n", "oldest:", styles.HINT(humanize.Time(oldest)))
	}
	fmt.Printf("  %-10s %s\n", "location:", core.MetadataFile())
	return nil
}

func printUsage() {
	fmt.Println(styles.HEADER("Usage:") + " hush-complete [flags] [buffer]")
	fmt.Println("\nCompletion engine harness for the hush shell.")
	fmt.Println()

	fmt.Println(styles.HEADER("Options:"))

	printed := make(map[string]bool)
	flag.VisitAll(func(f *flag.Flag) {
		if printed[f.Name] {
			return
		}

		// Group aliases like -h and -help by shared usage strings.
		aliases := []string{f.Name}
		flag.VisitAll(func(p *flag.Flag) {
			if p.Name == f.Name {
				return
			}
			if p.Usage == f.Usage {
				aliases = append(aliases, p.Name)
				printed[p.Name] = true
			}
		})
		printed[f.Name] = true

		var shortFlags, longFlags []string
		for _, name := range aliases {
			if len(name) == 1 {
				shortFlags = append(shortFlags, "-"+name)
			} else {
				longFlags = append(longFlags, "-"+name)
			}
		}

		flagStr := strings.Join(append(shortFlags, longFlags...), ", ")

		argName, usage := flag.UnquoteUsage(f)
		if argName != "" {
			flagStr += " <" + argName + ">"
		}

		fmt.Printf("  %-28s %s\n", flagStr, usage)
	})
}

// newCompressedSink creates a zstd-compressed zap sink. The URL path points
// at the log file; existing files with valid zstd frames are appended to,
// anything else is truncated.
func newCompressedSink(u *url.URL) (zap.Sink, error) {
	filePath := u.Path

	flags := os.O_CREATE | os.O_WRONLY

	fileInfo, err := os.Stat(filePath)
	if err == nil && fileInfo.Size() > 0 {
		if isValidZstdFile(filePath) {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
	}

	file, err := os.OpenFile(filePath, flags, 0644)
	if err != nil {
		return nil, err
	}

	encoder, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return &compressedSink{
		file:    file,
		encoder: encoder,
	}, nil
}

// isValidZstdFile checks if a file starts with a valid zstd magic number.
func isValidZstdFile(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer func() {
		_ = file.Close()
	}()

	buf := make([]byte, 4)
	n, err := file.Read(buf)
	if err != nil || n < 4 {
		return false
	}

	return buf[0] == 0x28 && buf[1] == 0xB5 && buf[2] == 0x2F && buf[3] == 0xFD
}

// compressedSink wraps a zstd encoder to satisfy zap's Sink interface.
type compressedSink struct {
	file    *os.File
	encoder *zstd.Encoder
}

func (s *compressedSink) Write(p []byte) (int, error) {
	_, err := s.encoder.Write(p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *compressedSink) Sync() error {
	if err := s.encoder.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *compressedSink) Close() error {
	encErr := s.encoder.Close()
	fileErr := s.file.Close()

	if encErr != nil {
		return encErr
	}
	return fileErr
}

func initializeLogger() (*zap.Logger, error) {
	logLevel := zap.NewAtomicLevelAt(zap.InfoLevel)
	if BUILD_VERSION == "dev" {
		logLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = logLevel
	loggerConfig.OutputPaths = []string{
		"zstd://" + core.LogFile(),
	}
	return loggerConfig.Build()
}
