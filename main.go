package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"mantra/audio"
	"mantra/capture"
	"mantra/config"
	"mantra/controller"
	"mantra/doctor"
	"mantra/entries"
	"mantra/intent"
	"mantra/log"
	"mantra/recognition"
	"mantra/shutdown"
	"mantra/transcriber"
	"mantra/wakeword"
)

var version = "dev"

// rootCtx spawns voice sessions; cancelled on shutdown.
var rootCtx context.Context

var shutdownOnce sync.Once

func gracefulShutdown(cleanup func()) {
	shutdownOnce.Do(func() {
		if cleanup != nil {
			cleanup()
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
	})
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "mantra.yaml"
	}
	return filepath.Join(dir, "mantra", "config.yaml")
}

func defaultStorePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "mantra")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "entries.db"), nil
}

// primaryLocale reduces a BCP 47 tag to the bare language code the
// transcription service expects ("en-US" -> "en").
func primaryLocale(locale string) string {
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		return locale[:i]
	}
	return locale
}

func main() {
	configFlag := flag.String("config", defaultConfigPath(), "Configuration file path")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	copyFlag := flag.Bool("copy", true, "Copy created entries to the clipboard")
	clipDirFlag := flag.String("clipdir", "", "Save finalized audio clips to this directory")
	storeFlag := flag.String("store", "", "Entry database path (default: OS config dir)")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS-specific location)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("mantra %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *deviceFlag != "" {
		cfg.Capture.Device = *deviceFlag
	}
	if *clipDirFlag != "" {
		cfg.Capture.ClipDir = *clipDirFlag
	}
	if *storeFlag != "" {
		cfg.Store.Path = *storeFlag
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "copy" {
			cfg.UI.CopyToClipboard = *copyFlag
		}
	})

	// Resolve log directory early
	logArg := *logPathFlag
	if logArg == "" {
		logArg = cfg.Logging.Path
	}
	logDir, err := log.ResolveDir(logArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logDir)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *doctorFlag {
		os.Exit(doctor.Run(cfg))
	}

	log.SetLevel(cfg.Logging.Level)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	if cfg.Transcription.APIKey == "" {
		fmt.Fprintln(os.Stderr, "Error: no API key (set OPENAI_API_KEY or transcription.api_key)")
		os.Exit(1)
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	device, err := audio.FindDevice(audioCtx, cfg.Capture.Device)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing audio devices: %v\n", err)
		os.Exit(1)
	}
	if cfg.Capture.Device != "" && device == nil {
		fmt.Fprintf(os.Stderr, "Error: microphone %q not found\n", cfg.Capture.Device)
		os.Exit(1)
	}

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath, err = defaultStorePath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving store path: %v\n", err)
			os.Exit(1)
		}
	}
	store, err := entries.OpenStore(storePath, cfg.Store.Owner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// One client per concern: the wake loop hints a single locale, the
	// command clip keeps the multi-language hint.
	contentClient := transcriber.New(transcriber.Config{
		Endpoint:  cfg.Transcription.Endpoint,
		APIKey:    cfg.Transcription.APIKey,
		Model:     cfg.Transcription.Model,
		Languages: cfg.Transcription.Languages,
		Timeout:   cfg.Transcription.Timeout(),
		OnMetrics: func(m *transcriber.NetworkMetrics, clip *capture.Clip) {
			log.Transcription(log.Metrics{
				AudioLengthS: clip.Duration.Seconds(),
				SizeKB:       float64(len(clip.Data)) / 1024,
				DNSTimeMs:    float64(m.DNS.Milliseconds()),
				TLSTimeMs:    float64(m.TLS.Milliseconds()),
				TTFBMs:       float64(m.TTFB.Milliseconds()),
				PhaseSumMs:   float64(m.Sum().Milliseconds()),
				TotalTimeMs:  float64(m.Total.Milliseconds()),
			}, cfg.Transcription.Model, m.ConnReused)
		},
	})
	wakeClient := transcriber.New(transcriber.Config{
		Endpoint:  cfg.Transcription.Endpoint,
		APIKey:    cfg.Transcription.APIKey,
		Model:     cfg.Transcription.Model,
		Languages: primaryLocale(cfg.Wake.Locale),
		Timeout:   cfg.Transcription.Timeout(),
	})
	contentClient.Warm()

	recognizer := recognition.NewChunked(audioCtx, wakeClient, recognition.Config{
		SampleRate: uint32(cfg.Capture.SampleRate),
		Channels:   uint32(cfg.Capture.Channels),
		Device:     cfg.Capture.Device,
	})
	listener := wakeword.NewListener(recognizer, cfg.Wake.Phrase)

	captureCfg := capture.Config{
		SampleRate: uint32(cfg.Capture.SampleRate),
		Channels:   uint32(cfg.Capture.Channels),
		Ceiling:    cfg.Capture.Ceiling(),
		Device:     device,
		OnLevel: func(level float64) {
			tuiSend(AudioLevelMsg{Level: level})
		},
	}
	if cfg.Capture.SilenceStop {
		captureCfg.SilenceStop = 2 * time.Second
	}
	if cfg.Capture.ClipDir != "" {
		captureCfg.ClipFS = afero.NewOsFs()
		captureCfg.ClipDir = cfg.Capture.ClipDir
	}
	recorder := capture.NewRecorder(audioCtx, captureCfg)

	sink := &statusSink{store: store, copy: cfg.UI.CopyToClipboard}
	ctrl := controller.New(
		listener,
		recorder,
		contentClient,
		entries.NewSubmitter(store),
		intent.NewExtractor(cfg.Wake.Phrase),
		sink,
	)

	var cancelRoot context.CancelFunc
	rootCtx, cancelRoot = context.WithCancel(context.Background())
	shutdown.Handle(func() {
		gracefulShutdown(func() {
			ctrl.Cancel()
			cancelRoot()
		})
	})

	deviceName := cfg.Capture.Device
	log.SessionStart(cfg.Wake.Phrase, deviceName)

	listCtx, listCancel := context.WithTimeout(rootCtx, 2*time.Second)
	initial, err := store.List(listCtx)
	listCancel()
	if err != nil {
		log.Errorf("initial entry list: %v", err)
	}

	p := NewTUIProgram(ctrl, cfg.Wake.Phrase, deviceName, initial)
	tuiMu.Lock()
	tuiProgram = p
	tuiMu.Unlock()

	ctrl.StartListening(rootCtx)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	gracefulShutdown(func() {
		ctrl.Cancel()
		cancelRoot()
	})
}
