package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: MANTRA_LOG_PATH environment variable
	envPath := os.Getenv("MANTRA_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// SetLevel maps a config level name onto the global zerolog level.
// Unknown names keep the current level.
func SetLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	}
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Domain events. Each session produces session_start, wake_detected,
// capture_stop, transcription, extraction, entry_created (or
// stage_error), session_end.

func SessionStart(phrase, device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("phrase", phrase).
		Str("device", device).
		Msg("session_start")
}

func WakeDetected(transcript string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("transcript", transcript).
		Msg("wake_detected")
}

func CaptureStop(durationS float64, sizeKB float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Float64("audio_s", durationS).
		Float64("size_kb", sizeKB).
		Msg("capture_stop")
}

// Metrics carries per-request transcription timings.
type Metrics struct {
	AudioLengthS float64
	SizeKB       float64
	DNSTimeMs    float64
	TLSTimeMs    float64
	TTFBMs       float64
	PhaseSumMs   float64
	TotalTimeMs  float64
}

func Transcription(m Metrics, model string, connReused bool) {
	if !logReady {
		return
	}
	connStatus := "new"
	if connReused {
		connStatus = "reused"
	}
	diagLog.Info().
		Str("model", model).
		Str("conn", connStatus).
		Float64("audio_s", m.AudioLengthS).
		Float64("size_kb", m.SizeKB).
		Float64("dns_ms", m.DNSTimeMs).
		Float64("tls_ms", m.TLSTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("phases_ms", m.PhaseSumMs).
		Float64("total_ms", m.TotalTimeMs).
		Msg("transcription")
}

// TranscriptionText appends the raw transcript to its own plain-text
// log, one line per utterance.
func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

func Extraction(title, date string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("title", title).
		Str("date", date).
		Msg("extraction")
}

func EntryCreated(id, title, date string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("id", id).
		Str("title", title).
		Str("date", date).
		Msg("entry_created")
}

func StageError(stage string, err error) {
	if !logReady {
		return
	}
	diagLog.Error().
		Str("stage", stage).
		Err(err).
		Msg("stage_error")
}

func SessionEnd(state string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("state", state).
		Msg("session_end")
}
