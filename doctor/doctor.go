// Package doctor runs end-to-end system checks: microphone, capture,
// transcription credentials, entry store, log directory.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mantra/audio"
	"mantra/capture"
	"mantra/config"
	"mantra/entries"
	"mantra/log"
	"mantra/transcriber"
)

// Run executes the diagnostic checks and returns an exit code (0=all
// pass, 1=any fail).
func Run(cfg *config.Config) int {
	fmt.Println("mantra doctor - system diagnostics")
	fmt.Println("==================================")

	allPass := true

	if !checkMicAndCapture(cfg) {
		allPass = false
	}
	if !checkTranscription(cfg) {
		allPass = false
	}
	if !checkStore(cfg) {
		allPass = false
	}
	if !checkLogDir() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkMicAndCapture(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[1/4] Microphone and capture")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	fmt.Printf("  %d capture device(s) found\n", len(devices))

	var device *audio.DeviceInfo
	if cfg.Capture.Device != "" {
		device, err = audio.FindDevice(ctx, cfg.Capture.Device)
		if err != nil {
			fmt.Printf("  FAIL: %v\n", err)
			return false
		}
		if device == nil {
			fmt.Printf("  FAIL: configured device %q not found\n", cfg.Capture.Device)
			return false
		}
	}

	fmt.Println("  Recording 2 seconds...")
	rec := capture.NewRecorder(ctx, capture.Config{
		SampleRate: uint32(cfg.Capture.SampleRate),
		Channels:   uint32(cfg.Capture.Channels),
		Ceiling:    2 * time.Second,
		Device:     device,
	})
	clip, err := rec.Begin(context.Background())
	if err != nil {
		fmt.Printf("  FAIL: capture error: %v\n", err)
		return false
	}
	if len(clip.Data) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}
	fmt.Printf("  PASS: captured %.1f KB (%s)\n", float64(len(clip.Data))/1024, clip.MimeType)
	return true
}

func checkTranscription(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[2/4] Transcription service")

	if cfg.Transcription.APIKey == "" {
		fmt.Println("  FAIL: no API key (set OPENAI_API_KEY or transcription.api_key)")
		return false
	}

	client := transcriber.New(transcriber.Config{
		Endpoint:  cfg.Transcription.Endpoint,
		APIKey:    cfg.Transcription.APIKey,
		Model:     cfg.Transcription.Model,
		Languages: cfg.Transcription.Languages,
		Timeout:   cfg.Transcription.Timeout(),
	})

	// one second of silence is enough to prove auth and reachability
	silence := make([]byte, cfg.Capture.SampleRate*2)
	clip, err := capture.EncodeWAV(silence, uint32(cfg.Capture.SampleRate), uint32(cfg.Capture.Channels))
	if err != nil {
		fmt.Printf("  FAIL: encode error: %v\n", err)
		return false
	}
	text, err := client.Transcribe(context.Background(), clip)
	if err != nil {
		// an empty-text response still proves the service answered
		if strings.Contains(err.Error(), "missing text") {
			fmt.Println("  PASS: service reachable (no speech in probe clip)")
			return true
		}
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: service reachable (heard %q)\n", text)
	return true
}

func checkStore(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[3/4] Entry store")

	path := cfg.Store.Path
	if path == "" {
		path = filepath.Join(os.TempDir(), "mantra-doctor.db")
		defer os.Remove(path)
	}
	store, err := entries.OpenStore(path, cfg.Store.Owner)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	defer store.Close()

	e, err := store.Create(context.Background(), "doctor probe", "2000-01-01")
	if err != nil {
		fmt.Printf("  FAIL: create: %v\n", err)
		return false
	}
	if err := store.Delete(context.Background(), e.ID); err != nil {
		fmt.Printf("  FAIL: delete: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: store at %s writable\n", path)
	return true
}

func checkLogDir() bool {
	fmt.Println()
	fmt.Println("[4/4] Log directory")

	dir, err := log.ResolveDir("")
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("  FAIL: cannot create %s: %v\n", dir, err)
		return false
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		fmt.Printf("  FAIL: cannot write to %s: %v\n", dir, err)
		return false
	}
	os.Remove(probe)
	fmt.Printf("  PASS: logs at %s\n", dir)
	return true
}
