package capture

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// speechRMSThreshold is the per-tick RMS level above which a tick window
// counts as speech.
const speechRMSThreshold = 0.02

// energyDetector accumulates PCM energy per tick window so the silence
// monitor can ask "was there speech since the last tick?".
type energyDetector struct {
	mu         sync.Mutex
	sumSquares float64
	samples    int
}

func newEnergyDetector() *energyDetector {
	return &energyDetector{}
}

// Process consumes a chunk of 16-bit little-endian PCM and returns its RMS
// level in [0,1].
func (d *energyDetector) Process(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}
	var sumSquares float64
	n := 0
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
		n++
	}

	d.mu.Lock()
	d.sumSquares += sumSquares
	d.samples += n
	d.mu.Unlock()

	return math.Sqrt(sumSquares / float64(n))
}

// HasSpeechTick reports whether the window since the previous call carried
// speech-level energy, and resets the window.
func (d *energyDetector) HasSpeechTick() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.samples == 0 {
		return false
	}
	rms := math.Sqrt(d.sumSquares / float64(d.samples))
	d.sumSquares = 0
	d.samples = 0
	return rms >= speechRMSThreshold
}

// silenceMonitor auto-stops a capture once speech has been heard and then a
// full silence window elapses. Silence before any speech never stops the
// capture; the ceiling handles that case.
type silenceMonitor struct {
	stopAfter  int // ticks of trailing silence
	speechSeen bool
	silentRun  int
}

func newSilenceMonitor(stopAfter time.Duration) *silenceMonitor {
	ticks := int(stopAfter / tickInterval)
	if ticks < 1 {
		ticks = 1
	}
	return &silenceMonitor{stopAfter: ticks}
}

// Tick records one tick's speech state and reports whether the capture
// should auto-stop.
func (m *silenceMonitor) Tick(hasSpeech bool) bool {
	if hasSpeech {
		m.speechSeen = true
		m.silentRun = 0
		return false
	}
	if !m.speechSeen {
		return false
	}
	m.silentRun++
	return m.silentRun >= m.stopAfter
}
