package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	logPath    = "logs/synthesis.log"
	logEnabled bool
	logMu      sync.RWMutex
)

// SetLog configures the synthesis history log. Disabled by default.
func SetLog(path string, enabled bool) {
	logMu.Lock()
	defer logMu.Unlock()
	if path != "" {
		logPath = path
	}
	logEnabled = enabled
}

// Log appends one synthesis attempt to the history log file.
// This is a shared helper for all providers to ensure consistent debugging
// visibility into what text was actually sent upstream.
func Log(provider, voice, text string, status int, err error) {
	logMu.RLock()
	path, enabled := logPath, logEnabled
	logMu.RUnlock()
	if !enabled {
		return
	}

	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	f, fileErr := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if fileErr != nil {
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	statusStr := fmt.Sprintf("%d", status)
	if err != nil {
		statusStr = fmt.Sprintf("ERROR(%v)", err)
	}

	entry := fmt.Sprintf("[%s] [%s] VOICE: %s | STATUS: %s\nTEXT:\n%s\n--------------------------------------------------\n",
		timestamp, provider, voice, statusStr, text)

	_, _ = f.WriteString(entry)
}
