package pdfops

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// tempPrefixes are the names writeTemp creates for stamp images.
var tempPrefixes = []string{"pdfwm-", "pdfcover-"}

// CleanupTemps removes stamp images left in dir (os.TempDir when empty)
// that are older than maxAge. A crash between writing and stamping leaves
// them behind.
func CleanupTemps(dir string, maxAge time.Duration) int {
	if dir == "" {
		dir = os.TempDir()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("temp cleanup failed")
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !hasTempPrefix(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !os.IsNotExist(err) {
			log.Debug().Err(err).Str("file", e.Name()).Msg("remove temp file")
			continue
		}
		removed++
	}
	return removed
}

func hasTempPrefix(name string) bool {
	for _, p := range tempPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
