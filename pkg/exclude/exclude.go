// Package exclude implements the mod filename blacklist: an ordered
// set of glob patterns matched against server-assigned filenames.
package exclude

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/packup/packup/pkg/errors"
	"github.com/packup/packup/pkg/logging"
)

// Blacklist holds filename glob patterns. A filename is excluded when
// any pattern matches; first match is sufficient.
type Blacklist struct {
	patterns []string
}

// New creates a Blacklist from the given patterns. Pattern syntax is
// validated up front so a bad pattern fails the run at startup rather
// than silently never matching.
func New(patterns []string) (*Blacklist, error) {
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, errors.Wrapf(err, errors.ErrPatternInvalid, "invalid exclude pattern %q", p)
		}
	}
	return &Blacklist{patterns: patterns}, nil
}

// Load reads a blacklist file with one glob pattern per line. Blank
// lines and lines starting with # are skipped.
func Load(path string) (*Blacklist, error) {
	logger := logging.GetLogger("exclude")

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "cannot open exclude file %s", path)
	}
	defer func() { _ = f.Close() }()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "cannot read exclude file %s", path)
	}

	logger.Debug().Strs("patterns", patterns).Str("path", path).Msg("Loaded exclude patterns")
	return New(patterns)
}

// Matches reports whether filename glob-matches any blacklist pattern.
// Patterns were validated at construction, so match errors cannot occur.
func (b *Blacklist) Matches(filename string) bool {
	if b == nil {
		return false
	}
	for _, p := range b.patterns {
		if ok, _ := filepath.Match(p, filename); ok {
			return true
		}
	}
	return false
}

// Len returns the number of patterns in the blacklist.
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.patterns)
}
