package unsign

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SigningPrefix is the directory holding JAR and APK v1 signature files.
const SigningPrefix = "META-INF/"

// Policy decides which entries survive a rewrite.
// The only implementations are [DropPrefix] and [Substitute].
type Policy interface {
	// drops reports whether the entry named name is omitted from the output.
	drops(name string, cfg *config) bool
	validate(cfg *config) error
}

// DropPrefix omits every entry whose name starts with Prefix.
// The comparison is case-sensitive.
type DropPrefix struct {
	Prefix string
}

func (p DropPrefix) drops(name string, _ *config) bool {
	return strings.HasPrefix(name, p.Prefix)
}

func (p DropPrefix) validate(_ *config) error {
	if p.Prefix == "" {
		return fmt.Errorf("%w: prefix must not be empty", ErrInvalidArgument)
	}
	return nil
}

// Substitute omits every entry whose name contains the basename of
// Replacement, then appends one entry named after that basename holding the
// replacement file's bytes.
//
// The match is a plain substring test, so "res/AndroidManifest.xml.bak" is
// dropped when substituting "AndroidManifest.xml". WithExactMatch narrows it
// to whole path segments.
type Substitute struct {
	Replacement string
}

// Basename is the name of the appended entry.
func (p Substitute) Basename() string {
	return filepath.Base(p.Replacement)
}

func (p Substitute) drops(name string, cfg *config) bool {
	base := p.Basename()
	if cfg.exactMatch {
		return name == base || strings.HasSuffix(name, "/"+base)
	}
	return strings.Contains(name, base)
}

func (p Substitute) validate(cfg *config) error {
	if p.Replacement == "" {
		return fmt.Errorf("%w: manifest file path must not be empty", ErrInvalidArgument)
	}
	info, err := cfg.fs.Stat(p.Replacement)
	if err != nil || !info.Mode().IsRegular() {
		abs, absErr := filepath.Abs(p.Replacement)
		if absErr != nil {
			abs = p.Replacement
		}
		return fmt.Errorf("%w: manifest file does not exist: %s", ErrInvalidArgument, abs)
	}
	return nil
}
