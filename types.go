package unsign

import "github.com/opencontainers/go-digest"

// EntryRecord describes one entry written to the new archive.
type EntryRecord struct {
	Name string
	Dir  bool

	// Size is the uncompressed payload size. Zero for directories.
	Size int64

	// Digest is the sha256 digest of the payload. Empty for directories.
	Digest digest.Digest
}

// Summary describes a completed rewrite.
type Summary struct {
	Archive string

	// TempPath is the temporary file that held the original archive while
	// it was rewritten. It has been deleted or scheduled for deletion.
	TempPath string

	// Relocation is "renamed" or "copied".
	Relocation string

	// Kept lists retained entries in output order.
	Kept []EntryRecord

	// Dropped lists the names of omitted entries in input order.
	Dropped []string

	// Added is the appended replacement entry, or nil for prefix policies.
	Added *EntryRecord
}
