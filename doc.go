// Package unsign rewrites ZIP archives (APK, JAR) in place, either stripping
// every entry under a name prefix or substituting one entry with the contents
// of an external file.
//
// A rewrite first moves the archive to a sibling "{unixMillis}.tmp" file, then
// streams its entries into a new archive written at the original path. The
// temporary file is removed once the new archive is complete. If streaming
// fails the temporary file is kept: it is the only remaining copy of the
// original bytes and its path is reported in the returned *RewriteError.
//
// # Quick Start
//
// Strip the signing directory from an APK:
//
//	summary, err := unsign.Unsign(ctx, "app.apk")
//	if err != nil {
//	    return err
//	}
//	fmt.Println("removed", len(summary.Dropped), "entries")
//
// Replace the manifest of an APK:
//
//	_, err := unsign.MoveManifest(ctx, "app.apk", "build/AndroidManifest.xml")
//
// # Matching
//
// [DropPrefix] removes entries whose names start with the prefix. [Substitute]
// removes every entry whose name contains the replacement file's basename
// anywhere, then appends a single entry with that basename. Pass
// WithExactMatch(true) to require the basename to be the entry name or its
// last path segment.
//
// # Concurrency
//
// A single rewrite is synchronous. Rewriting the same path from two
// goroutines at once is unsafe and is not detected.
package unsign
