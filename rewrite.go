package unsign

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/unsign/internal/copyutil"
	"github.com/meigma/unsign/internal/safefile"
)

// Unsign removes every entry under META-INF/ from the archive at path.
func Unsign(ctx context.Context, path string, opts ...Option) (*Summary, error) {
	return Rewrite(ctx, path, DropPrefix{Prefix: SigningPrefix}, opts...)
}

// MoveManifest replaces every entry of the archive at path whose name
// contains the basename of manifest with the contents of manifest.
func MoveManifest(ctx context.Context, path, manifest string, opts ...Option) (*Summary, error) {
	return Rewrite(ctx, path, Substitute{Replacement: manifest}, opts...)
}

// Rewrite replaces the archive at path with a copy filtered by policy.
//
// The archive is relocated to a temporary sibling file first. Relocation
// failures return a *RelocationError and leave the archive untouched.
// Failures while streaming entries return a *RewriteError; the temporary
// file is then kept and holds the original archive.
func Rewrite(ctx context.Context, path string, policy Policy, opts ...Option) (*Summary, error) {
	cfg := newConfig(opts)
	if policy == nil {
		return nil, fmt.Errorf("%w: policy must not be nil", ErrInvalidArgument)
	}
	if err := policy.validate(cfg); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: archive path must not be empty", ErrInvalidArgument)
	}
	info, err := cfg.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: archive %s: %w", ErrInvalidArgument, path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: archive is not a regular file: %s", ErrInvalidArgument, path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files := cfg.files()
	transfer, err := files.Relocate(path)
	if err != nil {
		return nil, err
	}

	rw := &rewriter{
		cfg:    cfg,
		files:  files,
		policy: policy,
		summary: &Summary{
			Archive:    path,
			TempPath:   transfer.Temp,
			Relocation: transfer.State.String(),
		},
	}
	if err := rw.stream(ctx, transfer, info.Mode().Perm()); err != nil {
		rerr := &RewriteError{Archive: path, TempPath: transfer.Temp, Err: err}
		if sub, ok := policy.(Substitute); ok {
			rerr.Replacement = sub.Replacement
		}
		cfg.log().Debug("rewrite failed", "archive", path, "temp", transfer.Temp, "error", err)
		return nil, rerr
	}

	files.BestEffortDelete(transfer.Temp)
	return rw.summary, nil
}

// rewriter carries the state of a single Rewrite call.
type rewriter struct {
	cfg     *config
	files   *safefile.Manager
	policy  Policy
	summary *Summary
	buf     []byte
}

// stream copies retained entries from the relocated archive into a new
// archive at the original path. Every opened handle is released on return.
func (rw *rewriter) stream(ctx context.Context, t *safefile.Transfer, perm fs.FileMode) error {
	in, err := rw.cfg.fs.Open(t.Temp)
	if err != nil {
		return fmt.Errorf("open relocated archive: %w", err)
	}
	defer safefile.CloseQuietly(in)

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat relocated archive: %w", err)
	}
	zr, err := zip.NewReader(in, info.Size())
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	out, err := rw.cfg.fs.OpenFile(t.Original, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer safefile.CloseQuietly(out)
	if err := rw.cfg.fs.Chmod(t.Original, perm); err != nil {
		rw.cfg.log().Debug("restore archive permissions", "archive", t.Original, "error", err)
	}
	// A copy fallback may have scheduled the original path for deletion.
	rw.files.Forget(t.Original)

	zw := zip.NewWriter(out)
	finished := false
	defer func() {
		if !finished {
			safefile.CloseQuietly(zw)
		}
	}()

	rw.buf = make([]byte, copyutil.DefaultBufferSize)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rw.policy.drops(f.Name, rw.cfg) {
			rw.cfg.log().Info("removing entry", "archive", t.Original, "entry", f.Name)
			rw.summary.Dropped = append(rw.summary.Dropped, f.Name)
			continue
		}
		rec, err := rw.copyEntry(ctx, zw, f)
		if err != nil {
			return fmt.Errorf("copy entry %s: %w", f.Name, err)
		}
		rw.summary.Kept = append(rw.summary.Kept, rec)
	}

	if sub, ok := rw.policy.(Substitute); ok {
		rec, err := rw.appendFile(ctx, zw, sub)
		if err != nil {
			return fmt.Errorf("append %s: %w", sub.Replacement, err)
		}
		rw.summary.Added = &rec
	}

	finished = true
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync archive: %w", err)
	}
	return nil
}

// copyEntry writes f to zw with the same name, method, times, comment and
// attributes. Directory entries are written without reading a payload.
func (rw *rewriter) copyEntry(ctx context.Context, zw *zip.Writer, f *zip.File) (EntryRecord, error) {
	hdr := &zip.FileHeader{
		Name:           f.Name,
		Comment:        f.Comment,
		Method:         f.Method,
		Modified:       f.Modified,
		CreatorVersion: f.CreatorVersion,
		ExternalAttrs:  f.ExternalAttrs,
	}
	rec := EntryRecord{Name: f.Name}

	if isDirEntry(f.Name) {
		if _, err := zw.CreateHeader(hdr); err != nil {
			return rec, err
		}
		rec.Dir = true
		return rec, nil
	}

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return rec, err
	}
	rc, err := f.Open()
	if err != nil {
		return rec, err
	}
	defer safefile.CloseQuietly(rc)

	return rw.writePayload(ctx, rec, w, rc)
}

// appendFile writes the replacement file as a new deflated entry at the end
// of the archive.
func (rw *rewriter) appendFile(ctx context.Context, zw *zip.Writer, sub Substitute) (EntryRecord, error) {
	src, err := rw.cfg.fs.Open(sub.Replacement)
	if err != nil {
		return EntryRecord{}, err
	}
	defer safefile.CloseQuietly(src)

	info, err := src.Stat()
	if err != nil {
		return EntryRecord{}, err
	}

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     sub.Basename(),
		Method:   zip.Deflate,
		Modified: info.ModTime(),
	})
	if err != nil {
		return EntryRecord{}, err
	}
	return rw.writePayload(ctx, EntryRecord{Name: sub.Basename()}, w, src)
}

// writePayload copies src into w, recording the size and digest on rec.
func (rw *rewriter) writePayload(ctx context.Context, rec EntryRecord, w io.Writer, src io.Reader) (EntryRecord, error) {
	digester := digest.Canonical.Digester()
	n, err := copyutil.CopyBuffer(ctx, io.MultiWriter(w, digester.Hash()), src, rw.buf)
	if err != nil {
		return rec, err
	}
	rec.Size = n
	rec.Digest = digester.Digest()
	return rec, nil
}

// isDirEntry reports whether name denotes a directory marker.
func isDirEntry(name string) bool {
	return strings.HasSuffix(name, "/")
}
