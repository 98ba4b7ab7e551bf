// Package copyutil provides a buffered copy that observes context cancellation.
package copyutil

import (
	"context"
	"io"
)

// DefaultBufferSize is the buffer size callers allocate for [CopyBuffer].
const DefaultBufferSize = 32 << 10

// CopyBuffer copies from src to dst until EOF or error, checking for context
// cancellation between reads. buf must be non-empty and is owned by the
// caller for the duration of the call.
func CopyBuffer(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			if nw < 0 || nr < nw {
				nw = 0
				if ew == nil {
					ew = io.ErrShortWrite
				}
			}
			written += int64(nw)
			if ew != nil {
				return written, ew
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er == io.EOF {
				return written, nil
			}
			return written, er
		}
	}
}
