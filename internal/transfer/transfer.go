// Package transfer streams dump and media artifacts between the platform's
// storage and the local filesystem. Transfers are chunked, never buffering a
// whole artifact in memory, and a failed download removes its partial file.
package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/nimbuslabs/nimbus/internal/errors"
	"github.com/nimbuslabs/nimbus/internal/logger"
)

// chunkSize bounds how much of an artifact is held in memory at once.
const chunkSize = 1 << 20 // 1 MiB

// Handle describes one in-flight or completed streamed transfer. It is owned
// exclusively by the workflow invocation that created it.
type Handle struct {
	// Source is the URL (download) or local path (upload).
	Source string
	// Dest is the local path (download) or URL (upload).
	Dest string
	// Expected is the size declared by the server or the local file,
	// -1 if unknown.
	Expected int64
	// Transferred is the number of bytes moved.
	Transferred int64
}

// Streamer performs chunked HTTP downloads and uploads. Artifact URLs are
// pre-signed, so no authentication is attached here.
type Streamer struct {
	http *http.Client
	log  logger.Logger
}

// NewStreamer creates a Streamer with a pooled HTTP client.
func NewStreamer() *Streamer {
	return &Streamer{
		http: cleanhttp.DefaultPooledClient(),
		log:  logger.NewEnvLogger("[transfer]"),
	}
}

// SetHTTPClient overrides the HTTP client, for tests.
func (s *Streamer) SetHTTPClient(c *http.Client) {
	s.http = c
}

// SetLogger overrides the logger.
func (s *Streamer) SetLogger(l logger.Logger) {
	s.log = l
}

// Download streams the artifact at url into destPath. If the server declares
// a content length and fewer bytes arrive, the partial file is removed and a
// TRANSFER error is returned.
func (s *Streamer) Download(ctx context.Context, url, destPath string) (*Handle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransfer,
			"Invalid download URL", "")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransfer,
			"Couldn't start the download",
			"Check your network connection and try again")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrTransfer,
			fmt.Sprintf("Download failed with HTTP %d", resp.StatusCode),
			"The artifact may have expired, request a fresh dump")
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransfer,
			"Couldn't create download directory",
			"Check permissions on "+filepath.Dir(destPath))
	}

	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransfer,
			"Couldn't create "+destPath,
			"Check disk space and permissions")
	}

	handle := &Handle{
		Source:   url,
		Dest:     destPath,
		Expected: resp.ContentLength,
	}

	buf := make([]byte, chunkSize)
	written, copyErr := io.CopyBuffer(dest, resp.Body, buf)
	closeErr := dest.Close()
	handle.Transferred = written

	if copyErr != nil || closeErr != nil {
		// Never leave a silent partial artifact behind.
		_ = os.Remove(destPath)
		cause := copyErr
		if cause == nil {
			cause = closeErr
		}
		return nil, errors.WrapWithCode(cause, errors.ErrTransfer,
			"Download interrupted",
			"Check your network connection and re-run the pull")
	}

	if handle.Expected >= 0 && written != handle.Expected {
		_ = os.Remove(destPath)
		return nil, errors.New(errors.ErrTransfer,
			fmt.Sprintf("Incomplete download: got %d of %d bytes", written, handle.Expected),
			"Check your network connection and re-run the pull")
	}

	s.log.Debug("downloaded %d bytes to %s", written, destPath)
	return handle, nil
}

// Upload streams the file at srcPath to url with a PUT request. The server is
// authoritative on partial uploads; a failed upload makes no assumption about
// remote state.
func (s *Streamer) Upload(ctx context.Context, srcPath, url string) (*Handle, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransfer,
			"Couldn't open "+srcPath,
			"Check the file exists and is readable")
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransfer,
			"Couldn't stat "+srcPath, "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, src)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransfer,
			"Invalid upload URL", "")
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransfer,
			"Upload interrupted",
			"Check your network connection and re-run the push")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.New(errors.ErrTransfer,
			fmt.Sprintf("Upload failed with HTTP %d: %s", resp.StatusCode, string(body)),
			"The upload URL may have expired, re-run the push")
	}

	s.log.Debug("uploaded %d bytes from %s", info.Size(), srcPath)
	return &Handle{
		Source:      srcPath,
		Dest:        url,
		Expected:    info.Size(),
		Transferred: info.Size(),
	}, nil
}
