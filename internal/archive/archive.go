// Package archive compresses and extracts dump and media artifacts.
// Compression is deterministic for identical input bytes: the gzip header
// carries no name or timestamp, so round-trip tests can compare archives
// byte for byte.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/nimbuslabs/nimbus/internal/errors"
)

// Extension is the container format suffix for single-file dump archives.
const Extension = ".gz"

// Compress gzips the file at srcPath into the workspace directory and returns
// the archive path (<workspace>/<base>.gz).
func Compress(srcPath, workspace string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't open "+srcPath,
			"Check the file exists and is readable")
	}
	defer src.Close()

	archivePath := filepath.Join(workspace, filepath.Base(srcPath)+Extension)
	out, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't create "+archivePath,
			"Check disk space and permissions")
	}

	gz, err := gzip.NewWriterLevel(out, gzip.DefaultCompression)
	if err != nil {
		_ = out.Close()
		return "", errors.WrapWithCode(err, errors.ErrArchive, "Couldn't initialize gzip writer", "")
	}
	// Leave Name/ModTime zeroed so identical input produces identical archives.
	gz.OS = 255

	if _, err := io.Copy(gz, src); err != nil {
		_ = gz.Close()
		_ = out.Close()
		_ = os.Remove(archivePath)
		return "", errors.WrapWithCode(err, errors.ErrArchive,
			"Compression failed", "Check disk space")
	}

	if err := gz.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(archivePath)
		return "", errors.WrapWithCode(err, errors.ErrArchive, "Compression failed", "")
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(archivePath)
		return "", errors.WrapWithCode(err, errors.ErrArchive, "Compression failed", "")
	}

	return archivePath, nil
}

// Extract gunzips archivePath into the workspace directory and returns the
// extracted file path. The archive's trailing checksum is verified; a
// mismatch or unreadable archive yields an ARCHIVE error.
func Extract(archivePath, workspace string) (string, error) {
	in, err := os.Open(archivePath)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't open "+archivePath, "")
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't read "+filepath.Base(archivePath),
			"The downloaded archive appears corrupt, re-run the pull")
	}
	defer gz.Close()

	base := strings.TrimSuffix(filepath.Base(archivePath), Extension)
	if base == filepath.Base(archivePath) {
		base += ".out"
	}
	extractedPath := filepath.Join(workspace, base)

	out, err := os.OpenFile(extractedPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't create "+extractedPath,
			"Check disk space and permissions")
	}

	_, copyErr := io.Copy(out, gz)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(extractedPath)
		cause := copyErr
		if cause == nil {
			cause = closeErr
		}
		// gzip returns ErrChecksum here when the trailer doesn't match.
		return "", errors.WrapWithCode(cause, errors.ErrArchive,
			"Archive checksum mismatch or truncated archive",
			"The downloaded archive appears corrupt, re-run the pull")
	}

	return extractedPath, nil
}

// CompressDir packs a directory tree into <workspace>/<name>.tar.gz,
// walking entries in lexical order so identical trees produce identical
// archives.
func CompressDir(srcDir, workspace, name string) (string, error) {
	archivePath := filepath.Join(workspace, name+".tar.gz")
	out, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't create "+archivePath, "")
	}

	gz, err := gzip.NewWriterLevel(out, gzip.DefaultCompression)
	if err != nil {
		_ = out.Close()
		return "", errors.WrapWithCode(err, errors.ErrArchive, "Couldn't initialize gzip writer", "")
	}
	gz.OS = 255
	tw := tar.NewWriter(gz)

	walkErr := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})

	if walkErr == nil {
		walkErr = tw.Close()
	} else {
		_ = tw.Close()
	}
	if gzErr := gz.Close(); walkErr == nil {
		walkErr = gzErr
	}
	if outErr := out.Close(); walkErr == nil {
		walkErr = outErr
	}
	if walkErr != nil {
		_ = os.Remove(archivePath)
		return "", errors.WrapWithCode(walkErr, errors.ErrArchive,
			"Couldn't archive "+srcDir, "Check disk space and permissions")
	}

	return archivePath, nil
}

// ExtractDir unpacks a tar.gz archive into destDir.
func ExtractDir(archivePath, destDir string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't open "+archivePath, "")
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't read "+filepath.Base(archivePath),
			"The downloaded archive appears corrupt, re-run the pull")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrArchive,
				"Archive checksum mismatch or truncated archive",
				"The downloaded archive appears corrupt, re-run the pull")
		}

		// Reject entries escaping the destination.
		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return errors.New(errors.ErrArchive,
				fmt.Sprintf("Archive entry %q escapes the destination directory", hdr.Name),
				"")
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.WrapWithCode(err, errors.ErrArchive,
					"Couldn't create "+target, "")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errors.WrapWithCode(err, errors.ErrArchive,
					"Couldn't create "+filepath.Dir(target), "")
			}
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode)&0777)
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrArchive,
					"Couldn't create "+target, "")
			}
			if _, err := io.Copy(f, tr); err != nil {
				_ = f.Close()
				_ = os.Remove(target)
				return errors.WrapWithCode(err, errors.ErrArchive,
					"Archive checksum mismatch or truncated archive",
					"The downloaded archive appears corrupt, re-run the pull")
			}
			if err := f.Close(); err != nil {
				return errors.WrapWithCode(err, errors.ErrArchive,
					"Couldn't write "+target, "")
			}
		default:
			// Symlinks and specials don't occur in media trees; skip them.
		}
	}
}
