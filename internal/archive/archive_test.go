package archive

import (
	"archive/tar"
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuslabs/nimbus/internal/errors"
)

func TestCompressExtractRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{name: "empty file", content: []byte{}},
		{name: "sql text", content: []byte("CREATE TABLE users (id serial primary key);\nINSERT INTO users DEFAULT VALUES;\n")},
		{name: "binary data", content: func() []byte {
			b := make([]byte, 256*1024)
			_, _ = rand.Read(b)
			return b
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace := t.TempDir()
			src := filepath.Join(workspace, "database.sql")
			require.NoError(t, os.WriteFile(src, tt.content, 0600))

			archivePath, err := Compress(src, workspace)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(workspace, "database.sql.gz"), archivePath)

			extractDir := t.TempDir()
			extracted, err := Extract(archivePath, extractDir)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(extractDir, "database.sql"), extracted)

			got, err := os.ReadFile(extracted)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.content, got), "round trip must be byte-for-byte")
		})
	}
}

func TestCompressDeterministic(t *testing.T) {
	content := []byte("SELECT 1;\nSELECT 2;\n")

	ws1 := t.TempDir()
	src1 := filepath.Join(ws1, "dump.sql")
	require.NoError(t, os.WriteFile(src1, content, 0600))
	a1, err := Compress(src1, ws1)
	require.NoError(t, err)

	ws2 := t.TempDir()
	src2 := filepath.Join(ws2, "dump.sql")
	require.NoError(t, os.WriteFile(src2, content, 0600))
	a2, err := Compress(src2, ws2)
	require.NoError(t, err)

	b1, err := os.ReadFile(a1)
	require.NoError(t, err)
	b2, err := os.ReadFile(a2)
	require.NoError(t, err)
	assert.Equal(t, b1, b2, "same input bytes must yield the same archive bytes")
}

func TestExtractNotGzip(t *testing.T) {
	workspace := t.TempDir()
	archivePath := filepath.Join(workspace, "dump.sql.gz")
	require.NoError(t, os.WriteFile(archivePath, []byte("this is not gzip"), 0600))

	_, err := Extract(archivePath, workspace)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrArchive))
}

func TestExtractTruncatedArchive(t *testing.T) {
	workspace := t.TempDir()
	src := filepath.Join(workspace, "dump.sql")
	require.NoError(t, os.WriteFile(src, bytes.Repeat([]byte("abcdefgh"), 10000), 0600))

	archivePath, err := Compress(src, workspace)
	require.NoError(t, err)

	// Chop off the gzip trailer (checksum + size) and part of the stream.
	data, err := os.ReadFile(archivePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(archivePath, data[:len(data)-16], 0600))

	_, err = Extract(archivePath, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrArchive))
}

func TestExtractCorruptedBody(t *testing.T) {
	workspace := t.TempDir()
	src := filepath.Join(workspace, "dump.sql")
	require.NoError(t, os.WriteFile(src, bytes.Repeat([]byte("row data "), 5000), 0600))

	archivePath, err := Compress(src, workspace)
	require.NoError(t, err)

	// Flip bytes in the middle of the deflate stream.
	data, err := os.ReadFile(archivePath)
	require.NoError(t, err)
	mid := len(data) / 2
	data[mid] ^= 0xff
	data[mid+1] ^= 0xff
	require.NoError(t, os.WriteFile(archivePath, data, 0600))

	_, err = Extract(archivePath, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrArchive))
}

func TestCompressDirExtractDirRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "images", "2024"), 0755))
	files := map[string][]byte{
		"index.html":                []byte("<html></html>"),
		"images/logo.png":           {0x89, 0x50, 0x4e, 0x47},
		"images/2024/photo.jpg":     bytes.Repeat([]byte{0xff, 0xd8}, 512),
		"images/2024/thumbnail.jpg": {},
	}
	for rel, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(srcDir, filepath.FromSlash(rel)), content, 0644))
	}

	workspace := t.TempDir()
	archivePath, err := CompressDir(srcDir, workspace, "media")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(workspace, "media.tar.gz"), archivePath)

	destDir := t.TempDir()
	require.NoError(t, ExtractDir(archivePath, destDir))

	for rel, content := range files {
		got, err := os.ReadFile(filepath.Join(destDir, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.Equal(t, content, got, rel)
	}
}

func TestExtractDirRejectsPathEscape(t *testing.T) {
	// Hand-build an archive containing a ../ entry.
	archivePath := filepath.Join(t.TempDir(), "evil.tar.gz")
	out, err := os.Create(archivePath)
	require.NoError(t, err)

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	content := []byte("pwned")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "../outside.txt",
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     int64(len(content)),
	}))
	_, err = tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, out.Close())

	destDir := t.TempDir()
	err = ExtractDir(archivePath, destDir)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrArchive))

	_, statErr := os.Stat(filepath.Join(filepath.Dir(destDir), "outside.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
