// Package romstore loads ROM images that have been compressed with zstd
// (extension .nes.zst), decompressing them into a cartridge without ever
// writing the expanded bytes to disk. It is a startup-time convenience, not
// on the hot emulation path.
package romstore

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"gones/internal/cartridge"
	"gones/internal/neserr"
)

// CompressedExt is the extension this package recognizes as a zstd-wrapped
// ROM image.
const CompressedExt = ".nes.zst"

// IsCompressed reports whether path names a .nes.zst file by extension.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, CompressedExt)
}

// Load opens path, transparently decompressing it first if it ends in
// .nes.zst, and parses the result as an iNES cartridge.
func Load(path string) (*cartridge.Cartridge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", neserr.ErrIO, err)
	}
	defer f.Close()

	var r io.Reader = f
	if IsCompressed(path) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: opening zstd stream: %v", neserr.ErrIO, err)
		}
		defer dec.Close()
		r = dec
	}

	return cartridge.LoadFromReader(r)
}

// Decompress copies the decompressed zstd stream read from src into dst,
// for callers that need the raw ROM bytes rather than a parsed Cartridge
// (e.g. writing a scratch .nes file for tooling that only accepts a path).
func Decompress(dst io.Writer, src io.Reader) error {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return fmt.Errorf("%w: opening zstd stream: %v", neserr.ErrIO, err)
	}
	defer dec.Close()
	if _, err := io.Copy(dst, dec); err != nil {
		return fmt.Errorf("%w: decompressing: %v", neserr.ErrIO, err)
	}
	return nil
}

// Compress writes a .nes.zst copy of the cartridge bytes read from src into
// dst, for pre-populating a ROM cache.
func Compress(dst io.Writer, src io.Reader) error {
	enc, err := zstd.NewWriter(dst)
	if err != nil {
		return fmt.Errorf("%w: opening zstd writer: %v", neserr.ErrIO, err)
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		return fmt.Errorf("%w: compressing: %v", neserr.ErrIO, err)
	}
	return enc.Close()
}
