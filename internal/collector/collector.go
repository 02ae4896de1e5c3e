package collector

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/neuraxis/ctreport/internal/config"
	"github.com/neuraxis/ctreport/internal/model"
)

// dicmOffset is where the DICM marker sits in a Part-10 DICOM file, after
// the 128-byte preamble.
const dicmOffset = 128

// maxEntryBytes caps a single expanded archive entry. A CT slice is a few
// megabytes; this guards against decompression bombs inside bundles.
const maxEntryBytes = 512 * 1024 * 1024

// Input is one element of a bundle as received: a declared name and the
// raw bytes. The collector decides whether it is an archive to expand or
// an instance candidate to sniff.
type Input struct {
	Name string
	Data []byte
}

// Collector expands bundles into deduplicated DICOM instance candidates.
//
// Design decision: Expansion is done fully in memory rather than through a
// temp directory. Bundles are already memory-resident at the upload
// boundary, entry sizes are capped, and in-memory expansion means there is
// no extraction state to clean up on error paths.
type Collector struct {
	// maxDepth bounds recursive expansion of nested archives.
	maxDepth int

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithMaxDepth sets the maximum archive nesting depth. Entries nested
// deeper than this contribute no candidates but are not an error.
func WithMaxDepth(depth int) Option {
	return func(c *Collector) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// WithLogger sets a custom logger for the collector.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// New creates a Collector with the given options.
func New(opts ...Option) *Collector {
	c := &Collector{
		maxDepth: config.DefaultMaxArchiveDepth,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Collect expands the bundle and returns the ordered, deduplicated DICOM
// instance candidates. Input order is preserved; archive entries appear in
// archive order at the position of their container. Duplicate content
// (byte-identical files under different names) is reported once, under the
// first name seen.
//
// Returns a *CollectionError only when a top-level container is unreadable.
// Entries that are not DICOM, nested archives that fail to open, and
// entries beyond the depth bound are silently filtered.
func (c *Collector) Collect(inputs []Input) ([]model.RawInstance, error) {
	var instances []model.RawInstance
	seen := make(map[[sha256.Size]byte]bool)

	for _, in := range inputs {
		if kind := archiveKind(in.Data); kind != archiveNone {
			expanded, err := c.expand(in.Name, in.Data, kind, 1, seen)
			if err != nil {
				return nil, &CollectionError{Source: in.Name, Err: err}
			}
			instances = append(instances, expanded...)
			continue
		}

		if inst, ok := c.candidate(in.Name, in.Data, seen); ok {
			instances = append(instances, inst)
		}
	}

	c.logger.Debug("bundle collected",
		"inputs", len(inputs),
		"candidates", len(instances),
	)

	return instances, nil
}

// candidate sniffs one entry and returns it as a RawInstance when it looks
// like a DICOM file and has not been seen before.
func (c *Collector) candidate(name string, data []byte, seen map[[sha256.Size]byte]bool) (model.RawInstance, bool) {
	if !LooksLikeDICOM(data) {
		c.logger.Debug("entry filtered, no DICM signature", "source", name)
		return model.RawInstance{}, false
	}

	sum := sha256.Sum256(data)
	if seen[sum] {
		c.logger.Debug("duplicate entry filtered", "source", name)
		return model.RawInstance{}, false
	}
	seen[sum] = true

	return model.RawInstance{Source: name, Data: data}, true
}

// expand recursively expands one archive. Errors from nested archives are
// swallowed after logging; only the caller of the top-level container
// converts the returned error into a CollectionError.
func (c *Collector) expand(name string, data []byte, kind archiveType, depth int, seen map[[sha256.Size]byte]bool) ([]model.RawInstance, error) {
	if depth > c.maxDepth {
		c.logger.Debug("archive beyond depth bound, skipped", "source", name, "depth", depth)
		return nil, nil
	}

	switch kind {
	case archiveZip:
		return c.expandZip(name, data, depth, seen)
	case archiveGzip:
		return c.expandGzip(name, data, depth, seen)
	case archiveTar:
		return c.expandTar(name, data, depth, seen)
	default:
		return nil, nil
	}
}

// expandEntry routes one extracted archive entry: nested archives recurse,
// everything else is sniffed as a candidate. Nested archive failures are
// logged and filtered, never fatal.
func (c *Collector) expandEntry(name string, data []byte, depth int, seen map[[sha256.Size]byte]bool) []model.RawInstance {
	if kind := archiveKind(data); kind != archiveNone {
		nested, err := c.expand(name, data, kind, depth+1, seen)
		if err != nil {
			c.logger.Debug("nested archive unreadable, filtered", "source", name, "error", err)
			return nil
		}
		return nested
	}

	if inst, ok := c.candidate(name, data, seen); ok {
		return []model.RawInstance{inst}
	}
	return nil
}

// expandZip expands a zip archive.
func (c *Collector) expandZip(name string, data []byte, depth int, seen map[[sha256.Size]byte]bool) ([]model.RawInstance, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var instances []model.RawInstance
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			c.logger.Debug("zip entry unreadable, filtered", "source", f.Name, "error", err)
			continue
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes))
		_ = rc.Close() //nolint:errcheck // Read already completed
		if err != nil {
			c.logger.Debug("zip entry unreadable, filtered", "source", f.Name, "error", err)
			continue
		}

		instances = append(instances, c.expandEntry(path.Join(name, f.Name), content, depth, seen)...)
	}

	return instances, nil
}

// expandGzip decompresses a gzip stream. The decompressed content may be a
// tar archive (the common .tar.gz case) or a single file.
func (c *Collector) expandGzip(name string, data []byte, depth int, seen map[[sha256.Size]byte]bool) ([]model.RawInstance, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close() //nolint:errcheck // Read-only close

	content, err := io.ReadAll(io.LimitReader(gr, maxEntryBytes))
	if err != nil {
		return nil, err
	}

	inner := strings.TrimSuffix(name, ".gz")
	return c.expandEntry(inner, content, depth, seen), nil
}

// expandTar expands a tar archive.
func (c *Collector) expandTar(name string, data []byte, depth int, seen map[[sha256.Size]byte]bool) ([]model.RawInstance, error) {
	tr := tar.NewReader(bytes.NewReader(data))

	var instances []model.RawInstance
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		content, err := io.ReadAll(io.LimitReader(tr, maxEntryBytes))
		if err != nil {
			c.logger.Debug("tar entry unreadable, filtered", "source", hdr.Name, "error", err)
			continue
		}

		instances = append(instances, c.expandEntry(path.Join(name, hdr.Name), content, depth, seen)...)
	}

	return instances, nil
}

// LooksLikeDICOM checks whether the leading bytes carry the DICM marker,
// either after the standard 128-byte Part-10 preamble or at offset zero
// for preamble-less files.
func LooksLikeDICOM(b []byte) bool {
	if len(b) >= dicmOffset+4 && bytes.Equal(b[dicmOffset:dicmOffset+4], []byte("DICM")) {
		return true
	}
	return len(b) >= 4 && bytes.Equal(b[:4], []byte("DICM"))
}

// archiveType identifies the container format of a byte blob.
type archiveType int

const (
	archiveNone archiveType = iota
	archiveZip
	archiveGzip
	archiveTar
)

// tarMagicOffset is where the ustar magic sits in a tar header block.
const tarMagicOffset = 257

// archiveKind sniffs the container format from leading bytes. A DICOM file
// is never treated as an archive even if the heuristics would match.
func archiveKind(b []byte) archiveType {
	if LooksLikeDICOM(b) {
		return archiveNone
	}

	switch {
	case len(b) >= 4 && bytes.Equal(b[:4], []byte{'P', 'K', 0x03, 0x04}):
		return archiveZip
	case len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b:
		return archiveGzip
	case len(b) >= tarMagicOffset+5 && bytes.Equal(b[tarMagicOffset:tarMagicOffset+5], []byte("ustar")):
		return archiveTar
	default:
		return archiveNone
	}
}
