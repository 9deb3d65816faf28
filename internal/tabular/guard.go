package tabular

import (
	"archive/zip"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
)

var (
	// ErrEntryTooLarge is returned when an archive entry inflates beyond
	// ArchiveLimits.MaxEntrySize.
	ErrEntryTooLarge = errors.New("archive entry exceeds size limit")

	// ErrInflateRatio is returned when an archive entry compresses better
	// than ArchiveLimits.MinInflateRatio allows.
	ErrInflateRatio = errors.New("archive entry compression ratio below limit")
)

// ratioGraceSize is the inflated size below which the ratio check is skipped;
// tiny XML parts legitimately compress very well.
const ratioGraceSize = 100 * 1024

// ArchiveLimits bounds what a zip-based spreadsheet may expand to.
type ArchiveLimits struct {
	MaxEntrySize    uint64  // bytes; 0 disables the check
	MinInflateRatio float64 // compressed/uncompressed; 0 disables the check
}

// DefaultArchiveLimits matches the usual spreadsheet-library defaults.
var DefaultArchiveLimits = ArchiveLimits{
	MaxEntrySize:    100 * humanize.MByte,
	MinInflateRatio: 0.01,
}

// Check inflates every entry of the archive at path without keeping the
// output, enforcing both limits on the bytes actually produced rather than on
// the sizes the archive declares.
func (l ArchiveLimits) Check(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return errors.Wrap(err, "open archive")
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if err := l.checkEntry(entry); err != nil {
			return errors.Wrapf(err, "entry %s", entry.Name)
		}
	}
	return nil
}

func (l ArchiveLimits) checkEntry(entry *zip.File) error {
	if l.MaxEntrySize > 0 && entry.UncompressedSize64 > l.MaxEntrySize {
		return errors.Wrapf(ErrEntryTooLarge, "declared %s, limit %s",
			humanize.IBytes(entry.UncompressedSize64), humanize.IBytes(l.MaxEntrySize))
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	compressed := entry.CompressedSize64
	var inflated uint64
	buf := make([]byte, 32*1024)
	for {
		n, err := rc.Read(buf)
		inflated += uint64(n)

		if l.MaxEntrySize > 0 && inflated > l.MaxEntrySize {
			return errors.Wrapf(ErrEntryTooLarge, "inflated past %s", humanize.IBytes(l.MaxEntrySize))
		}
		if l.MinInflateRatio > 0 && inflated > ratioGraceSize &&
			float64(compressed)/float64(inflated) < l.MinInflateRatio {
			return errors.Wrapf(ErrInflateRatio, "ratio %.4f, minimum %.4f",
				float64(compressed)/float64(inflated), l.MinInflateRatio)
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
