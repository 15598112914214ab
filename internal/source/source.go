// Package source validates the video a user selects and describes it for display.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dhowden/tag"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/unicode/norm"
)

const (
	// SoftLimit is the size above which processing needs explicit confirmation.
	SoftLimit int64 = 2 << 30
	// HardLimit is the size above which files are rejected.
	HardLimit int64 = 4 << 30
)

var (
	acceptedTypes      = []string{"video/mp4", "video/x-m4v"}
	acceptedExtensions = []string{".mp4", ".m4v"}
)

// File is an accepted input video.
type File struct {
	Path      string
	Name      string // sanitized display name
	Size      int64
	MediaType string
	Title     string // from container tags, may be empty

	needsConfirmation bool
	memoryNote        string
}

// NeedsConfirmation reports whether the file is above the soft limit.
func (f File) NeedsConfirmation() bool { return f.needsConfirmation }

// Warning describes why confirmation is needed, empty otherwise.
func (f File) Warning() string {
	if !f.needsConfirmation {
		return ""
	}
	msg := fmt.Sprintf("%s exceeds %s and may exhaust memory during conversion",
		humanize.IBytes(uint64(f.Size)), humanize.IBytes(uint64(SoftLimit)))
	if f.memoryNote != "" {
		msg += " (" + f.memoryNote + ")"
	}
	return msg
}

// BaseName returns the display name without its extension, the stem of part names.
func (f File) BaseName() string {
	return strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
}

// Open returns a reader over the file content.
func (f File) Open() (io.ReadCloser, error) {
	// #nosec G304 -- the user selected this file
	return os.Open(f.Path)
}

// Policy decides which files are accepted.
type Policy struct {
	SoftLimit int64
	HardLimit int64
}

// DefaultPolicy accepts up to HardLimit and asks for confirmation above SoftLimit.
var DefaultPolicy = Policy{SoftLimit: SoftLimit, HardLimit: HardLimit}

// CheckSize rejects sizes above the hard limit and flags sizes above the soft limit.
func (p Policy) CheckSize(size int64) (needsConfirmation bool, err error) {
	if size > p.HardLimit {
		return false, fmt.Errorf("%w: %s exceeds the %s limit",
			ErrTooLarge, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(p.HardLimit)))
	}
	return size > p.SoftLimit, nil
}

// Accepts reports whether a media type or file name is an accepted video.
func Accepts(mediaType, name string) bool {
	if slices.Contains(acceptedTypes, mediaType) {
		return true
	}
	return slices.Contains(acceptedExtensions, strings.ToLower(filepath.Ext(name)))
}

// Opener validates files against a Policy.
type Opener struct {
	policy Policy
	fs     fileOpener
	memory memoryReader
}

// OpenerOption configures an Opener.
type OpenerOption func(*Opener)

// WithPolicy sets the acceptance policy.
func WithPolicy(p Policy) OpenerOption {
	return func(o *Opener) { o.policy = p }
}

// NewOpener creates an Opener with DefaultPolicy.
func NewOpener(opts ...OpenerOption) *Opener {
	o := &Opener{
		policy: DefaultPolicy,
		fs:     osFileOpener{},
		memory: availableMemory,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open validates path and describes it.
func (o *Opener) Open(ctx context.Context, path string) (File, error) {
	info, err := o.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFormat, path)
	}

	f, err := o.fs.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	mediaType := ""
	if mt, err := mimetype.DetectReader(f); err == nil {
		mediaType = mt.String()
		if i := strings.IndexByte(mediaType, ';'); i >= 0 {
			mediaType = mediaType[:i]
		}
	}
	if !Accepts(mediaType, path) {
		return File{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, filepath.Base(path), mediaType)
	}

	confirm, err := o.policy.CheckSize(info.Size())
	if err != nil {
		return File{}, err
	}

	file := File{
		Path:              path,
		Name:              SanitizeName(filepath.Base(path)),
		Size:              info.Size(),
		MediaType:         mediaType,
		Title:             readTitle(f),
		needsConfirmation: confirm,
	}
	if confirm {
		file.memoryNote = o.memoryNote(ctx)
	}
	return file, nil
}

func (o *Opener) memoryNote(ctx context.Context) string {
	avail, err := o.memory(ctx)
	if err != nil || avail == 0 {
		return ""
	}
	return humanize.IBytes(avail) + " of memory available"
}

// readTitle returns the container title tag, if any.
func readTitle(rs io.ReadSeeker) string {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return ""
	}
	m, err := tag.ReadFrom(rs)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(m.Title())
}

// SanitizeName replaces characters unsafe in file names with '_' and normalizes
// to Unicode NFC so names built from it compare equal across platforms.
func SanitizeName(name string) string {
	name = norm.NFC.String(name)
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, name)
}

// Open validates path against policy with the default filesystem.
func Open(ctx context.Context, path string, policy Policy) (File, error) {
	return NewOpener(WithPolicy(policy)).Open(ctx, path)
}
