// Package attachment picks the bundle attached to a submission issue and
// downloads it.
package attachment

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/phuslu/log"

	"github.com/ALT-F4-LLC/bundlepub/internal/model"
)

// Downloader streams an attachment's content.
type Downloader interface {
	Download(ctx context.Context, contentURL string, w io.Writer) (int64, error)
}

// Fetcher enforces the single-attachment rule and saves the attachment
// locally.
type Fetcher struct {
	Client Downloader
	Suffix string
	Dir    string
	Log    *log.Logger
}

// Select returns the issue's only attachment. Zero attachments, more than one
// attachment, or a filename without the required suffix are all errors.
func (f *Fetcher) Select(issue *model.Issue) (model.Attachment, error) {
	const op = "select attachment"

	switch n := len(issue.Attachments); {
	case n == 0:
		return model.Attachment{}, model.Errorf(model.KindAttachment, op,
			"no file attached to %s, please attach a single %s file", issue.Key, f.Suffix)
	case n > 1:
		return model.Attachment{}, model.Errorf(model.KindAttachment, op,
			"%d files attached to %s, please only attach a single file", n, issue.Key)
	}

	a := issue.Attachments[0]
	if !strings.HasSuffix(a.Filename, f.Suffix) {
		return model.Attachment{}, model.Errorf(model.KindAttachment, op,
			"attachment %q does not have the required %s extension", a.Filename, f.Suffix)
	}
	return a, nil
}

// Download saves the attachment to Dir under its own filename, replacing any
// existing file, and returns the local path and byte count.
func (f *Fetcher) Download(ctx context.Context, a model.Attachment) (string, int64, error) {
	const op = "download attachment"

	if !isPlainName(a.Filename) {
		return "", 0, model.Errorf(model.KindAttachment, op, "attachment filename %q is not a plain file name", a.Filename)
	}
	if a.ContentURL == "" {
		return "", 0, model.Errorf(model.KindAttachment, op, "attachment %q has no content URL", a.Filename)
	}

	path := filepath.Join(f.Dir, a.Filename)
	out, err := os.Create(path)
	if err != nil {
		return "", 0, model.Errorf(model.KindAttachment, op, "creating %s: %w", path, err)
	}

	n, err := f.Client.Download(ctx, a.ContentURL, out)
	if err != nil {
		out.Close()
		os.Remove(path)
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		return "", 0, model.Errorf(model.KindAttachment, op, "writing %s: %w", path, err)
	}

	if f.Log != nil {
		f.Log.Info().Str("file", path).Str("size", humanize.Bytes(uint64(n))).Msg("downloaded attachment")
	}
	return path, n, nil
}

// isPlainName reports whether name is a single local path element.
func isPlainName(name string) bool {
	return name != "" &&
		name == filepath.Base(name) &&
		!strings.ContainsAny(name, `/\`) &&
		filepath.IsLocal(name)
}
