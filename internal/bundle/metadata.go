package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/ALT-F4-LLC/bundlepub/internal/model"
)

// Keys of the metadata document.
const (
	keyID       = "id"
	keyTags     = "tags"
	keyVendor   = "vendor"
	keyMetadata = "metadata"
)

// prettyOptions formats the rewritten document with four-space indentation.
// Width 0 keeps every array expanded, one element per line.
var prettyOptions = &pretty.Options{Indent: "    ", Width: 0}

// Patcher rewrites the metadata document of an unpacked bundle.
type Patcher struct {
	// FileName is the document's path relative to the bundle root.
	FileName string
}

// PatchMetadata sets the vendor and metadata records on the document inside
// workDir and removes its tags. It returns the document's id, which names the
// export. The file is replaced atomically, so on error it is left untouched.
func (p *Patcher) PatchMetadata(workDir, vendor string, urls model.SubmissionURLs) (string, error) {
	const op = "patch metadata"

	path := filepath.Join(workDir, filepath.FromSlash(p.FileName))
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", model.Errorf(model.KindMetadata, op, "bundle has no %s", p.FileName)
		}
		return "", model.Errorf(model.KindMetadata, op, "reading %s: %w", p.FileName, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", model.Errorf(model.KindMetadata, op, "reading %s: %w", p.FileName, err)
	}

	out, exportID, err := PatchDocument(data, vendor, urls)
	if err != nil {
		return "", model.Errorf(model.KindMetadata, op, "%s: %w", p.FileName, err)
	}

	if err := writeFileAtomic(path, out, info.Mode().Perm()); err != nil {
		return "", model.Errorf(model.KindMetadata, op, "writing %s: %w", p.FileName, err)
	}
	return exportID, nil
}

// PatchDocument applies the metadata rewrite to a JSON document and returns
// the new document plus the original id. Keys keep their order; vendor and
// metadata are appended when not already present.
func PatchDocument(data []byte, vendor string, urls model.SubmissionURLs) ([]byte, string, error) {
	if !gjson.ValidBytes(data) {
		return nil, "", errors.New("not valid JSON")
	}
	if !utf8.Valid(data) {
		return nil, "", errors.New("not valid UTF-8")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, "", errors.New("not a JSON object")
	}

	id := doc.Get(keyID)
	if !id.Exists() {
		return nil, "", fmt.Errorf("missing required key %q", keyID)
	}
	if !doc.Get(keyTags).Exists() {
		return nil, "", fmt.Errorf("missing required key %q", keyTags)
	}
	if id.Type != gjson.String && id.Type != gjson.Number {
		return nil, "", fmt.Errorf("%q must be a string or number", keyID)
	}
	exportID := id.String()
	if exportID == "" {
		return nil, "", fmt.Errorf("%q is empty", keyID)
	}

	out, err := sjson.SetBytes(data, keyVendor, vendor)
	if err != nil {
		return nil, "", fmt.Errorf("setting %s: %w", keyVendor, err)
	}
	out, err = sjson.DeleteBytes(out, keyTags)
	if err != nil {
		return nil, "", fmt.Errorf("removing %s: %w", keyTags, err)
	}
	out, err = sjson.SetBytes(out, keyMetadata, urls.Entries())
	if err != nil {
		return nil, "", fmt.Errorf("setting %s: %w", keyMetadata, err)
	}

	return pretty.PrettyOptions(out, prettyOptions), exportID, nil
}

// writeFileAtomic writes data to a temporary file beside path and renames it
// over path.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
