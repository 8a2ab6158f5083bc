package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/pretty"

	"github.com/ALT-F4-LLC/bundlepub/internal/bundle"
	"github.com/ALT-F4-LLC/bundlepub/internal/config"
	"github.com/ALT-F4-LLC/bundlepub/internal/model"
	"github.com/ALT-F4-LLC/bundlepub/internal/publish"
)

// fakeTracker is an in-memory IssueTrackerClient.
type fakeTracker struct {
	issue      *model.Issue
	fetchErr   error
	content    map[string][]byte
	commentErr error

	comments  []string
	downloads []string
}

func (f *fakeTracker) FetchIssue(_ context.Context, issueID string) (*model.Issue, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.issue, nil
}

func (f *fakeTracker) AddComment(_ context.Context, issueID, body string) error {
	f.comments = append(f.comments, body)
	return f.commentErr
}

func (f *fakeTracker) Download(_ context.Context, contentURL string, w io.Writer) (int64, error) {
	f.downloads = append(f.downloads, contentURL)
	b, ok := f.content[contentURL]
	if !ok {
		return 0, model.Errorf(model.KindRequest, "download attachment", "unexpected status 404 on GET %s", contentURL)
	}
	n, err := w.Write(b)
	return int64(n), err
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	for _, d := range []string{"downloads", "work"} {
		if err := os.Mkdir(filepath.Join(base, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return &config.Config{
		Tracker: config.TrackerConfig{
			BaseURL:       "https://tracker.test",
			CommentPrefix: "Jenkins script failed: ",
			Fields:        config.FieldKeys{Vendor: "customfield_31230"},
		},
		Bundle: config.BundleConfig{
			Suffix:        ".mapp",
			MetadataFile:  "metadata.json",
			MaxEntryBytes: 1 << 20,
		},
		Paths: config.PathsConfig{
			DownloadDir: filepath.Join(base, "downloads"),
			WorkRoot:    filepath.Join(base, "work"),
			PublishRoot: filepath.Join(base, "http"),
		},
	}
}

func newTestRunner(cfg *config.Config, tr *fakeTracker) *Runner {
	r := New(cfg, tr, bundle.ZipReader{}, publish.OSMover{}, nil)
	r.NewRunID = func() string { return "run-1" }
	return r
}

const contentURL = "https://tracker.test/secure/attachment/1/app.mapp"

func submission(names ...string) *model.Issue {
	issue := &model.Issue{
		Key:    "MICROSUB-1",
		Vendor: "acme",
		URLs:   model.SubmissionURLs{Support: "s", Documentation: "d", Privacy: "p", TermsOfUse: "t"},
	}
	for _, n := range names {
		issue.Attachments = append(issue.Attachments, model.Attachment{
			Filename:   n,
			ContentURL: "https://tracker.test/secure/attachment/1/" + n,
		})
	}
	return issue
}

func TestRunPublishesBundle(t *testing.T) {
	cfg := testConfig(t)
	tr := &fakeTracker{
		issue: submission("app.mapp"),
		content: map[string][]byte{
			contentURL: zipBytes(t, map[string]string{
				"metadata.json":   `{"id": "abc123", "tags": ["x"]}`,
				"assets/icon.png": "png",
			}),
		},
	}

	pub, err := newTestRunner(cfg, tr).Run(context.Background(), "MICROSUB-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	exportDir := filepath.Join(cfg.Paths.PublishRoot, "acme", "abc123")
	if pub.Dir != exportDir {
		t.Errorf("Dir = %q, want %q", pub.Dir, exportDir)
	}
	if pub.IssueKey != "MICROSUB-1" || pub.ExportID != "abc123" || pub.Vendor != "acme" {
		t.Errorf("published = %+v", pub)
	}
	if pub.SizeBytes != int64(len(tr.content[contentURL])) {
		t.Errorf("SizeBytes = %d", pub.SizeBytes)
	}

	data, err := os.ReadFile(filepath.Join(exportDir, "metadata.json"))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":"abc123","vendor":"acme","metadata":[` +
		`{"tag":"privacyUrl","value":"p"},` +
		`{"tag":"documentationUrl","value":"d"},` +
		`{"tag":"termsOfUseUrl","value":"t"},` +
		`{"tag":"supportUrl","value":"s"}]}`
	if got := string(pretty.Ugly(data)); got != want {
		t.Errorf("metadata.json =\n%s\nwant\n%s", got, want)
	}

	for _, name := range []string{"app.mapp", filepath.Join("assets", "icon.png")} {
		if _, err := os.Stat(filepath.Join(exportDir, name)); err != nil {
			t.Errorf("%s not published: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.WorkRoot, "bundlepub-run-1")); !os.IsNotExist(err) {
		t.Errorf("working directory left behind: %v", err)
	}
	if len(tr.comments) != 0 {
		t.Errorf("comments posted on success: %v", tr.comments)
	}
}

func TestRunTwoAttachments(t *testing.T) {
	cfg := testConfig(t)
	tr := &fakeTracker{issue: submission("a.mapp", "b.mapp")}

	_, err := newTestRunner(cfg, tr).Run(context.Background(), "MICROSUB-1")
	if !errors.Is(err, model.ErrAttachment) {
		t.Fatalf("error = %v, want attachment error", err)
	}

	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("error %T is not a *Failure", err)
	}
	if f.State != StateIssueFetched {
		t.Errorf("State = %q, want %q", f.State, StateIssueFetched)
	}

	if len(tr.comments) != 1 {
		t.Fatalf("comments = %d, want 1", len(tr.comments))
	}
	if !strings.HasPrefix(tr.comments[0], "Jenkins script failed: ") ||
		!strings.Contains(tr.comments[0], "only attach a single file") {
		t.Errorf("comment = %q", tr.comments[0])
	}
	if len(tr.downloads) != 0 {
		t.Errorf("downloads = %v, want none", tr.downloads)
	}
	if _, err := os.Stat(cfg.Paths.PublishRoot); !os.IsNotExist(err) {
		t.Errorf("publish root created: %v", err)
	}
}

func TestRunWrongSuffix(t *testing.T) {
	cfg := testConfig(t)
	tr := &fakeTracker{issue: submission("bundle.zip")}

	_, err := newTestRunner(cfg, tr).Run(context.Background(), "MICROSUB-1")
	if !errors.Is(err, model.ErrAttachment) {
		t.Fatalf("error = %v, want attachment error", err)
	}
	if !strings.Contains(err.Error(), "extension") {
		t.Errorf("error = %q, want an extension mismatch", err)
	}
	if len(tr.downloads) != 0 {
		t.Errorf("downloads = %v, want none", tr.downloads)
	}
	if len(tr.comments) != 1 {
		t.Errorf("comments = %d, want 1", len(tr.comments))
	}
}

func TestRunMissingVendor(t *testing.T) {
	cfg := testConfig(t)
	issue := submission("app.mapp")
	issue.Vendor = ""
	tr := &fakeTracker{issue: issue}

	_, err := newTestRunner(cfg, tr).Run(context.Background(), "MICROSUB-1")
	if !errors.Is(err, model.ErrIssue) {
		t.Fatalf("error = %v, want issue error", err)
	}
	if !strings.Contains(err.Error(), "customfield_31230") {
		t.Errorf("error = %q, want the vendor field named", err)
	}
	if len(tr.downloads) != 0 {
		t.Errorf("downloads = %v, want none", tr.downloads)
	}
}

func TestRunFetchFailureIsReported(t *testing.T) {
	cfg := testConfig(t)
	tr := &fakeTracker{fetchErr: model.Errorf(model.KindRequest, "fetch issue", "unexpected status 502")}

	_, err := newTestRunner(cfg, tr).Run(context.Background(), "MICROSUB-1")
	if !errors.Is(err, model.ErrRequest) {
		t.Fatalf("error = %v, want request error", err)
	}
	var f *Failure
	if !errors.As(err, &f) || f.State != StateStart {
		t.Errorf("failure = %+v, want state start", f)
	}
	if len(tr.comments) != 1 || !strings.Contains(tr.comments[0], "fetch issue: unexpected status 502") {
		t.Errorf("comments = %v", tr.comments)
	}
}

func TestRunBadMetadata(t *testing.T) {
	cfg := testConfig(t)
	tr := &fakeTracker{
		issue: submission("app.mapp"),
		content: map[string][]byte{
			contentURL: zipBytes(t, map[string]string{"metadata.json": `{"id": "abc123"}`}),
		},
	}

	_, err := newTestRunner(cfg, tr).Run(context.Background(), "MICROSUB-1")
	if !errors.Is(err, model.ErrMetadata) {
		t.Fatalf("error = %v, want metadata error", err)
	}
	var f *Failure
	if errors.As(err, &f) && f.State != StateUnpacked {
		t.Errorf("State = %q, want %q", f.State, StateUnpacked)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.WorkRoot, "bundlepub-run-1")); !os.IsNotExist(err) {
		t.Errorf("working directory left behind after failure: %v", err)
	}
	if _, err := os.Stat(cfg.Paths.PublishRoot); !os.IsNotExist(err) {
		t.Errorf("publish root created: %v", err)
	}
}

func TestRunCorruptArchive(t *testing.T) {
	cfg := testConfig(t)
	tr := &fakeTracker{
		issue:   submission("app.mapp"),
		content: map[string][]byte{contentURL: []byte("not a zip at all")},
	}

	_, err := newTestRunner(cfg, tr).Run(context.Background(), "MICROSUB-1")
	if !errors.Is(err, model.ErrArchive) {
		t.Fatalf("error = %v, want archive error", err)
	}
	if len(tr.comments) != 1 {
		t.Errorf("comments = %d, want 1", len(tr.comments))
	}
}

func TestRunReportFailureDoesNotEscalate(t *testing.T) {
	cfg := testConfig(t)
	tr := &fakeTracker{
		issue:      submission(),
		commentErr: errors.New("tracker down"),
	}

	_, err := newTestRunner(cfg, tr).Run(context.Background(), "MICROSUB-1")
	if !errors.Is(err, model.ErrAttachment) {
		t.Fatalf("error = %v, want the original attachment error", err)
	}
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("error %T is not a *Failure", err)
	}
	if f.ReportErr == nil || f.ReportErr.Error() != "tracker down" {
		t.Errorf("ReportErr = %v, want tracker down", f.ReportErr)
	}
	if len(tr.comments) != 1 {
		t.Errorf("comment attempts = %d, want exactly 1", len(tr.comments))
	}
}

func TestReporterReportsOnce(t *testing.T) {
	tr := &fakeTracker{}
	r := &Reporter{Tracker: tr, IssueID: "MICROSUB-1", Prefix: "failed: "}

	if err := r.Report(context.Background(), errors.New("first")); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := r.Report(context.Background(), errors.New("second")); err != nil {
		t.Fatalf("second Report: %v", err)
	}
	if len(tr.comments) != 1 || tr.comments[0] != "failed: first" {
		t.Errorf("comments = %v, want only the first failure", tr.comments)
	}
}

func TestReporterIgnoresCancelledContext(t *testing.T) {
	tr := &fakeTracker{}
	r := &Reporter{Tracker: tr, IssueID: "MICROSUB-1"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Report(ctx, errors.New("interrupted")); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(tr.comments) != 1 {
		t.Errorf("comments = %d, want 1", len(tr.comments))
	}
}
