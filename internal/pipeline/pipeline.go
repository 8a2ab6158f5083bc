// Package pipeline runs one submission from issue to published bundle.
//
// A run moves through the states Start, IssueFetched, AttachmentSelected,
// AttachmentDownloaded, Unpacked, MetadataPatched, Published and Done. An
// error in any state ends the run in Failed after the failure has been
// reported to the issue. Nothing is retried and nothing is resumed.
package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/ALT-F4-LLC/bundlepub/internal/attachment"
	"github.com/ALT-F4-LLC/bundlepub/internal/bundle"
	"github.com/ALT-F4-LLC/bundlepub/internal/config"
	"github.com/ALT-F4-LLC/bundlepub/internal/logging"
	"github.com/ALT-F4-LLC/bundlepub/internal/model"
	"github.com/ALT-F4-LLC/bundlepub/internal/publish"
)

// State is a point in a run.
type State string

const (
	StateStart                State = "start"
	StateIssueFetched         State = "issue-fetched"
	StateAttachmentSelected   State = "attachment-selected"
	StateAttachmentDownloaded State = "attachment-downloaded"
	StateUnpacked             State = "unpacked"
	StateMetadataPatched      State = "metadata-patched"
	StatePublished            State = "published"
	StateDone                 State = "done"
	StateFailed               State = "failed"
)

// IssueTrackerClient is the tracker surface a run needs.
type IssueTrackerClient interface {
	FetchIssue(ctx context.Context, issueID string) (*model.Issue, error)
	AddComment(ctx context.Context, issueID, body string) error
	Download(ctx context.Context, contentURL string, w io.Writer) (int64, error)
}

// Failure is returned when a run stops early. State is the last state the
// run reached before the error.
type Failure struct {
	RunID string
	State State
	Err   error
	// ReportErr is set when the failure could not be posted to the issue.
	ReportErr error
}

func (f *Failure) Error() string { return f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

// Runner wires the pipeline components together.
type Runner struct {
	tracker   IssueTrackerClient
	fetcher   *attachment.Fetcher
	unpacker  *bundle.Unpacker
	patcher   *bundle.Patcher
	publisher *publish.Publisher

	workRoot      string
	commentPrefix string
	vendorField   string
	log           *log.Logger

	// NewRunID names a run. It defaults to a random UUID.
	NewRunID func() string
}

// New builds a Runner from cfg and the given capabilities.
func New(
	cfg *config.Config,
	tracker IssueTrackerClient,
	archives bundle.ArchiveReader,
	mover publish.FileMover,
	logger *log.Logger,
) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		tracker: tracker,
		fetcher: &attachment.Fetcher{
			Client: tracker,
			Suffix: cfg.Bundle.Suffix,
			Dir:    cfg.Paths.DownloadDir,
			Log:    logger,
		},
		unpacker: &bundle.Unpacker{
			Reader:        archives,
			MaxEntryBytes: cfg.Bundle.MaxEntryBytes,
		},
		patcher:       &bundle.Patcher{FileName: cfg.Bundle.MetadataFile},
		publisher:     &publish.Publisher{Root: cfg.Paths.PublishRoot, Mover: mover},
		workRoot:      cfg.Paths.WorkRoot,
		commentPrefix: cfg.Tracker.CommentPrefix,
		vendorField:   cfg.Tracker.Fields.Vendor,
		log:           logger,
		NewRunID:      uuid.NewString,
	}
}

// run carries the state of one invocation.
type run struct {
	*Runner
	id       string
	issueID  string
	state    State
	log      *log.Logger
	reporter *Reporter
}

// Run processes issueID end to end. On failure the error has already been
// reported to the issue and is returned as a *Failure.
func (r *Runner) Run(ctx context.Context, issueID string) (*model.Published, error) {
	id := r.NewRunID()

	logger := *r.log
	logger.Context = log.NewContext(nil).Str("run", id).Str("issue", issueID).Value()

	x := &run{
		Runner:  r,
		id:      id,
		issueID: issueID,
		state:   StateStart,
		log:     &logger,
		reporter: &Reporter{
			Tracker: r.tracker,
			IssueID: issueID,
			Prefix:  r.commentPrefix,
			Log:     &logger,
		},
	}
	return x.execute(ctx)
}

func (x *run) advance(s State) {
	x.state = s
	x.log.Debug().Str("state", string(s)).Msg("state reached")
}

func (x *run) fail(ctx context.Context, err error) error {
	x.log.Error().Str("state", string(x.state)).Err(err).Msg("run failed")
	f := &Failure{RunID: x.id, State: x.state, Err: err}
	f.ReportErr = x.reporter.Report(ctx, err)
	x.state = StateFailed
	return f
}

func (x *run) execute(ctx context.Context) (*model.Published, error) {
	issue, err := x.tracker.FetchIssue(ctx, x.issueID)
	if err != nil {
		return nil, x.fail(ctx, err)
	}
	x.advance(StateIssueFetched)

	att, err := x.fetcher.Select(issue)
	if err != nil {
		return nil, x.fail(ctx, err)
	}
	if issue.Vendor == "" {
		return nil, x.fail(ctx, model.Errorf(model.KindIssue, "read issue fields",
			"issue %s has no vendor name (field %s)", issue.Key, x.vendorField))
	}
	x.advance(StateAttachmentSelected)

	archivePath, size, err := x.fetcher.Download(ctx, att)
	if err != nil {
		return nil, x.fail(ctx, err)
	}
	x.advance(StateAttachmentDownloaded)

	workDir := filepath.Join(x.workRoot, "bundlepub-"+x.id)
	files, err := x.unpacker.Unpack(archivePath, workDir)
	if err != nil {
		return nil, x.fail(ctx, err)
	}
	x.advance(StateUnpacked)
	x.log.Info().Str("dir", workDir).Int("files", len(files)).Msg("unpacked bundle")

	published := false
	defer func() {
		if !published {
			os.RemoveAll(workDir)
		}
	}()

	exportID, err := x.patcher.PatchMetadata(workDir, issue.Vendor, issue.URLs)
	if err != nil {
		return nil, x.fail(ctx, err)
	}
	x.advance(StateMetadataPatched)

	pub, err := x.publisher.Publish(workDir, archivePath, issue.Vendor, exportID)
	if err != nil {
		return nil, x.fail(ctx, err)
	}
	published = true
	x.advance(StatePublished)

	pub.IssueKey = issue.Key
	pub.SizeBytes = size
	x.log.Info().Str("dir", pub.Dir).Str("export", exportID).Str("vendor", issue.Vendor).Msg("published bundle")

	x.advance(StateDone)
	return pub, nil
}
