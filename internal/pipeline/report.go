package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/phuslu/log"
)

// reportTimeout bounds the failure comment, which is posted even when the
// run's own context has been cancelled.
const reportTimeout = 30 * time.Second

// Commenter posts comments to an issue.
type Commenter interface {
	AddComment(ctx context.Context, issueID, body string) error
}

// Reporter posts a run's failure back to its issue. It acts at most once;
// later calls are no-ops, so a failing report can never trigger another.
type Reporter struct {
	Tracker Commenter
	IssueID string
	Prefix  string
	Log     *log.Logger

	once sync.Once
}

// Report comments cause on the issue. A failed post is logged and returned
// for display; it never changes the outcome of the run.
func (r *Reporter) Report(ctx context.Context, cause error) error {
	var postErr error
	r.once.Do(func() {
		body := r.Prefix + cause.Error()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
		defer cancel()

		postErr = r.Tracker.AddComment(ctx, r.IssueID, body)
		if r.Log == nil {
			return
		}
		if postErr != nil {
			r.Log.Error().Str("issue", r.IssueID).Err(postErr).Str("failure", cause.Error()).Msg("could not report failure to issue")
			return
		}
		r.Log.Info().Str("issue", r.IssueID).Msg("reported failure to issue")
	})
	return postErr
}
