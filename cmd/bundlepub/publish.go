package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/bundlepub/internal/bundle"
	"github.com/ALT-F4-LLC/bundlepub/internal/config"
	"github.com/ALT-F4-LLC/bundlepub/internal/logging"
	"github.com/ALT-F4-LLC/bundlepub/internal/model"
	"github.com/ALT-F4-LLC/bundlepub/internal/output"
	"github.com/ALT-F4-LLC/bundlepub/internal/pipeline"
	"github.com/ALT-F4-LLC/bundlepub/internal/publish"
	"github.com/ALT-F4-LLC/bundlepub/internal/render"
	"github.com/ALT-F4-LLC/bundlepub/internal/tracker"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the bundle attached to an issue",
	Long: `Fetch the single bundle attached to an issue, stamp its metadata with the
vendor and URLs from the issue, and move it into <publish_root>/<vendor>/<id>.

Any failure after the arguments are accepted is posted to the issue as a
comment. The credentials default to $BUNDLEPUB_USER and $BUNDLEPUB_PASSWORD.`,
	Example: "  bundlepub publish --issue MICROSUB-123 --user svc-build --password \"$JIRA_PASSWORD\"",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		issueID, _ := cmd.Flags().GetString("issue")
		user, _ := cmd.Flags().GetString("user")
		password, _ := cmd.Flags().GetString("password")

		in := config.Invocation{
			IssueID:     issueID,
			Credentials: config.CredentialsFromEnv(config.Credentials{Username: user, Password: password}),
		}
		if err := in.Validate(); err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		logger := logging.New(os.Stderr, cfg.Log.Level, render.ColorsEnabled())

		keys := cfg.Tracker.Fields
		client := tracker.NewClient(cfg.Tracker.BaseURL, in.Credentials.Username, in.Credentials.Password,
			tracker.Fields{
				SupportURL:       keys.SupportURL,
				DocumentationURL: keys.DocumentationURL,
				PrivacyURL:       keys.PrivacyURL,
				TermsURL:         keys.TermsURL,
				Vendor:           keys.Vendor,
			}, cfg.Tracker.Timeout)

		runner := pipeline.New(cfg, client, bundle.ZipReader{}, publish.OSMover{}, logger)
		pub, err := runner.Run(cmd.Context(), in.IssueID)
		if err != nil {
			ce := cmdErr(err, output.ErrorCodeForKind(model.KindOf(err)))
			var f *pipeline.Failure
			if errors.As(err, &f) {
				ce.RunID = f.RunID
				if f.ReportErr != nil {
					w.Warn("could not comment on %s: %v", in.IssueID, f.ReportErr)
				}
			}
			return ce
		}

		w.Success(pub, render.RenderPublished(pub))
		return nil
	},
}

func init() {
	publishCmd.Flags().String("issue", "", "Issue key or numeric id (required)")
	publishCmd.Flags().String("user", "", "Tracker user (default $BUNDLEPUB_USER)")
	publishCmd.Flags().String("password", "", "Tracker password (default $BUNDLEPUB_PASSWORD)")
	rootCmd.AddCommand(publishCmd)
}
