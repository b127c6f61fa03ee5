package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ddokterview/ddokterview/internal/config"
	dbgorm "github.com/ddokterview/ddokterview/internal/db/gorm"
	"github.com/ddokterview/ddokterview/internal/feedback"
	"github.com/ddokterview/ddokterview/internal/interview"
	"github.com/ddokterview/ddokterview/internal/progress"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the session registry schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DatabaseDSN == "" {
			return errors.New("DATABASE_DSN is not set; sessions are kept in the object store")
		}
		db, err := dbgorm.NewStore(dbgorm.Config{DSN: cfg.DatabaseDSN})
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		log.Info().Str("dialect", db.Dialect()).Msg("Migrations applied")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <sessionId>",
	Short: "Print the stored progress record of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackends(cmd.Context(), func(ctx context.Context, b *backends) error {
			if err := interview.ValidateSessionID(args[0]); err != nil {
				return err
			}
			rec, err := progress.NewTracker(b.store, b.locks).Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		})
	},
}

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recently updated sessions from the database registry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBackends(cmd.Context(), func(ctx context.Context, b *backends) error {
			lister, ok := b.sessions.(*dbgorm.SessionStore)
			if !ok {
				return errors.New("listing sessions requires DATABASE_DSN")
			}
			sessions, err := lister.ListSessions(ctx, sessionsLimit)
			if err != nil {
				return err
			}
			for _, s := range sessions {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s  %-20s  turn %-3d  %s  %s\n",
					s.ID, s.Phase, s.Turn, s.UpdatedAt.Format(time.RFC3339), s.CompanyName)
			}
			return nil
		})
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Inspect or rebuild feedback reports",
}

var feedbackShowCmd = &cobra.Command{
	Use:   "show <sessionId>",
	Short: "Print the aggregate feedback report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackends(cmd.Context(), func(ctx context.Context, b *backends) error {
			agg, err := feedback.NewFolder(b.store, b.locks).Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), agg)
		})
	},
}

var feedbackCollectCmd = &cobra.Command{
	Use:   "collect <sessionId>",
	Short: "Rebuild the aggregate report from the stored per-question entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackends(cmd.Context(), func(ctx context.Context, b *backends) error {
			if err := interview.ValidateSessionID(args[0]); err != nil {
				return err
			}
			agg, err := feedback.NewFolder(b.store, b.locks).Collect(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), agg)
		})
	},
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum number of sessions")
	feedbackCmd.AddCommand(feedbackShowCmd)
	feedbackCmd.AddCommand(feedbackCollectCmd)
}

// withBackends runs fn against the configured stores. Admin commands do not
// need agent or OpenAI credentials, so only storage settings are checked.
func withBackends(ctx context.Context, fn func(context.Context, *backends) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.StorageBackend != "filesystem" && cfg.Bucket == "" {
		return &config.MissingKeysError{Keys: []string{"GCS_BUCKET_NAME"}}
	}
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
