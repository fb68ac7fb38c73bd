package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dukerupert/doubleup/internal/archive"
	"github.com/dukerupert/doubleup/internal/store"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Publish and fetch encrypted copies of the results database",
	Long: `Encrypted copies of the results database are kept in S3-compatible
storage. Configure archive.bucket, archive.access_key, archive.secret_key and
archive.passphrase (or the DOUBLEUP_ARCHIVE_* environment variables).`,
}

var archivePublishCmd = &cobra.Command{
	Use:   "publish [run-id]",
	Short: "Upload an encrypted snapshot of the results database",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runArchivePublish,
}

var archiveFetchCmd = &cobra.Command{
	Use:   "fetch [key]",
	Short: "Download and decrypt an archive, the latest by default",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runArchiveFetch,
}

var archivePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete archives older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runArchivePrune,
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded archives",
	Args:  cobra.NoArgs,
	RunE:  runArchiveList,
}

var (
	fetchOut       string
	pruneRetention time.Duration
	archiveLimit   int
)

func init() {
	archiveFetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "doubleup-fetched.db", "where to write the decrypted database")
	archivePruneCmd.Flags().DurationVar(&pruneRetention, "older-than", 30*24*time.Hour, "retention period")
	archiveListCmd.Flags().IntVarP(&archiveLimit, "limit", "n", 20, "number of archives to list")

	archiveCmd.AddCommand(archivePublishCmd, archiveFetchCmd, archivePruneCmd, archiveListCmd)
	rootCmd.AddCommand(archiveCmd)
}

func newPublisher(db *sql.DB) (*archive.Publisher, error) {
	a := cfg.Archive
	return archive.NewPublisher(archive.Config{
		Endpoint:   a.Endpoint,
		Bucket:     a.Bucket,
		Region:     a.Region,
		Prefix:     a.Prefix,
		AccessKey:  a.AccessKey,
		SecretKey:  a.SecretKey,
		Passphrase: a.Passphrase,
	}, db, store.NewArchiveStore(db))
}

func runArchivePublish(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	runID := ""
	if len(args) == 1 {
		runID = args[0]
		r, err := store.NewRunStore(db).GetByID(runID)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("run %s not found", runID)
		}
	}

	pub, err := newPublisher(db)
	if err != nil {
		return err
	}
	a, err := pub.Publish(cmd.Context(), runID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %s (%s)\n", a.S3Key, humanize.Bytes(uint64(a.SizeBytes)))
	return nil
}

func runArchiveFetch(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	pub, err := newPublisher(db)
	if err != nil {
		return err
	}
	key := ""
	if len(args) == 1 {
		key = args[0]
	}
	a, err := pub.Fetch(cmd.Context(), key, fetchOut)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "fetched %s to %s\n", a.S3Key, fetchOut)
	return nil
}

func runArchivePrune(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	pub, err := newPublisher(db)
	if err != nil {
		return err
	}
	keys, err := pub.Prune(cmd.Context(), pruneRetention)
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", k)
	}
	if err != nil {
		slog.Warn("some archive objects could not be deleted", "error", err)
	}
	return nil
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	archives, err := store.NewArchiveStore(db).List(archiveLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKEY\tRUN\tSTATUS\tSIZE\tCREATED")
	for _, a := range archives {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.S3Key, a.RunID, a.Status, humanize.Bytes(uint64(a.SizeBytes)), humanize.Time(a.CreatedAt))
	}
	return tw.Flush()
}
