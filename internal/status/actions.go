// Package status reports pipeline state from the database.
package status

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/deck-digest/models"
	"github.com/dtnitsch/deck-digest/pkg/state"
)

// StatusAction prints the last capture and ingestion markers.
func StatusAction(c *cli.Context) error {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.Ingest.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.CurrentStatus()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "State database:       %s\n", store.Path())
	fmt.Fprintf(c.App.Writer, "Last capture:         %s\n", formatTime(st.LastCaptureAt))
	fmt.Fprintf(c.App.Writer, "Last successful run:  %s\n", formatTime(st.LastSuccessAt))
	fmt.Fprintf(c.App.Writer, "Consecutive failures: %d\n", st.ConsecutiveFailures)
	fmt.Fprintf(c.App.Writer, "Archived batches:     %d\n", st.ArchivedCount)

	if st.LastDigest != "" {
		fmt.Fprintf(c.App.Writer, "\nLast digest:\n%s\n", st.LastDigest)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
