package cli

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/rshade/kvcache/internal/logging"
	"github.com/rshade/kvcache/pkg/kvcache"
)

// ErrClearNotConfirmed is returned when clear runs without --yes outside a terminal.
var ErrClearNotConfirmed = errors.New("refusing to clear store without confirmation; pass --yes")

type sweepView struct {
	MemoryEvicted int   `json:"memory_evicted"`
	FilesScanned  int   `json:"files_scanned"`
	FilesRemoved  int   `json:"files_removed"`
	TempRemoved   int   `json:"temp_removed"`
	Corrupt       int   `json:"corrupt"`
	DurationMS    int64 `json:"duration_ms"`
}

type statsView struct {
	Store         string `json:"store"`
	MemoryEntries int    `json:"memory_entries"`
	DiskEntries   int    `json:"disk_entries"`
	DiskBytes     int64  `json:"disk_bytes"`
	Expired       int    `json:"expired"`
	Corrupt       int    `json:"corrupt"`
}

func newSweepCmd(a *app) *cobra.Command {
	var (
		output   string
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired entries from memory and disk",
		Long: `Scans every entry file of the store and deletes the expired ones, along
with temporary files left by interrupted writes. Corrupt files are
reported and left in place.`,
		Example: `  kvcache sweep
  kvcache sweep --progress --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			var opts []kvcache.Option
			if progress {
				var mu sync.Mutex
				opts = append(opts, kvcache.WithSweepProgress(func(s kvcache.SweepProgress) {
					mu.Lock()
					defer mu.Unlock()
					cmd.PrintErr("\r" + formatProgress(s))
				}))
			}
			c, err := a.openCache(cmd, opts...)
			if err != nil {
				return err
			}

			result, err := c.RemoveExpired(cmd.Context())
			if progress {
				cmd.PrintErrln()
			}
			if err != nil {
				return fmt.Errorf("sweeping store: %w", err)
			}

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), sweepView{
					MemoryEvicted: result.MemoryEvicted,
					FilesScanned:  result.FilesScanned,
					FilesRemoved:  result.FilesRemoved,
					TempRemoved:   result.TempRemoved,
					Corrupt:       result.Corrupt,
					DurationMS:    result.Duration.Milliseconds(),
				})
			}
			out := cmd.OutOrStdout()
			return renderReport(out, "EXPIRY SWEEP", sweepRows(result), logging.IsTerminal(out))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text or json")
	cmd.Flags().BoolVar(&progress, "progress", false, "report progress on stderr")

	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the contents of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			c, err := a.openCache(cmd)
			if err != nil {
				return err
			}

			s, err := c.Stats()
			if err != nil {
				return fmt.Errorf("reading store stats: %w", err)
			}

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), statsView(s))
			}
			out := cmd.OutOrStdout()
			return renderReport(out, "STORE", statsRows(s), logging.IsTerminal(out))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text or json")

	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry in the store",
		Long: `Deletes every entry file of the store. The store directory and its
manifest are kept. Asks for confirmation unless --yes is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				in := cmd.InOrStdin()
				if !logging.IsTerminal(in) {
					return ErrClearNotConfirmed
				}
				if !confirm(cmd.OutOrStdout(), in, fmt.Sprintf("Delete all entries in %s?", a.cfg.Store)) {
					cmd.Println("Aborted")
					return nil
				}
			}

			c, err := a.openCache(cmd)
			if err != nil {
				return err
			}

			removed, err := c.Clear()
			if err != nil {
				return fmt.Errorf("clearing store: %w", err)
			}
			cmd.Printf("Removed %d entries from %s\n", removed, c.StoreName())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}
