package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"noticebot/internal/config"
	"noticebot/internal/notice"
	"noticebot/internal/storage"
	logx "noticebot/pkg/logx"
)

// StateCmd prints the persisted notice snapshot.
func StateCmd() *cobra.Command {
	var (
		cfgPath string
		driver  string
		path    string
		list    bool
	)

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the persisted notice snapshot",
		Long: `Show the snapshot the bot compares against on start-up.

Storage settings come from --config when given, otherwise from --driver/--path.

Examples:
  noticebot state --path notice_data.json
  noticebot state --config ./config.yaml --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := storage.Config{Driver: driver, Path: path}
			if cfgPath != "" {
				m := config.NewConfigManager(cfgPath)
				cfg, err := m.Parse()
				if err != nil {
					return err
				}
				r, err := config.Resolve(cfg)
				if err != nil {
					return err
				}
				sc = storage.Config{Driver: r.StorageDriver, Path: r.StoragePath, BusyTimeout: r.BusyTimeout}
			}

			st, err := storage.Open(sc, logx.Nop())
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := st.Load(context.Background())
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), snap, list)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "read storage settings from this config file")
	cmd.Flags().StringVar(&driver, "driver", "file", "storage driver (file|sqlite)")
	cmd.Flags().StringVar(&path, "path", storage.DefaultPath, "state file or database path")
	cmd.Flags().BoolVar(&list, "list", false, "print every stored notice")
	return cmd
}

func printState(w io.Writer, snap storage.State, list bool) {
	if snap.Fingerprint == "" && len(snap.Notices) == 0 {
		fmt.Fprintf(w, "state: %s\n", color.New(color.FgYellow).Sprint("EMPTY"))
		return
	}

	fmt.Fprintf(w, "hash:    %s\n", snap.Fingerprint)
	fmt.Fprintf(w, "notices: %d\n", len(snap.Notices))
	if storage.Fingerprint(snap.Notices) == snap.Fingerprint {
		fmt.Fprintf(w, "check:   %s\n", color.New(color.FgGreen).Sprint("OK"))
	} else {
		fmt.Fprintf(w, "check:   %s (hash does not match notices)\n", color.New(color.FgRed).Sprint("MISMATCH"))
	}
	if !list {
		return
	}

	fmt.Fprintln(w)
	for i, n := range notice.Reversed(snap.Notices) {
		at, err := notice.NormalizeTime(n.Time)
		if err != nil {
			at = n.Time
		}
		fmt.Fprintf(w, "%3d  %s  %-12s %v\n", i+1, at, n.Type, n.Values)
	}
}
