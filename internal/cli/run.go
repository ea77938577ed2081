package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"noticebot/internal/app"
)

// RunCmd starts the bot and blocks until SIGINT/SIGTERM or a fatal error.
func RunCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the GZ::CTF notice feed and forward new notices to Telegram",
		Long: `Run the notice bot.

Configuration is read from --config (JSON or YAML). GZCTF_URL, MATCH_ID,
NOTICE_CHAT_ID (or GROUP_NOTICE_ID), NOTICE_THREAD_ID, TELEGRAM_TOKEN and
ALERT_CHAT_ID override file values.

Examples:
  noticebot run --config ./config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			a, err := app.NewApp(cfgPath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := a.Start(ctx); err != nil {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer stopCancel()
				_ = a.Stop(stopCtx, app.StopFatalError)
				return err
			}

			reason := app.StopUnknown
			select {
			case sig := <-sigCh:
				if sig == syscall.SIGTERM {
					reason = app.StopSIGTERM
				} else {
					reason = app.StopSIGINT
				}
			case <-a.Done():
				reason = app.StopFatalError
			}

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer stopCancel()
			stopErr := a.Stop(stopCtx, reason)
			if err := a.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return stopErr
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to config file (json or yaml)")
	return cmd
}
