package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"noticebot/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "noticebot",
		Short: "Forward GZ::CTF game notices to a Telegram chat",
		Long: `noticebot polls the public notice feed of a GZ::CTF game and posts every
new notice (new challenges, bloods, hints) to a Telegram group.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.RunCmd())
	rootCmd.AddCommand(cli.StateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
