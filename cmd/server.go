package cmd

import (
	"TandemFM/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动TandemFM服务器",
	Long:  `启动TandemFM的HTTP服务器，提供配对、曲目和房间实时同步服务`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
