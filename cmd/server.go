package cmd

import (
	"DuetFM/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动DuetFM服务器",
	Long:  `启动DuetFM一起听音乐系统的HTTP服务器，提供房间同步、聊天和曲库API`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
