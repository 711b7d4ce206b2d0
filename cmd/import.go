package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TandemFM/config"
	"TandemFM/core/library"
	"TandemFM/core/player"
	"TandemFM/db"
	"TandemFM/logger"
	"TandemFM/model"
	"TandemFM/repository"

	"github.com/spf13/cobra"
)

var importUserID int64

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "监听目录并导入音频文件",
	Long:  `监听本地目录，新出现的音频文件自动入库，归属于指定用户。`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
		})

		dir := cfg.ImportDir
		if len(args) > 0 {
			dir = args[0]
		}
		if dir == "" {
			logger.Fatal("no import directory; pass one or set IMPORT_DIR")
		}

		gdb, err := db.Connect(cfg)
		if err != nil {
			logger.Fatal("failed to connect to database", logger.ErrorField(err))
		}
		defer db.Close(gdb)

		trackRepo := repository.NewGormTrackRepository(gdb)
		engine := player.NewEngine(nil)

		persist := func(track model.Track) {
			if err := trackRepo.Upsert(context.Background(), &track); err != nil {
				logger.Error("failed to persist imported track",
					logger.ErrorField(err),
					logger.String("title", track.Title))
			}
		}

		w, err := library.NewWatcher(dir, importUserID, engine, persist)
		if err != nil {
			logger.Fatal("failed to start watcher", logger.ErrorField(err))
		}
		defer w.Close()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
	},
}

func init() {
	importCmd.Flags().Int64Var(&importUserID, "user", 0, "owner user id for imported tracks")
	importCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(importCmd)
}
