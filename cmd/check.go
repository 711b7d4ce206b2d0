package cmd

import (
	"fmt"
	"log"

	"TandemFM/cache"
	"TandemFM/config"
	"TandemFM/db"
	"TandemFM/storage"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "检查外部依赖连接",
	Long:  `依次检查MySQL、Redis和MinIO连接是否可用。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		fmt.Printf("MySQL: %s:%s/%s\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
		gdb, err := db.Connect(cfg)
		if err != nil {
			log.Fatalf("MySQL connection failed: %v", err)
		}
		db.Close(gdb)
		fmt.Println("MySQL OK")

		fmt.Printf("Redis: %s:%s db %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)
		rdb, err := cache.NewClient(cfg)
		if err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		rdb.Close()
		fmt.Println("Redis OK")

		fmt.Printf("MinIO: %s bucket %s\n", cfg.MinioEndpoint, cfg.MinioBucket)
		if _, err := storage.NewMediaStore(cfg); err != nil {
			log.Fatalf("MinIO connection failed: %v", err)
		}
		fmt.Println("MinIO OK")
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
