package cmd

import (
	"fmt"
	"log"

	"DuetFM/config"
	"DuetFM/storage"

	"github.com/spf13/cobra"
)

var minioPrefix string

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶检查",
	Long:  `测试MinIO连接并列出存储桶中的上传文件，用于排查上传歌曲丢失的问题。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始连接MinIO服务器...")

		cfg := config.Load()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		fmt.Printf("\n列出存储桶中的文件 (前缀: %s)...\n", minioPrefix)
		objects, err := storage.ListObjects(cmd.Context(), minioPrefix)
		if err != nil {
			log.Fatalf("列出文件失败: %v", err)
		}
		for _, obj := range objects {
			fmt.Printf("  %s\t%d bytes\n", obj.Key, obj.Size)
		}
		fmt.Printf("\n共 %d 个文件，MinIO操作完成！\n", len(objects))
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件")

	minioCmd.Example = `  # 列出所有文件
  duetfm_server minio

  # 按前缀过滤文件
  duetfm_server minio -p "audio/"`
}
