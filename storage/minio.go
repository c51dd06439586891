package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"DuetFM/config"
	"DuetFM/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	minioClient *minio.Client
	minioBucket string
	publicURL   string
)

// ObjectInfo 列表结果的精简视图
type ObjectInfo struct {
	Key  string
	Size int64
}

// InitMinio 初始化 MinIO 客户端并确保存储桶存在
func InitMinio(cfg *config.Config) error {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("created MinIO bucket", logger.String("bucket", cfg.MinioBucket))
	}

	minioClient = client
	minioBucket = cfg.MinioBucket
	publicURL = strings.TrimSuffix(cfg.MinioPublicURL, "/")
	return nil
}

// GetMinioClient 获取全局客户端，未初始化时返回 nil
func GetMinioClient() *minio.Client {
	return minioClient
}

// Bucket 返回配置的存储桶名
func Bucket() string {
	return minioBucket
}

// UploadAudio 上传音频对象并返回可访问的URL
// 未配置公网URL时返回服务端代理路径 /media/{object}
func UploadAudio(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	if minioClient == nil {
		return "", fmt.Errorf("MinIO client not initialized")
	}

	if _, err := minioClient.PutObject(ctx, minioBucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("上传音频文件失败: %w", err)
	}

	if publicURL != "" {
		return fmt.Sprintf("%s/%s/%s", publicURL, minioBucket, objectName), nil
	}
	return "/media/" + objectName, nil
}

// RemoveObject 删除对象，对象不存在时不视为错误
func RemoveObject(ctx context.Context, objectName string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	return minioClient.RemoveObject(ctx, minioBucket, objectName, minio.RemoveObjectOptions{})
}

// ListObjects 按前缀列出对象
func ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if minioClient == nil {
		return nil, fmt.Errorf("MinIO client not initialized")
	}

	var result []ObjectInfo
	for obj := range minioClient.ListObjects(ctx, minioBucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		result = append(result, ObjectInfo{Key: obj.Key, Size: obj.Size})
	}
	return result, nil
}
