package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadFile 上传文件到指定路径
	UploadFile(ctx context.Context, objectName string, reader io.Reader, fileSize int64, contentType string) (string, error)

	// DownloadFile 下载文件
	DownloadFile(ctx context.Context, objectName string) ([]byte, error)

	// GetPresignedURL 获取预签名URL
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)

	// DeleteFile 删除文件
	DeleteFile(ctx context.Context, objectName string) error

	// UploadResultArtifact 上传筛选结果工件（评分JSON、批处理汇总、文本报告）
	UploadResultArtifact(ctx context.Context, ticketID, filename string, data []byte, contentType string) (string, error)

	// Close 释放资源
	Close() error
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能，存放筛选结果工件的远端副本
type MinIO struct {
	client        *minio.Client
	cfg           *config.MinIOConfig
	resultsBucket string
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	resultsBucket := cfg.ResultsBucket
	if resultsBucket == "" {
		resultsBucket = "screening-results"
	}

	m := &MinIO{
		client:        client,
		cfg:           cfg,
		resultsBucket: resultsBucket,
	}

	if err := m.ensureBucketExists(resultsBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保结果存储桶 %s 存在失败: %w", resultsBucket, err)
	}

	// 结果工件过期清理
	if cfg.ResultExpireDays > 0 {
		if err := m.setupBucketLifecycle(context.Background(), resultsBucket, "expire-screening-results", cfg.ResultExpireDays); err != nil {
			logger.Warn().Err(err).Str("bucket", resultsBucket).Msg("设置结果存储桶生命周期规则失败")
		}
	}

	logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", resultsBucket).Msg("MinIO客户端初始化成功")
	return m, nil
}

func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		if err := m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		logger.Info().Str("bucket", bucketName).Msg("存储桶创建成功")
	}
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, lc)
}

// UploadFile 上传文件到结果存储桶
func (m *MinIO) UploadFile(ctx context.Context, objectName string, reader io.Reader, fileSize int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.resultsBucket, objectName, reader, fileSize, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", m.resultsBucket, objectName, err)
	}
	return objectName, nil
}

// DownloadFile 下载文件
func (m *MinIO) DownloadFile(ctx context.Context, objectName string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.resultsBucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", m.resultsBucket, objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 失败: %w", m.resultsBucket, objectName, err)
	}
	return data, nil
}

// GetPresignedURL 获取对象的预签名下载URL
func (m *MinIO) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.resultsBucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}
	return u.String(), nil
}

// DeleteFile 删除对象
func (m *MinIO) DeleteFile(ctx context.Context, objectName string) error {
	if err := m.client.RemoveObject(ctx, m.resultsBucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s/%s 失败: %w", m.resultsBucket, objectName, err)
	}
	return nil
}

// UploadResultArtifact 上传筛选结果工件。
// 对象路径: results/{ticketID}/{filename}，同名覆盖，保持与本地产物一致。
func (m *MinIO) UploadResultArtifact(ctx context.Context, ticketID, filename string, data []byte, contentType string) (string, error) {
	if ticketID == "" || filename == "" {
		return "", fmt.Errorf("工单ID和文件名不能为空")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectName := path.Join("results", ticketID, filename)
	return m.UploadFile(ctx, objectName, bytes.NewReader(data), int64(len(data)), contentType)
}

// Close 释放资源，MinIO客户端无需显式关闭
func (m *MinIO) Close() error {
	return nil
}
