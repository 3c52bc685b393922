package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"fontguard/pkg/asset"
	"fontguard/pkg/ignore"
	"fontguard/pkg/storage"
	"fontguard/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const contentType = "font/woff2"

// Adapter 实现了 storage.Store 接口
// S3 的 PutObject 本身就是原子的：读者看到的要么是旧对象要么是新对象
type Adapter struct {
	client       *s3.Client
	bucket       string
	prefix       string // 比如 "fonts/"
	backupPrefix string // 比如 "fonts-backup/"
	matcher      *ignore.Matcher
	logger       *slog.Logger
}

var _ storage.Store = (*Adapter)(nil)

// Config 用于初始化 Adapter
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	BackupPrefix    string
}

// NewAdapter 初始化 S3 客户端 (适配 AWS SDK v2 最新规范)
// 不访问网络：Bucket 的创建放在 EnsureReady
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	prefix := normalizePrefix(cfg.Prefix, "fonts/")
	backupPrefix := normalizePrefix(cfg.BackupPrefix, "fonts-backup/")
	if prefix == backupPrefix {
		return nil, fmt.Errorf("s3 backup prefix must differ from prefix %q", prefix)
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// 如果指定了 Endpoint (比如 MinIO 的 localhost:9000)，则覆盖默认值
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// MinIO 必须强制使用 Path Style
		o.UsePathStyle = true
	})

	return &Adapter{
		client:       client,
		bucket:       cfg.Bucket,
		prefix:       prefix,
		backupPrefix: backupPrefix,
		matcher:      ignore.NewDefaultMatcher(),
		logger:       slog.Default().With("store", "s3", "bucket", cfg.Bucket),
	}, nil
}

// normalizePrefix 保证前缀以 "/" 结尾且不以 "/" 开头
func normalizePrefix(p, fallback string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return fallback
	}
	return p + "/"
}

func (s *Adapter) Location() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

// transformKey 将文件名转换为 S3 Key
// Logic: "roboto.woff2" -> "fonts/roboto.woff2"
func (s *Adapter) transformKey(prefix, name string) (string, error) {
	if err := types.ValidateFileName(name); err != nil {
		return "", err
	}
	return prefix + name, nil
}

// EnsureReady 确保 Bucket 存在
func (s *Adapter) EnsureReady(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	// Head 失败则尝试创建；并发创建时 "已存在" 也算成功
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("%w: ensure bucket %s: %w", storage.ErrStore, s.bucket, err)
	}
	return nil
}

// Commit 上传一个已校验的资产
func (s *Adapter) Commit(ctx context.Context, rec *asset.Record) error {
	if rec == nil || !rec.Validated() {
		return fmt.Errorf("refusing to commit an unvalidated asset")
	}
	key, err := s.transformKey(s.prefix, rec.FileName())
	if err != nil {
		return err
	}
	if err := s.put(ctx, key, rec.Bytes()); err != nil {
		return fmt.Errorf("%w: commit %s: %w", storage.ErrStore, rec.FileName(), err)
	}
	return nil
}

func (s *Adapter) put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return err
}

// List 使用分页器惰性枚举 prefix 下的资产
func (s *Adapter) List(ctx context.Context) iter.Seq2[string, error] {
	return s.list(ctx, s.prefix)
}

func (s *Adapter) list(ctx context.Context, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket:    aws.String(s.bucket),
			Prefix:    aws.String(prefix),
			Delimiter: aws.String("/"), // 扁平布局，不下钻子目录
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				yield("", fmt.Errorf("s3 list failed: %w", err))
				return
			}
			for _, obj := range page.Contents {
				name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
				if name == "" || s.matcher.Matches(name) {
					continue
				}
				if !yield(name, nil) {
					return
				}
			}
		}
	}
}

// Get 下载资产
func (s *Adapter) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	key, err := s.transformKey(s.prefix, name)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, key)
}

func (s *Adapter) get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// 将 AWS 的 NoSuchKey 错误映射为我们自己的 ErrNotFound
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	return resp.Body, nil
}

// Has 检查资产是否存在
func (s *Adapter) Has(ctx context.Context, name string) (bool, error) {
	key, err := s.transformKey(s.prefix, name)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *s3types.NotFound
	var noKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noKey) {
		return false, nil
	}
	// 兼容性：某些 S3 实现可能返回 generic 404 error string
	if strings.Contains(err.Error(), "404") {
		return false, nil
	}
	return false, err
}

// -----------------------------------------------------------------------------
// Backup
// -----------------------------------------------------------------------------

// BackupExisting 把 prefix 下的资产复制到 backupPrefix
// 新对象全部写完之后，才删除旧备份中多余的对象，最后写清单
func (s *Adapter) BackupExisting(ctx context.Context) (*storage.BackupSet, error) {
	var names []string
	for name, err := range s.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("%w: scan store: %w", storage.ErrStore, err)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, nil
	}

	var stale []string
	for name, err := range s.list(ctx, s.backupPrefix) {
		if err != nil {
			return nil, fmt.Errorf("%w: scan backup: %w", storage.ErrStore, err)
		}
		stale = append(stale, name)
	}

	var entries []storage.BackupEntry
	var skipped []string
	kept := make(map[string]bool, len(names))
	for _, name := range names {
		entry, err := s.copyToBackup(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("asset vanished during backup", "file", name)
			skipped = append(skipped, name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: backup %s: %w", storage.ErrStore, name, err)
		}
		entries = append(entries, entry)
		kept[name] = true
	}

	// 取代而不是合并：删除不属于本次快照的旧备份对象
	var drop []s3types.ObjectIdentifier
	for _, name := range stale {
		if !kept[name] {
			drop = append(drop, s3types.ObjectIdentifier{Key: aws.String(s.backupPrefix + name)})
		}
	}
	if len(drop) > 0 {
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3types.Delete{Objects: drop, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: prune old backup: %w", storage.ErrStore, err)
		}
	}

	set := storage.NewBackupSet("s3://"+s.bucket+"/"+s.backupPrefix, time.Now(), entries, skipped)
	manifest, err := set.EncodeManifest()
	if err != nil {
		return nil, err
	}
	if err := s.put(ctx, s.backupPrefix+storage.ManifestName, manifest); err != nil {
		return nil, fmt.Errorf("%w: write backup manifest: %w", storage.ErrStore, err)
	}
	s.logger.Info("backup created", "prefix", s.backupPrefix, "files", set.Len(), "skipped", len(skipped))
	return set, nil
}

// copyToBackup 读取资产并写到备份前缀，同时计算 SHA-256
// 字体文件很小，整体读入内存
func (s *Adapter) copyToBackup(ctx context.Context, name string) (storage.BackupEntry, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return storage.BackupEntry{}, storage.ErrNotFound
		}
		return storage.BackupEntry{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return storage.BackupEntry{}, err
	}
	if err := s.put(ctx, s.backupPrefix+name, data); err != nil {
		return storage.BackupEntry{}, err
	}

	entry := storage.BackupEntry{
		Name: name,
		Size: int64(len(data)),
		Hash: storage.HashBytes(data),
	}
	if resp.LastModified != nil {
		entry.ModTime = resp.LastModified.Unix()
	}
	return entry, nil
}

// LoadBackup 读取备份清单
func (s *Adapter) LoadBackup(ctx context.Context) (*storage.BackupSet, error) {
	rc, err := s.get(ctx, s.backupPrefix+storage.ManifestName)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, storage.ErrNoBackup
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read backup manifest: %w", storage.ErrStore, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read backup manifest: %w", storage.ErrStore, err)
	}
	return storage.DecodeManifest("s3://"+s.bucket+"/"+s.backupPrefix, data)
}

// OpenBackup 读取备份中的某个文件
func (s *Adapter) OpenBackup(ctx context.Context, name string) (io.ReadCloser, error) {
	key, err := s.transformKey(s.backupPrefix, name)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, key)
}
