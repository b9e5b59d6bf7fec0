package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// BackupConfig configures the off-box backup uploader. Grounded on
// internal/reliability/r2_backup_service.go, generalized from the
// teacher's SQLite-database tar target to this engine's JSON/JSONL state
// tree and pointed at a generic S3-compatible endpoint (so it works
// against Cloudflare R2, AWS S3, or MinIO without a dedicated client
// type) via github.com/aws/aws-sdk-go-v2.
type BackupConfig struct {
	Bucket          string
	Endpoint        string // optional: non-AWS S3-compatible endpoint
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Enabled reports whether enough configuration is present to back up at
// all (spec.md §4.16 "a no-op otherwise").
func (c BackupConfig) Enabled() bool { return c.Bucket != "" }

// excludedDirs never get archived: candles/ is large and fully
// re-derivable from the exchange, so shipping it off-box wastes bucket
// space and bandwidth for no recovery benefit.
var excludedDirs = map[string]bool{"candles": true}

// BackupUploader tars up a mode's data directory (excluding candles/)
// and uploads it to an S3-compatible bucket.
type BackupUploader struct {
	cfg     BackupConfig
	dataDir string
	client  *s3.Client
	log     zerolog.Logger
}

// NewBackupUploader builds the AWS SDK v2 S3 client from cfg. Returns a
// nil-client uploader (all methods become no-ops) when cfg is not
// Enabled, so callers never need to branch on configuration themselves.
func NewBackupUploader(ctx context.Context, cfg BackupConfig, dataDir string, log zerolog.Logger) (*BackupUploader, error) {
	u := &BackupUploader{cfg: cfg, dataDir: dataDir, log: log.With().Str("component", "backup").Logger()}
	if !cfg.Enabled() {
		return u, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	u.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return u, nil
}

// CreateAndUpload archives dataDir (skipping excludedDirs) and uploads
// it as a timestamped tar.gz object. No-op when the uploader is not
// Enabled.
func (u *BackupUploader) CreateAndUpload(ctx context.Context) error {
	if !u.cfg.Enabled() {
		return nil
	}
	u.log.Info().Msg("starting off-box backup")
	start := time.Now()

	stagingDir, err := os.MkdirTemp("", "spotengine-backup-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	archiveName := fmt.Sprintf("spotengine-backup-%s.tar.gz", time.Now().UTC().Format("2006-01-02-150405"))
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := u.createArchive(archivePath); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(archiveName),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload to s3: %w", err)
	}

	u.log.Info().
		Dur("duration_ms", time.Since(start)).
		Str("archive", archiveName).
		Int64("size_kb", info.Size()/1024).
		Msg("off-box backup completed")
	return nil
}

func (u *BackupUploader) createArchive(archivePath string) error {
	af, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer af.Close()
	gw := gzip.NewWriter(af)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	return filepath.Walk(u.dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(u.dataDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		top := strings.SplitN(rel, string(filepath.Separator), 2)[0]
		if excludedDirs[top] {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		return addFileToArchive(tw, path, rel, info)
	})
}

func addFileToArchive(tw *tar.Writer, path, nameInArchive string, info os.FileInfo) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := &tar.Header{Name: nameInArchive, Size: info.Size(), Mode: int64(info.Mode()), ModTime: info.ModTime()}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// ListBackups returns every backup object in the bucket, newest first.
func (u *BackupUploader) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	if !u.cfg.Enabled() {
		return nil, nil
	}
	out, err := u.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(u.cfg.Bucket),
		Prefix: aws.String("spotengine-backup-"),
	})
	if err != nil {
		return nil, fmt.Errorf("list s3 objects: %w", err)
	}

	backups := make([]BackupInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		name := *obj.Key
		ts := strings.TrimSuffix(strings.TrimPrefix(name, "spotengine-backup-"), ".tar.gz")
		parsed, err := time.Parse("2006-01-02-150405", ts)
		if err != nil {
			continue
		}
		size := int64(0)
		if obj.Size != nil {
			size = *obj.Size
		}
		backups = append(backups, BackupInfo{Filename: name, Timestamp: parsed, SizeBytes: size})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })
	return backups, nil
}

// RotateOldBackups deletes backups past RetentionDays, always keeping at
// least 3 regardless of age.
func (u *BackupUploader) RotateOldBackups(ctx context.Context) error {
	if !u.cfg.Enabled() || u.cfg.RetentionDays <= 0 {
		return nil
	}
	backups, err := u.ListBackups(ctx)
	if err != nil {
		return err
	}
	const minKeep = 3
	if len(backups) <= minKeep {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -u.cfg.RetentionDays)

	for i, b := range backups {
		if i < minKeep || !b.Timestamp.Before(cutoff) {
			continue
		}
		if _, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(u.cfg.Bucket), Key: aws.String(b.Filename),
		}); err != nil {
			u.log.Warn().Err(err).Str("filename", b.Filename).Msg("failed to delete old backup")
		}
	}
	return nil
}

// BackupInfo describes one archived backup object.
type BackupInfo struct {
	Filename  string
	Timestamp time.Time
	SizeBytes int64
}
