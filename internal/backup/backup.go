// Package backup dumps the ledger to JSON and loads it back.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/punchamoorthee/creditledger/internal/domain"
	"github.com/punchamoorthee/creditledger/internal/logger"
	"github.com/punchamoorthee/creditledger/internal/store"
)

// Uploader is the part of *s3manager.Uploader used here.
type Uploader interface {
	UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// NewS3Uploader builds an uploader from the default AWS credential chain.
// An empty region falls back to AWS_REGION.
func NewS3Uploader(region string) (*s3manager.Uploader, error) {
	cfg := &aws.Config{}
	if region != "" {
		cfg.Region = aws.String(region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return s3manager.NewUploader(sess), nil
}

// Export reads a consistent snapshot of the whole ledger.
func Export(ctx context.Context, s store.Store) (*domain.Snapshot, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return snap, nil
}

// Write encodes snap as indented JSON.
func Write(w io.Writer, snap *domain.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Read decodes a snapshot and normalises it for restore: unknown rank codes
// become SD and missing due dates are derived from the sale date in loc.
func Read(r io.Reader, loc *time.Location) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}

	for i := range snap.Clients {
		c := &snap.Clients[i]
		if !domain.ValidLevel(c.Level) {
			logger.Log.Warn("unknown level in backup, using SD",
				logger.Int64("client_id", c.ID), logger.String("level", c.Level))
			c.Level = domain.NormalizeLevel(c.Level)
		}
	}
	for i := range snap.Purchases {
		p := &snap.Purchases[i]
		if p.ID <= 0 || p.ClientID <= 0 {
			return nil, fmt.Errorf("sale at index %d has no id or client_id", i)
		}
		if p.DatePay.IsZero() {
			p.DatePay = domain.DueDate(p.DateSell.In(loc))
		}
	}
	return &snap, nil
}

// Restore upserts snap into s. Existing rows with the same ids are
// overwritten, except that a paid purchase stays paid.
func Restore(ctx context.Context, s store.Store, snap *domain.Snapshot) error {
	if err := s.Restore(ctx, snap); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	logger.Log.Info("backup restored",
		logger.Int("clients", len(snap.Clients)),
		logger.Int("products", len(snap.Products)),
		logger.Int("sales", len(snap.Purchases)),
	)
	return nil
}

// Upload stores snap as a JSON object at bucket/key.
func Upload(ctx context.Context, u Uploader, bucket, key string, snap *domain.Snapshot) error {
	var buf bytes.Buffer
	if err := Write(&buf, snap); err != nil {
		return err
	}
	out, err := u.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        &buf,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", bucket, key, err)
	}
	logger.Log.Info("backup uploaded", logger.String("location", out.Location))
	return nil
}
