package archive

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// Store is one place uploads are copied to.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Archive copies every upload to all of its stores under the same key.
type Archive struct {
	stores []Store
	now    func() time.Time
}

func New(stores ...Store) *Archive {
	return &Archive{stores: stores, now: time.Now}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Key is kind/yyyy-mm-dd/uploadID-filename.
func Key(kind, uploadID, filename string, at time.Time) string {
	name := unsafeName.ReplaceAllString(filepath.Base(filename), "_")
	return path.Join(kind, at.Format("2006-01-02"), uploadID+"-"+name)
}

func (a *Archive) Save(ctx context.Context, kind, uploadID, filename string, data []byte) (string, error) {
	key := Key(kind, uploadID, filename, a.now())
	for _, s := range a.stores {
		if err := s.Put(ctx, key, data); err != nil {
			return key, err
		}
	}
	return key, nil
}

type Disk struct {
	dir string
}

func NewDisk(dir string) *Disk {
	return &Disk{dir: dir}
}

func (d *Disk) Put(_ context.Context, key string, data []byte) error {
	target := filepath.Join(d.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return errors.Wrap(err, "create archive folder")
	}
	return errors.Wrap(os.WriteFile(target, data, 0o644), "write archive file")
}

type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 uses the default AWS credential chain.
func NewS3(ctx context.Context, bucket, prefix string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return &S3{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

func (s *S3) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path.Join(s.prefix, key)),
		Body:   bytes.NewReader(data),
	})
	return errors.Wrapf(err, "put %s to bucket %s", key, s.bucket)
}
