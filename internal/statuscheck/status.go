package statuscheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// Checker aggregates health checks for the subsystems the dashboard shows.
type Checker struct {
	redis     RedisPinger
	s3Bucket  string
	resultDir string
}

// Options configures the Checker.
type Options struct {
	Redis     RedisPinger
	S3Bucket  string
	ResultDir string
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses for the dashboard.
type Summary struct {
	Redis     Status `json:"redis"`
	S3        Status `json:"s3"`
	ResultDir Status `json:"result_dir"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	return &Checker{
		redis:     opts.Redis,
		s3Bucket:  opts.S3Bucket,
		resultDir: opts.ResultDir,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Redis:     c.checkRedis(ctx),
		S3:        c.checkS3(ctx),
		ResultDir: c.checkResultDir(),
	}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: false, Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: err.Error()}
	}
	return Status{OK: true, Message: "connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
	if c.s3Bucket == "" {
		return Status{OK: false, Message: "no bucket configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return Status{OK: false, Message: err.Error()}
	}
	cli := s3.NewFromConfig(cfg)
	if _, err := cli.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &c.s3Bucket}); err != nil {
		return Status{OK: false, Message: fmt.Sprintf("bucket %s: %v", c.s3Bucket, err)}
	}
	return Status{OK: true, Message: "bucket " + c.s3Bucket}
}

func (c *Checker) checkResultDir() Status {
	if c.resultDir == "" {
		return Status{OK: false, Message: "not configured"}
	}
	if err := os.MkdirAll(c.resultDir, 0o755); err != nil {
		return Status{OK: false, Message: err.Error()}
	}
	probe := filepath.Join(c.resultDir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return Status{OK: false, Message: err.Error()}
	}
	_ = os.Remove(probe)
	return Status{OK: true, Message: c.resultDir}
}
