package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

const (
	encMagic   = "PBND1"
	saltLen    = 16
	pbkdf2Iter = 100_000
)

// S3Archive stores merged outputs in S3, optionally encrypted at rest. Merge
// inputs are often contracts and reports; an archived copy should not be
// readable by whoever can list the bucket.
type S3Archive struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// NewS3Archive creates an archive bound to one bucket, with credentials from
// the default AWS config chain.
func NewS3Archive(ctx context.Context, bucket string) (*S3Archive, error) {
	if bucket == "" {
		return nil, fmt.Errorf("no bucket configured")
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &S3Archive{
		client:   cli,
		uploader: manager.NewUploader(cli),
		bucket:   bucket,
	}, nil
}

// SaveResult uploads a merged PDF under results/<jobID>/merged.pdf and
// returns its s3:// URL. A non-empty passphrase encrypts the payload first.
func (a *S3Archive) SaveResult(ctx context.Context, jobID string, pdf []byte, passphrase string) (string, error) {
	key := fmt.Sprintf("results/%s/merged.pdf", jobID)
	body := pdf
	contentType := "application/pdf"
	meta := map[string]string{}

	if passphrase != "" {
		enc, err := encrypt(pdf, passphrase)
		if err != nil {
			return "", fmt.Errorf("encrypt result: %w", err)
		}
		body = enc
		contentType = "application/octet-stream"
		meta["encryption-format"] = encMagic
	}

	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	if err != nil {
		return "", fmt.Errorf("upload result: %w", err)
	}

	url := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	log.Info().Str("job_id", jobID).Str("url", url).Int("bytes", len(body)).Bool("encrypted", passphrase != "").Msg("archived merge result")
	return url, nil
}

// FetchResult downloads an archived result. The passphrase must match the
// one used at save time when the object is encrypted.
func (a *S3Archive) FetchResult(ctx context.Context, jobID, passphrase string) ([]byte, error) {
	key := fmt.Sprintf("results/%s/merged.pdf", jobID)
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download result: %w", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	if out.Metadata != nil && out.Metadata["encryption-format"] == encMagic {
		if passphrase == "" {
			return nil, fmt.Errorf("result %s is encrypted and no passphrase is configured", key)
		}
		return Decrypt(data, passphrase)
	}
	return data, nil
}

// encrypt seals data with AES-256-GCM under a PBKDF2-derived key.
// Layout: magic || salt || nonce || ciphertext.
func encrypt(data []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(encMagic)+saltLen+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, encMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Decrypt opens a payload produced by encrypt.
func Decrypt(data []byte, passphrase string) ([]byte, error) {
	if len(data) < len(encMagic)+saltLen || string(data[:len(encMagic)]) != encMagic {
		return nil, fmt.Errorf("not an encrypted result payload")
	}
	rest := data[len(encMagic):]
	salt, rest := rest[:saltLen], rest[saltLen:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("encrypted payload truncated")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt result: %w", err)
	}
	return plain, nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iter, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
