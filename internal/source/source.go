package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfbinder/internal/filetype"
	"github.com/local/pdfbinder/internal/merge"
)

// Scheme classifies a document reference for logging and metrics.
// Supported: "s3", "http", "file".
func Scheme(ref string) string {
	switch {
	case strings.HasPrefix(ref, "s3://"):
		return "s3"
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return "http"
	default:
		return "file"
	}
}

// Resolve fetches the PDF behind ref fully into memory and wraps it as a
// merge.SourceDocument. Supported references:
// - file://path or absolute/relative filesystem paths
// - http(s):// URLs
// - s3://bucket/key (AWS SDK v2)
// The payload is sniffed with magic bytes and must be a PDF.
func Resolve(ctx context.Context, ref string) (merge.SourceDocument, error) {
	var (
		name string
		data []byte
		err  error
	)

	switch Scheme(ref) {
	case "s3":
		name, data, err = fetchS3(ctx, ref)
	case "http":
		name, data, err = fetchHTTP(ctx, ref)
	default:
		p := strings.TrimPrefix(ref, "file://")
		name = filepath.Base(p)
		data, err = os.ReadFile(p)
	}
	if err != nil {
		return merge.SourceDocument{}, fmt.Errorf("fetch %s: %w", ref, err)
	}

	if err := filetype.EnsurePDF(name, data); err != nil {
		return merge.SourceDocument{}, err
	}

	doc, err := merge.NewSourceDocument(name, data)
	if err != nil {
		return merge.SourceDocument{}, err
	}
	log.Debug().Str("ref", ref).Str("name", name).Int("pages", doc.PageCount).Msg("resolved source document")
	return doc, nil
}

func fetchHTTP(ctx context.Context, rawurl string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}

	name := "document.pdf"
	if u, err := url.Parse(rawurl); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		name = path.Base(u.Path)
	}
	return name, data, nil
}

func fetchS3(ctx context.Context, s3url string) (string, []byte, error) {
	// s3://bucket/key
	p := strings.TrimPrefix(s3url, "s3://")
	slash := strings.Index(p, "/")
	if slash <= 0 || slash == len(p)-1 {
		return "", nil, fmt.Errorf("invalid s3 url: %s", s3url)
	}
	bucket := p[:slash]
	key := p[slash+1:]

	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return "", nil, err
	}
	cli := s3.NewFromConfig(cfg)

	out, err := cli.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return "", nil, err
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", nil, err
	}
	log.Info().Str("bucket", bucket).Str("key", key).Int("bytes", len(data)).Msg("downloaded s3 pdf")
	return path.Base(key), data, nil
}
