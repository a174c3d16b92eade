package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfbinder/internal/config"
	"github.com/local/pdfbinder/internal/filetype"
	"github.com/local/pdfbinder/internal/limiter"
	"github.com/local/pdfbinder/internal/merge"
	"github.com/local/pdfbinder/internal/metrics"
	"github.com/local/pdfbinder/internal/preview"
	"github.com/local/pdfbinder/internal/source"
	"github.com/local/pdfbinder/internal/store"
)

// StatusStore records per-job merge status.
type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

// Archive stores merged outputs off-host. Optional.
type Archive interface {
	SaveResult(ctx context.Context, jobID string, pdf []byte, passphrase string) (string, error)
}

type Dependencies struct {
	Status  StatusStore
	Archive Archive // nil disables S3 archiving
	Limiter *limiter.Merges
	Cfg     config.Config
}

type Orchestrator struct {
	deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
	if deps.Limiter == nil {
		deps.Limiter = limiter.New(deps.Cfg.Limits.ConcurrentMerges)
	}
	return &Orchestrator{deps: deps}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/merge_upload", o.handleMergeUpload)
	mux.HandleFunc("/merge_refs", o.handleMergeRefs)
	mux.HandleFunc("/progress/", o.handleProgress)
	mux.HandleFunc("/download_result/", o.handleDownloadResult)
	mux.HandleFunc("/preview/", o.handlePreview)
}

// handleMergeUpload merges multipart-uploaded PDFs and streams the result
// back as a download, the way the interactive shell consumes it.
func (o *Orchestrator) handleMergeUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	release, ok := o.deps.Limiter.Acquire()
	if !ok {
		http.Error(w, "too many concurrent merges", http.StatusTooManyRequests)
		return
	}
	defer release()

	maxBytes := o.deps.Cfg.Limits.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, fmt.Sprintf("upload exceeds %d MB", o.deps.Cfg.Limits.MaxUploadMB), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}
	if len(headers) > o.deps.Cfg.Limits.MaxDocuments {
		http.Error(w, fmt.Sprintf("too many documents: %d (limit %d)", len(headers), o.deps.Cfg.Limits.MaxDocuments), http.StatusBadRequest)
		return
	}

	docs := make([]merge.SourceDocument, 0, len(headers))
	for _, hdr := range headers {
		f, err := hdr.Open()
		if err != nil {
			http.Error(w, fmt.Sprintf("reading %s: %v", hdr.Filename, err), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, fmt.Sprintf("reading %s: %v", hdr.Filename, err), http.StatusBadRequest)
			return
		}
		if err := filetype.EnsurePDF(hdr.Filename, data); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		doc, err := merge.NewSourceDocument(hdr.Filename, data)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		docs = append(docs, doc)
	}

	links := o.deps.Cfg.Toc.Links
	if v := r.FormValue("links"); v != "" {
		links = v == "on" || v == "true" || v == "1"
	}

	jobID := uuid.NewString()
	res, err := o.runMerge(r.Context(), jobID, docs, links)
	if err != nil {
		o.failJob(r.Context(), jobID, err)
		http.Error(w, err.Error(), mergeErrorStatus(err))
		return
	}

	name := "merged_with_toc.pdf"
	if links {
		name = "merged_with_clickable_toc.pdf"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Job-Id", jobID)
	_, _ = w.Write(res.PDF)
}

type mergeRefsReq struct {
	Refs    []string `json:"refs"`
	Links   *bool    `json:"links,omitempty"`
	Archive bool     `json:"archive"`
}

type mergeRefsResp struct {
	Status      string `json:"status"`
	JobID       string `json:"job_id"`
	Pages       int    `json:"pages"`
	DownloadURL string `json:"download_url"`
	ArchiveURL  string `json:"archive_url,omitempty"`
	Message     string `json:"message,omitempty"`
}

// handleMergeRefs merges documents referenced by path/URL/S3 key. The output
// stays on the server (and optionally in S3); the response carries the job id
// to download it by.
func (o *Orchestrator) handleMergeRefs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req mergeRefsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(req.Refs) == 0 {
		http.Error(w, "no refs given", http.StatusBadRequest)
		return
	}
	if len(req.Refs) > o.deps.Cfg.Limits.MaxDocuments {
		http.Error(w, fmt.Sprintf("too many documents: %d (limit %d)", len(req.Refs), o.deps.Cfg.Limits.MaxDocuments), http.StatusBadRequest)
		return
	}

	release, ok := o.deps.Limiter.Acquire()
	if !ok {
		http.Error(w, "too many concurrent merges", http.StatusTooManyRequests)
		return
	}
	defer release()

	docs := make([]merge.SourceDocument, 0, len(req.Refs))
	for _, ref := range req.Refs {
		doc, err := source.Resolve(r.Context(), ref)
		if err != nil {
			metrics.ObserveFetch(source.Scheme(ref), "error")
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		metrics.ObserveFetch(source.Scheme(ref), "success")
		docs = append(docs, doc)
	}

	links := o.deps.Cfg.Toc.Links
	if req.Links != nil {
		links = *req.Links
	}

	jobID := uuid.NewString()
	res, err := o.runMerge(r.Context(), jobID, docs, links)
	if err != nil {
		o.failJob(r.Context(), jobID, err)
		http.Error(w, err.Error(), mergeErrorStatus(err))
		return
	}

	resp := mergeRefsResp{
		Status:      "ok",
		JobID:       jobID,
		Pages:       res.PageCount,
		DownloadURL: "/download_result/" + jobID,
	}
	if req.Archive && o.deps.Archive != nil {
		url, err := o.deps.Archive.SaveResult(r.Context(), jobID, res.PDF, o.deps.Cfg.Results.Passphrase)
		if err != nil {
			log.Error().Err(err).Str("job_id", jobID).Msg("archive failed")
			resp.Message = fmt.Sprintf("merged, but archiving failed: %v", err)
		} else {
			resp.ArchiveURL = url
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// runMerge performs the synchronous merge pipeline for one job and records
// its status transitions.
func (o *Orchestrator) runMerge(ctx context.Context, jobID string, docs []merge.SourceDocument, links bool) (*merge.Result, error) {
	start := time.Now()
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	_ = o.deps.Status.Set(ctx, jobID, store.Status{
		Status: "merging", Progress: 10, Message: "assembling output", Start: &start,
		Metadata: map[string]interface{}{"documents": names, "links": links},
	})

	layout := merge.DefaultLayout()
	layout.TitleText = o.deps.Cfg.Toc.Title

	res, err := merge.Merge(docs, merge.Options{Links: links, Layout: &layout})
	dur := time.Since(start)
	if err != nil {
		metrics.ObserveMerge(mergeErrorLabel(err), len(docs), 0, dur)
		return nil, err
	}
	metrics.ObserveMerge("success", len(docs), res.PageCount, dur)

	if _, err := SaveResultLocal(o.deps.Cfg.Results.Dir, jobID, res.PDF); err != nil {
		return nil, &merge.SerializationError{Err: err}
	}

	end := time.Now()
	_ = o.deps.Status.Set(ctx, jobID, store.Status{
		Status: "success", Progress: 100, Message: "merge complete", Start: &start, End: &end,
		Metadata: map[string]interface{}{"documents": names, "links": links, "pages": res.PageCount},
	})
	log.Info().Str("job_id", jobID).Int("documents", len(docs)).Int("pages", res.PageCount).Dur("took", dur).Msg("merge complete")
	return res, nil
}

func (o *Orchestrator) failJob(ctx context.Context, jobID string, err error) {
	end := time.Now()
	_ = o.deps.Status.Set(ctx, jobID, store.Status{
		Status: "failed", Progress: 100, Message: err.Error(), End: &end,
	})
	log.Error().Err(err).Str("job_id", jobID).Msg("merge failed")
}

func (o *Orchestrator) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/progress/")
	if jobID == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}
	st, found, err := o.deps.Status.Get(r.Context(), jobID)
	if err != nil {
		http.Error(w, "status lookup failed", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "unknown job", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

func (o *Orchestrator) handleDownloadResult(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/download_result/")
	pdf, err := LoadResultLocal(o.deps.Cfg.Results.Dir, jobID)
	if err != nil {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".pdf"))
	_, _ = w.Write(pdf)
}

func (o *Orchestrator) handlePreview(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/preview/")
	pdf, err := LoadResultLocal(o.deps.Cfg.Results.Dir, jobID)
	if err != nil {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}
	img, err := preview.TocPageJPEG(pdf, 110, 85)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("preview render failed")
		http.Error(w, "preview failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(img)
}

// mergeErrorStatus maps core merge errors onto HTTP status codes. Internal
// invariant violations are 500s; everything the caller caused is 4xx.
func mergeErrorStatus(err error) int {
	var (
		inv *merge.InvalidDocumentError
		re  *merge.DocumentReadError
		ov  *merge.TocOverflowError
	)
	switch {
	case errors.As(err, &inv), errors.As(err, &re):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ov):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func mergeErrorLabel(err error) string {
	var (
		inv *merge.InvalidDocumentError
		re  *merge.DocumentReadError
		ov  *merge.TocOverflowError
	)
	switch {
	case errors.As(err, &inv):
		return "invalid_input"
	case errors.As(err, &re):
		return "read_error"
	case errors.As(err, &ov):
		return "overflow"
	default:
		return "internal"
	}
}
