package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"studio/internal/domain"
	"studio/internal/domain/jsoncfg"
	"studio/internal/gallery"
	"studio/pkg/zip"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

type videoGenerateRequest struct {
	Mode    domain.Mode    `json:"mode"`
	Prompt  string         `json:"prompt"`
	Options domain.Options `json:"options"`
	// Images are http(s) URLs, data URLs or gallery references.
	Images []string `json:"images"`
}

type jobResponse struct {
	JobID  string           `json:"job_id"`
	Status domain.JobStatus `json:"status"`
	Count  int              `json:"generations"`
}

func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	var req videoGenerateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if len(req.Images) > domain.ImageLimit {
		a.error(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("maximum of %d images", domain.ImageLimit))
		return
	}
	images, err := a.loadImages(r, req.Images)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	doc := jsoncfg.RequestDocument{
		Mode:    req.Mode,
		Prompt:  req.Prompt,
		Options: req.Options,
		Images:  images,
	}
	a.enqueue(w, r, doc)
}

type extendRequest struct {
	Prompt  string         `json:"prompt"`
	Options domain.Options `json:"options"`
}

// ExtendResult queues a continuation of a stored result.
func (a *App) ExtendResult(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if !a.decode(w, r, &req) {
		return
	}
	result, err := a.Results.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	src := result.ExtensionSource()
	doc := jsoncfg.RequestDocument{
		Mode:      domain.ModeExtend,
		Prompt:    req.Prompt,
		Options:   req.Options,
		Extension: &src,
	}
	a.enqueue(w, r, doc)
}

func (a *App) enqueue(w http.ResponseWriter, r *http.Request, doc jsoncfg.RequestDocument) {
	doc.Normalize()
	if doc.Options.Model == "" {
		doc.Options.Model = a.DefaultModel
	}
	reqs, err := doc.Requests()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	first := reqs[0]
	jobID, err := a.Generations.Enqueue(r.Context(), doc.Mode, first.Options().Model, first.Prompt(), jsoncfg.MustMarshal(doc))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, jobResponse{JobID: jobID, Status: domain.JobStatusQueued, Count: len(reqs)})
}

// loadImages fetches every reference concurrently, keeping input order.
func (a *App) loadImages(r *http.Request, refs []string) ([]domain.Image, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	out := make([]domain.Image, len(refs))
	g, ctx := errgroup.WithContext(r.Context())
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			if a.Gallery != nil {
				resolved, err := a.Gallery.Resolve(ref)
				if err != nil {
					return err
				}
				ref = resolved
			}
			img, err := a.Images.Load(ctx, ref)
			if err != nil {
				return err
			}
			out[i] = img.Image
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *App) GalleryList(w http.ResponseWriter, _ *http.Request) {
	var items []gallery.Image
	if a.Gallery != nil {
		items = a.Gallery.List()
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

type jobStatusResponse struct {
	*domain.GenerationJob
	Retryable bool   `json:"retryable"`
	Action    string `json:"action,omitempty"`
}

func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	job, err := a.Generations.Get(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := jobStatusResponse{GenerationJob: job}
	if job.Status == domain.JobStatusFailed {
		resp.Retryable = job.ErrorKind.Retryable()
		switch job.ErrorKind {
		case domain.ErrorKindAuth:
			resp.Action = "select_api_key"
		case domain.ErrorKindQuotaExhausted:
			resp.Action = "check_billing"
		}
	}
	a.json(w, http.StatusOK, resp)
}

type resultItem struct {
	domain.GenerationResult
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
	Extendable  bool   `json:"extendable"`
}

func (a *App) VideoResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := a.Generations.Get(r.Context(), jobID); err != nil {
		a.fail(w, r, err)
		return
	}
	results, err := a.Results.ListByJob(r.Context(), jobID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]resultItem, 0, len(results))
	for _, res := range results {
		items = append(items, resultItem{
			GenerationResult: res,
			Filename:         resultFilename(res),
			DownloadURL:      "/v1/results/" + res.ID + "/download",
			Extendable:       res.RemoteURI != "",
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) VideoArchive(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := a.Generations.Get(r.Context(), jobID); err != nil {
		a.fail(w, r, err)
		return
	}
	results, err := a.Results.ListByJob(r.Context(), jobID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if len(results) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "job has no results")
		return
	}
	entries := make([]zip.Entry, 0, len(results))
	for _, res := range results {
		key := res.StorageKey
		entries = append(entries, zip.Entry{
			Filename: resultFilename(res),
			Modified: res.CreatedAt,
			Open: func() (io.ReadCloser, error) {
				f, _, err := a.Files.Open(key)
				return f, err
			},
		})
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment("veo-videos-"+jobID+".zip"))
	w.WriteHeader(http.StatusOK)
	if err := zip.Write(w, entries); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("archive stream failed")
	}
}

func (a *App) DownloadResult(w http.ResponseWriter, r *http.Request) {
	res, err := a.Results.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.serveFile(w, r, res.StorageKey, res.MIME, resultFilename(*res))
}

func (a *App) serveFile(w http.ResponseWriter, r *http.Request, key, mime, filename string) {
	f, _, err := a.Files.Open(key)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", attachment(filename))
	http.ServeContent(w, r, filename, st.ModTime(), f)
}

// resultFilename swaps the default extension when the stored container
// differs.
func resultFilename(res domain.GenerationResult) string {
	name := res.DownloadName()
	if res.MIME == domain.ArtifactMIME {
		name = strings.TrimSuffix(name, path.Ext(name)) + domain.ArtifactExt
	}
	return name
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
