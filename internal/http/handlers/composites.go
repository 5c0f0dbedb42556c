package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"studio/internal/compositor"
	"studio/internal/domain"

	"github.com/go-chi/chi/v5"
)

type mergeRequest struct {
	Surface   string   `json:"surface"`
	ResultIDs []string `json:"result_ids"`
}

// CompositeMerge registers a merge in its review stage. The clips keep the
// given order until they are reordered or processing starts.
func (a *App) CompositeMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if len(req.ResultIDs) < 2 {
		a.fail(w, r, domain.ErrMergeTooFewClips)
		return
	}
	clips := make([]domain.Clip, 0, len(req.ResultIDs))
	var prompt string
	for i, id := range req.ResultIDs {
		res, err := a.Results.Get(r.Context(), id)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if i == 0 {
			prompt = res.Prompt
		}
		clips = append(clips, clipFromResult(res))
	}
	job, err := a.Composites.CreateMerge(surface(r, req.Surface), clips, prompt)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, job.Snapshot())
}

type reorderRequest struct {
	Index     int              `json:"index"`
	Direction domain.Direction `json:"direction"`
}

func (a *App) CompositeReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !a.decode(w, r, &req) {
		return
	}
	job, err := a.Composites.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := job.Move(req.Index, req.Direction); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job.Snapshot())
}

func (a *App) CompositeStart(w http.ResponseWriter, r *http.Request) {
	job, err := a.Composites.Start(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, job.Snapshot())
}

type captionRequest struct {
	Surface  string         `json:"surface"`
	ResultID string         `json:"result_id"`
	Caption  domain.Caption `json:"caption"`
}

// CompositeCaption validates the caption and starts burning it into the
// result straight away.
func (a *App) CompositeCaption(w http.ResponseWriter, r *http.Request) {
	var req captionRequest
	if !a.decode(w, r, &req) {
		return
	}
	req.Caption.Normalize()
	if err := req.Caption.Validate(); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Results.Get(r.Context(), req.ResultID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	job, err := a.Composites.StartCaption(surface(r, req.Surface), clipFromResult(res), req.Caption, res.Prompt, res.Index)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, job.Snapshot())
}

func (a *App) CompositeStatus(w http.ResponseWriter, r *http.Request) {
	job, err := a.Composites.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"job":           job.Snapshot(),
		"download_name": job.DownloadName(),
	})
}

func (a *App) CompositeEvents(w http.ResponseWriter, r *http.Request) {
	job, err := a.Composites.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || since < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "since must be a non-negative integer")
			return
		}
	}
	a.json(w, http.StatusOK, map[string]any{"items": job.Events(since)})
}

func (a *App) CompositeCancel(w http.ResponseWriter, r *http.Request) {
	job, err := a.Composites.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job.Snapshot())
}

func (a *App) CompositeDownload(w http.ResponseWriter, r *http.Request) {
	job, err := a.Composites.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	snap := job.Snapshot()
	if snap.State != domain.StateDone || snap.Artifact == nil {
		a.error(w, http.StatusConflict, "not_ready", "composite is "+string(snap.State))
		return
	}
	art := snap.Artifact
	a.serveFile(w, r, art.StorageKey, art.MIME, art.DownloadName)
}

type previewRequest struct {
	Caption       domain.Caption `json:"caption"`
	DisplayHeight int            `json:"display_height"`
}

// CaptionPreview returns the on-screen layout of a caption without
// touching any video.
func (a *App) CaptionPreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.DisplayHeight <= 0 {
		a.error(w, http.StatusBadRequest, "invalid_request", "display_height must be positive")
		return
	}
	req.Caption.Normalize()
	if strings.TrimSpace(req.Caption.Text) != "" {
		if err := req.Caption.Validate(); err != nil {
			a.fail(w, r, err)
			return
		}
	}
	a.json(w, http.StatusOK, compositor.PreviewLayout(req.Caption, req.DisplayHeight))
}

func clipFromResult(res *domain.GenerationResult) domain.Clip {
	return domain.Clip{ID: res.ID, Source: res.StorageKey, Label: resultFilename(*res)}
}
