package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/domain/jsoncfg"
	"studio/internal/infra"
	"studio/internal/providers/genai"
	videoprovider "studio/internal/providers/video"
)

const (
	jobPollInterval = 2 * time.Second
	staleAfter      = 30 * time.Minute
)

type keyInvalidator interface {
	InvalidateGeminiAPIKey(ctx context.Context) error
}

type blobWriter interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

type jobWorker struct {
	generations domain.GenerationRepository
	results     domain.ResultRepository
	keys        keyInvalidator
	generator   videoprovider.Generator
	store       blobWriter
	logger      infra.Logger
	poll        time.Duration
}

func (w *jobWorker) Run(ctx context.Context) error {
	poll := w.poll
	if poll <= 0 {
		poll = jobPollInterval
	}
	w.logger.Info().Msg("started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		job, err := w.generations.Claim(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				w.logger.Error().Err(err).Msg("claim failed")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(poll):
			}
			continue
		}
		w.handleJob(ctx, job)
	}
}

func (w *jobWorker) handleJob(ctx context.Context, job *domain.GenerationJob) {
	log := w.logger.With().Str("job_id", job.ID).Str("mode", string(job.Mode)).Logger()
	log.Info().Msg("picked job")

	err := w.process(ctx, job)
	if err == nil {
		if err := w.generations.Complete(ctx, job.ID); err != nil {
			log.Error().Err(err).Msg("mark complete failed")
		}
		return
	}
	if ctx.Err() != nil {
		// shutting down: RequeueStale picks the job up on the next start
		log.Warn().Err(err).Msg("job interrupted")
		return
	}

	kind := classify(err)
	log.Error().Err(err).Str("kind", string(kind)).Msg("job failed")
	if kind == domain.ErrorKindAuth && w.keys != nil {
		if ierr := w.keys.InvalidateGeminiAPIKey(ctx); ierr != nil {
			log.Warn().Err(ierr).Msg("invalidate api key failed")
		}
	}
	if ferr := w.generations.Fail(ctx, job.ID, kind, failureMessage(err)); ferr != nil {
		log.Error().Err(ferr).Msg("mark failed failed")
	}
}

func (w *jobWorker) process(ctx context.Context, job *domain.GenerationJob) error {
	doc, err := jsoncfg.Decode(job.RequestJSON)
	if err != nil {
		return err
	}
	reqs, err := doc.Requests()
	if err != nil {
		return err
	}
	clips, err := w.generator.Generate(ctx, reqs)
	if err != nil {
		return err
	}
	for _, clip := range clips {
		key := fmt.Sprintf("videos/%s/%d%s", job.ID, clip.Index, extensionForMIME(clip.MIME))
		saved, err := w.store.Write(ctx, key, clip.Data)
		if err != nil {
			return fmt.Errorf("store clip %d: %w", clip.Index, err)
		}
		result := &domain.GenerationResult{
			JobID:      job.ID,
			Index:      clip.Index,
			StorageKey: saved,
			RemoteURI:  clip.RemoteURI,
			MIME:       clip.MIME,
			Bytes:      int64(len(clip.Data)),
			Prompt:     job.Prompt,
		}
		if err := w.results.Save(ctx, result); err != nil {
			return err
		}
	}
	w.logger.Info().Str("job_id", job.ID).Int("clips", len(clips)).Msg("job succeeded")
	return nil
}

// classify maps a generation failure onto the kind shown to the user.
func classify(err error) domain.ErrorKind {
	var genErr *genai.GenerationError
	switch {
	case errors.As(err, &genErr):
		return genErr.Kind
	case errors.Is(err, domain.ErrMissingAPIKey), errors.Is(err, domain.ErrEntityNotFound):
		return domain.ErrorKindAuth
	case errors.Is(err, domain.ErrQuotaExhausted):
		return domain.ErrorKindQuotaExhausted
	default:
		return domain.ErrorKindGeneric
	}
}

func failureMessage(err error) string {
	if errors.Is(err, domain.ErrMissingAPIKey) {
		return "no API key selected, please select a key and try again"
	}
	return err.Error()
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "video/mp4":
		return ".mp4"
	case domain.ArtifactMIME, "video/avi":
		return domain.ArtifactExt
	case "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}
