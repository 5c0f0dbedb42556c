// Package video turns generation requests into downloaded clips.
package video

import (
	"context"

	"golang.org/x/sync/errgroup"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/providers/genai"
)

// Clip is one generated video in result order.
type Clip struct {
	Index     int
	RemoteURI string
	MIME      string
	Data      []byte
}

// Generator produces clips for a batch of requests that belong to one job.
type Generator interface {
	Generate(ctx context.Context, reqs []domain.GenerationRequest) ([]Clip, error)
}

// Client is the part of genai.Client the generator uses.
type Client interface {
	Generate(ctx context.Context, req domain.GenerationRequest) ([]genai.Video, error)
}

// VeoGenerator runs every request of a batch concurrently. A storyboard
// (one request per attached image) fails as a whole if any request fails.
type VeoGenerator struct {
	client Client
	logger infra.Logger
}

func NewVeoGenerator(client Client, logger infra.Logger) *VeoGenerator {
	return &VeoGenerator{client: client, logger: infra.Component(logger, "video")}
}

func (g *VeoGenerator) Generate(ctx context.Context, reqs []domain.GenerationRequest) ([]Clip, error) {
	batches := make([][]genai.Video, len(reqs))
	eg, ectx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		eg.Go(func() error {
			videos, err := g.client.Generate(ectx, req)
			if err != nil {
				return err
			}
			batches[i] = videos
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var clips []Clip
	for _, batch := range batches {
		for _, v := range batch {
			clips = append(clips, Clip{Index: len(clips), RemoteURI: v.URI, MIME: v.MIME, Data: v.Data})
		}
	}
	if len(clips) == 0 {
		return nil, domain.ErrNoVideos
	}
	g.logger.Debug().Int("requests", len(reqs)).Int("clips", len(clips)).Msg("batch generated")
	return clips, nil
}

var _ Generator = (*VeoGenerator)(nil)
var _ Client = (*genai.Client)(nil)
