package annotate

import (
	"context"
	"errors"

	"audionest/internal/domain/narrative"
)

// ErrAnnotationFailed marks a recoverable failure; callers fall back to
// narrative.Default().
var ErrAnnotationFailed = errors.New("annotation failed")

// Request carries everything the service needs. No state is kept between
// requests.
type Request struct {
	Text            string
	PreviousContext string
}

type Annotator interface {
	Annotate(ctx context.Context, req Request) (narrative.Annotation, error)
}

// Thread pairs every paragraph with its predecessor. The first paragraph gets
// an empty context.
func Thread(paragraphs []string) []Request {
	requests := make([]Request, 0, len(paragraphs))
	previous := ""
	for _, p := range paragraphs {
		requests = append(requests, Request{Text: p, PreviousContext: previous})
		previous = p
	}
	return requests
}

// Func adapts a function to the Annotator interface.
type Func func(ctx context.Context, req Request) (narrative.Annotation, error)

func (f Func) Annotate(ctx context.Context, req Request) (narrative.Annotation, error) {
	return f(ctx, req)
}
