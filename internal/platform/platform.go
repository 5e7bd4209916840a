// Package platform routes publish and comment requests to the adapter
// registered for a post's platform.
package platform

import (
	"context"
	"fmt"

	"social_scheduler/internal/domain"
)

// Adapter is the capability a social platform client provides.
type Adapter interface {
	Platform() domain.Platform
	Publish(ctx context.Context, content, imagePath string) (*domain.PublishResult, error)
	Comments(ctx context.Context, postID string) ([]domain.Comment, error)
}

// Registry is resolved once at startup; lookups are read only afterwards.
type Registry struct {
	adapters map[domain.Platform]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.Platform]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

func (r *Registry) Supports(platform domain.Platform) bool {
	_, ok := r.adapters[platform]
	return ok
}

// Platforms lists the registered platforms.
func (r *Registry) Platforms() []domain.Platform {
	out := make([]domain.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	return out
}

func (r *Registry) Publish(ctx context.Context, platform domain.Platform, content, imagePath string) (*domain.PublishResult, error) {
	a, err := r.adapter(platform)
	if err != nil {
		return nil, err
	}
	return a.Publish(ctx, content, imagePath)
}

func (r *Registry) GetComments(ctx context.Context, platform domain.Platform, postID string) ([]domain.Comment, error) {
	a, err := r.adapter(platform)
	if err != nil {
		return nil, err
	}
	return a.Comments(ctx, postID)
}

func (r *Registry) adapter(platform domain.Platform) (Adapter, error) {
	a, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}
	return a, nil
}
