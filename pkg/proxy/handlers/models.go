package handlers

import (
	"context"

	"mercator-hq/callisto/pkg/provider"
)

// ProviderModelSource adapts the provider client to the ModelSource
// interface the chat handler consumes.
type ProviderModelSource struct {
	Client *provider.Client
}

func (s ProviderModelSource) ModelIDs(ctx context.Context) []string {
	models := s.Client.Models(ctx)
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	return ids
}
