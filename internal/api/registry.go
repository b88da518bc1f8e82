package api

import (
	"github.com/biopareto/server/internal/cache"
	"github.com/biopareto/server/internal/enrich"
	"github.com/biopareto/server/internal/metrics"
	"github.com/biopareto/server/internal/panel"
	"github.com/biopareto/server/internal/render"
	"github.com/biopareto/server/internal/session"
)

// Registry holds the services shared by all handlers.
type Registry struct {
	Session  *session.Store
	Panel    *panel.Store
	Cache    *cache.Manager
	Renderer *render.Renderer
	Enrich   *enrich.Client
	Jobs     *JobManager
	Metrics  *metrics.Metrics

	title           string
	defaultOrganism string
	maxUploadBytes  int64
	colormap        string
}

// RegistryOptions contains the presentation settings of a Registry.
type RegistryOptions struct {
	Title           string
	DefaultOrganism string
	MaxUploadMB     int
	Colormap        string
}

// NewRegistry creates a registry. Services are assigned on the returned
// value.
func NewRegistry(opts RegistryOptions) *Registry {
	maxUpload := int64(opts.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 64 << 20
	}
	return &Registry{
		title:           opts.Title,
		defaultOrganism: opts.DefaultOrganism,
		maxUploadBytes:  maxUpload,
		colormap:        opts.Colormap,
	}
}

// Title returns the configured site title.
func (r *Registry) Title() string {
	if r.title != "" {
		return r.title
	}
	return "BioPareto Analyzer"
}

// DefaultOrganism returns the organism used when a request names none.
func (r *Registry) DefaultOrganism() string {
	if r.defaultOrganism != "" {
		return r.defaultOrganism
	}
	return "hsapiens"
}

// MaxUploadBytes returns the request size limit for front uploads.
func (r *Registry) MaxUploadBytes() int64 {
	return r.maxUploadBytes
}

// Colormap returns the plot palette name, used in plot cache keys.
func (r *Registry) Colormap() string {
	if r.colormap != "" {
		return r.colormap
	}
	return "category"
}
