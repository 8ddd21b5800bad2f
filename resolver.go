package restproxy

import (
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"

	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
)

// MetadataResolver derives dispatch metadata on first use of a method and
// caches it for the resolver's lifetime. Concurrent first use of the same
// method computes it once.
type MetadataResolver struct {
	desc    *ServiceDesc
	baseURL string
	factory MetadataFactory
	logger  hclog.Logger

	cache sync.Map // method name -> *invocation.MethodMetadata
	group singleflight.Group
	size  atomic.Int64
}

// NewMetadataResolver creates a resolver for desc rooted at baseURL
func NewMetadataResolver(desc *ServiceDesc, baseURL string, factory MetadataFactory, logger hclog.Logger) *MetadataResolver {
	if factory == nil {
		factory = DefaultMetadataFactory{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &MetadataResolver{
		desc:    desc,
		baseURL: baseURL,
		factory: factory,
		logger:  logger,
	}
}

// Resolve returns the metadata for method
func (r *MetadataResolver) Resolve(method string) (*invocation.MethodMetadata, error) {
	if md, ok := r.cache.Load(method); ok {
		return md.(*invocation.MethodMetadata), nil
	}

	v, err, _ := r.group.Do(method, func() (interface{}, error) {
		// Re-check: another flight may have stored it between Load and Do
		if md, ok := r.cache.Load(method); ok {
			return md, nil
		}
		m, ok := r.desc.Method(method)
		if !ok {
			return nil, errors.Configuration("service %s has no method %q", r.desc.Name, method)
		}
		md, err := r.factory.Create(r.desc, m, r.baseURL)
		if err != nil {
			return nil, err
		}
		if md == nil {
			return nil, errors.Configuration("no metadata for %s.%s", r.desc.Name, method)
		}
		r.cache.Store(method, md)
		r.size.Add(1)
		r.logger.Trace("metadata resolved", "method", md.FullName(), "url", md.URLTemplate())
		return md, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*invocation.MethodMetadata), nil
}

// Preload resolves every declared method and reports all failures
func (r *MetadataResolver) Preload() error {
	var result *multierror.Error
	for _, m := range r.desc.Methods {
		if _, err := r.Resolve(m.Name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Len returns the number of cached entries
func (r *MetadataResolver) Len() int {
	return int(r.size.Load())
}
