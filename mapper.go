package restproxy

import (
	"github.com/go-thor/restproxy/codec"
	"github.com/go-thor/restproxy/invocation"
)

// ResultMapper decodes results with the reader registered for the response content type
type ResultMapper struct {
	readers *codec.Registry[codec.Reader]
}

// NewResultMapper creates a mapper reading with readers
func NewResultMapper(readers *codec.Registry[codec.Reader]) *ResultMapper {
	return &ResultMapper{readers: readers}
}

// Map returns the decoded value. Reader errors, including remote status
// errors, are returned as is.
func (m *ResultMapper) Map(res *invocation.Result, md *invocation.MethodMetadata) (any, error) {
	r, err := m.readers.Resolve(md.Produces)
	if err != nil {
		return nil, err
	}
	return r.Read(res, md)
}
