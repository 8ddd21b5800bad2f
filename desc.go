package restproxy

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-thor/restproxy/codec"
	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
)

// Param binds one method argument to a request part
type Param = invocation.Param

// Parameter kinds
const (
	InPath   = invocation.InPath
	InQuery  = invocation.InQuery
	InForm   = invocation.InForm
	InHeader = invocation.InHeader
	InBody   = invocation.InBody
)

// ServiceDesc describes a remote service: the interface-level path and the
// table of methods reachable under it.
type ServiceDesc struct {
	// Name identifies the service in logs and errors
	Name string
	// Path is the interface-level path segment; "/" for the root
	Path string
	// Methods are the declared operations
	Methods []MethodDesc
}

// MethodDesc describes one operation of a service.
type MethodDesc struct {
	Name string
	// HTTPMethod is the request verb
	HTTPMethod string
	// Path is the method-level path template, with {name} placeholders
	Path string
	// Consumes is the request content type. Empty picks form for form params,
	// JSON for a body param, and no body otherwise.
	Consumes string
	// Produces is the response content type, JSON when empty
	Produces string
	// Params bind arguments in order
	Params []Param
	// Result is the type the response body decodes into; nil discards the body
	Result reflect.Type
	// Error is the type a non-2xx body decodes into, if any
	Error reflect.Type
}

// ResultOf returns the reflect.Type of T, for use in MethodDesc.Result and MethodDesc.Error
func ResultOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Method returns the method named name
func (s *ServiceDesc) Method(name string) (*MethodDesc, bool) {
	for i := range s.Methods {
		if s.Methods[i].Name == name {
			return &s.Methods[i], true
		}
	}
	return nil, false
}

// MetadataFactory derives dispatch metadata from a method declaration.
type MetadataFactory interface {
	Create(svc *ServiceDesc, method *MethodDesc, baseURL string) (*invocation.MethodMetadata, error)
}

// MetadataFactoryFunc adapts a function to MetadataFactory
type MetadataFactoryFunc func(svc *ServiceDesc, method *MethodDesc, baseURL string) (*invocation.MethodMetadata, error)

// Create calls f
func (f MetadataFactoryFunc) Create(svc *ServiceDesc, method *MethodDesc, baseURL string) (*invocation.MethodMetadata, error) {
	return f(svc, method, baseURL)
}

// DefaultMetadataFactory validates declarations and fills in content type defaults
type DefaultMetadataFactory struct{}

var httpMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// Create returns the metadata for method, or a configuration error
func (DefaultMetadataFactory) Create(svc *ServiceDesc, method *MethodDesc, baseURL string) (*invocation.MethodMetadata, error) {
	name := svc.Name + "." + method.Name
	if svc.Path == "" {
		return nil, errors.Configuration("service %s has no path declaration", svc.Name)
	}
	verb := strings.ToUpper(method.HTTPMethod)
	if verb == "" {
		return nil, errors.Configuration("method %s has no HTTP method", name)
	}
	if !httpMethods[verb] {
		return nil, errors.Configuration("method %s: unknown HTTP method %q", name, method.HTTPMethod)
	}

	declared := make(map[string]bool)
	var hasForm, hasBody bool
	for _, p := range method.Params {
		switch p.In {
		case InPath:
			if p.Name == "" {
				return nil, errors.Configuration("method %s: path parameter without a name", name)
			}
			if p.Digest {
				return nil, errors.Configuration("method %s: digest parameter %q cannot be bound to the path", name, p.Name)
			}
			declared[p.Name] = true
		case InQuery:
		case InForm:
			hasForm = true
		case InHeader:
			if p.Name == "" {
				return nil, errors.Configuration("method %s: header parameter without a name", name)
			}
		case InBody:
			if hasBody {
				return nil, errors.Configuration("method %s declares more than one body parameter", name)
			}
			if p.Digest {
				return nil, errors.Configuration("method %s: digest parameter cannot be the body", name)
			}
			hasBody = true
		default:
			return nil, errors.Configuration("method %s: unknown parameter kind %q", name, p.In)
		}
		if p.Digest && p.Name == "" {
			return nil, errors.Configuration("method %s: digest parameter without a name", name)
		}
	}
	if hasForm && hasBody && method.Consumes != "" && codec.Normalize(method.Consumes) != codec.ContentTypeForm {
		return nil, errors.Configuration("method %s mixes form and body parameters", name)
	}

	md := &invocation.MethodMetadata{
		Service:       svc.Name,
		Name:          method.Name,
		HTTPMethod:    verb,
		BaseURL:       baseURL,
		InterfacePath: svc.Path,
		MethodPath:    method.Path,
		Consumes:      method.Consumes,
		Produces:      method.Produces,
		Params:        append([]Param(nil), method.Params...),
		Result:        method.Result,
		ErrorType:     method.Error,
	}

	used := make(map[string]bool)
	for _, v := range invocation.PathVariables(md.URLTemplate()) {
		if !declared[v] {
			return nil, errors.Configuration("method %s: path variable {%s} has no parameter", name, v)
		}
		used[v] = true
	}
	for v := range declared {
		if !used[v] {
			return nil, errors.Configuration("method %s: path parameter %q is not in the path", name, v)
		}
	}

	if md.Consumes == "" {
		switch {
		case hasForm:
			md.Consumes = codec.ContentTypeForm
		case hasBody:
			md.Consumes = codec.ContentTypeJSON
		}
	}
	if md.Produces == "" {
		md.Produces = codec.ContentTypeJSON
	}
	return md, nil
}

var _ MetadataFactory = DefaultMetadataFactory{}
