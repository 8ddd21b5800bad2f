package invocation

import (
	"reflect"
	"strings"
)

// ParamKind identifies the request part a parameter is bound to.
type ParamKind string

const (
	// InPath binds to a {name} placeholder in the path template
	InPath ParamKind = "path"
	// InQuery binds to the query string
	InQuery ParamKind = "query"
	// InForm binds to a form-url-encoded body field
	InForm ParamKind = "form"
	// InHeader binds to a request header
	InHeader ParamKind = "header"
	// InBody binds to the request body
	InBody ParamKind = "body"
)

// Param describes how one method argument is bound to the request.
type Param struct {
	// Name is the path placeholder, query/form field or header name.
	// An empty name on a query or form param expands a struct argument into its fields.
	Name string
	// In is the request part the argument is bound to
	In ParamKind
	// Optional params may be left unbound (nil argument and no default)
	Optional bool
	// Digest params are computed last from the partially built invocation
	Digest bool
}

// MethodMetadata describes how one service method maps to an HTTP request.
// It is derived once per method and never mutated afterwards.
type MethodMetadata struct {
	// Service is the name of the owning service
	Service string
	// Name is the method name
	Name string
	// HTTPMethod is the request verb
	HTTPMethod string
	// BaseURL is the client base URL
	BaseURL string
	// InterfacePath is the service-level path segment
	InterfacePath string
	// MethodPath is the method-level path template
	MethodPath string
	// Consumes is the request content type, empty when the request has no body
	Consumes string
	// Produces is the response content type
	Produces string
	// Params are the argument bindings, in argument order
	Params []Param
	// Result is the type the response is decoded into, nil for no value
	Result reflect.Type
	// ErrorType is the type a non-2xx body is decoded into, nil if undeclared
	ErrorType reflect.Type
}

// FullName returns "service.method"
func (m *MethodMetadata) FullName() string {
	return m.Service + "." + m.Name
}

// URLTemplate returns the base URL, interface path and method path joined by single slashes.
func (m *MethodMetadata) URLTemplate() string {
	return JoinPath(m.BaseURL, m.InterfacePath, m.MethodPath)
}

// NewResult returns a pointer to a new zero value of the result type, or nil.
func (m *MethodMetadata) NewResult() reflect.Value {
	if m.Result == nil {
		return reflect.Value{}
	}
	return reflect.New(m.Result)
}

// NewError returns a pointer to a new zero value of the declared error type, or nil.
func (m *MethodMetadata) NewError() reflect.Value {
	if m.ErrorType == nil {
		return reflect.Value{}
	}
	return reflect.New(m.ErrorType)
}

// JoinPath joins a base URL and path segments with exactly one slash between non-empty parts.
// A trailing slash on the last segment is kept.
func JoinPath(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	trailing := false
	for _, s := range segments {
		t := strings.Trim(s, "/")
		if t == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(t)
		trailing = strings.HasSuffix(s, "/")
	}
	if trailing {
		b.WriteByte('/')
	}
	return b.String()
}

// PathVariables returns the {name} placeholders of a path template in order of appearance.
func PathVariables(template string) []string {
	var vars []string
	for {
		start := strings.IndexByte(template, '{')
		if start < 0 {
			return vars
		}
		end := strings.IndexByte(template[start:], '}')
		if end < 0 {
			return vars
		}
		vars = append(vars, template[start+1:start+end])
		template = template[start+end+1:]
	}
}
