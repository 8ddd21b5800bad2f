package restproxy

import (
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/go-thor/restproxy/codec"
	"github.com/go-thor/restproxy/codec/form"
	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/internal/format"
	"github.com/go-thor/restproxy/invocation"
)

// Digester computes a parameter value from the otherwise complete invocation,
// typically a request signature. Digests run after every other parameter is
// bound and the body is serialized.
type Digester interface {
	Digest(inv *invocation.Invocation) (string, error)
}

// DigesterFunc adapts a function to Digester
type DigesterFunc func(inv *invocation.Invocation) (string, error)

// Digest calls f
func (f DigesterFunc) Digest(inv *invocation.Invocation) (string, error) {
	return f(inv)
}

// InvocationBuilder binds call arguments to a request description.
type InvocationBuilder struct {
	writers  *codec.Registry[codec.Writer]
	validate *validator.Validate
	newID    func() string
}

// NewInvocationBuilder creates a builder serializing bodies with writers
func NewInvocationBuilder(writers *codec.Registry[codec.Writer]) *InvocationBuilder {
	return &InvocationBuilder{
		writers:  writers,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		newID:    uuid.NewString,
	}
}

type digest struct {
	param    Param
	digester Digester
}

// Build creates the invocation for md and args. defaults holds default
// parameter values keyed by kind, then name; they apply to every invocation
// and are overridden by non-nil arguments.
func (b *InvocationBuilder) Build(md *invocation.MethodMetadata, args []any, defaults map[string]map[string]string) (*invocation.Invocation, error) {
	if len(args) != len(md.Params) {
		return nil, errors.Serialization(nil, "%s takes %d arguments, got %d", md.FullName(), len(md.Params), len(args))
	}

	inv := invocation.New(b.newID(), md)
	if err := applyDefaults(inv, defaults); err != nil {
		return nil, err
	}
	if md.Produces != "" {
		inv.SetHeader("Accept", md.Produces)
	}

	var digests []digest
	for i, p := range md.Params {
		arg := args[i]
		if s, ok := arg.(*Synchronized); ok {
			arg = s.CreateValue()
			inv.OneShot = true
		}
		if p.Digest {
			d, ok := arg.(Digester)
			if !ok {
				return nil, errors.Serialization(nil, "%s: digest parameter %q got %T", md.FullName(), p.Name, arg)
			}
			digests = append(digests, digest{param: p, digester: d})
			inv.OneShot = true
			continue
		}
		if isNil(arg) {
			if !p.Optional && !isBound(inv, p) {
				return nil, errors.Serialization(nil, "%s: required %s parameter %q is missing", md.FullName(), p.In, p.Name)
			}
			continue
		}
		if err := b.bind(inv, p, arg); err != nil {
			return nil, errors.Serialization(err, "%s: bind %s parameter %q", md.FullName(), p.In, p.Name)
		}
	}

	if err := resolveURL(inv); err != nil {
		return nil, err
	}
	if err := b.serialize(inv); err != nil {
		return nil, err
	}

	if len(digests) == 0 {
		return inv, nil
	}
	reserialize := false
	for _, d := range digests {
		v, err := d.digester.Digest(inv)
		if err != nil {
			return nil, errors.Serialization(err, "%s: digest %q", md.FullName(), d.param.Name)
		}
		setValue(inv, d.param.In, d.param.Name, []string{v})
		reserialize = reserialize || d.param.In == InForm
	}
	if err := resolveURL(inv); err != nil {
		return nil, err
	}
	if reserialize {
		if err := b.serialize(inv); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

func (b *InvocationBuilder) bind(inv *invocation.Invocation, p Param, arg any) error {
	if validatable(arg) {
		if err := b.validate.Struct(arg); err != nil {
			return err
		}
	}

	switch p.In {
	case InBody:
		inv.Body = arg
		return nil
	case InQuery, InForm:
		if p.Name == "" {
			if !format.IsStruct(arg) {
				return fmt.Errorf("unnamed parameter needs a struct, got %T", arg)
			}
			values, err := form.Encode(arg)
			if err != nil {
				return err
			}
			for k, v := range values {
				setValue(inv, p.In, k, v)
			}
			return nil
		}
		values, err := format.Values(arg)
		if err != nil {
			return err
		}
		setValue(inv, p.In, p.Name, values)
		return nil
	}

	s, err := format.Value(arg)
	if err != nil {
		return err
	}
	setValue(inv, p.In, p.Name, []string{s})
	return nil
}

// serialize writes the body with the writer registered for the request content type
func (b *InvocationBuilder) serialize(inv *invocation.Invocation) error {
	md := inv.Metadata
	if md.Consumes == "" {
		if inv.Body != nil {
			return errors.Serialization(nil, "%s has a body but no request content type", md.FullName())
		}
		return nil
	}
	w, err := b.writers.Resolve(md.Consumes)
	if err != nil {
		return err
	}
	payload, err := w.Write(inv)
	if err != nil {
		if errors.KindOf(err) == errors.KindUnknown {
			err = errors.Serialization(err, "write %s body", md.Consumes)
		}
		return err
	}
	inv.Payload = payload
	if payload != nil {
		if _, ok := inv.Headers["Content-Type"]; !ok {
			inv.SetHeader("Content-Type", md.Consumes)
		}
	}
	return nil
}

func applyDefaults(inv *invocation.Invocation, defaults map[string]map[string]string) error {
	for kind, params := range defaults {
		in := invocation.ParamKind(kind)
		switch in {
		case InPath, InQuery, InForm, InHeader:
		default:
			return errors.Configuration("default parameter kind %q is not supported", kind)
		}
		for name, v := range params {
			setValue(inv, in, name, []string{v})
		}
	}
	return nil
}

func setValue(inv *invocation.Invocation, in invocation.ParamKind, name string, values []string) {
	switch in {
	case InPath:
		if len(values) > 0 {
			inv.PathParams[name] = values[0]
		}
	case InQuery:
		inv.Query[name] = values
	case InForm:
		inv.Form[name] = values
	case InHeader:
		if len(values) > 0 {
			inv.SetHeader(name, values[0])
		}
	}
}

// isBound reports whether a default already fills p
func isBound(inv *invocation.Invocation, p Param) bool {
	switch p.In {
	case InPath:
		_, ok := inv.PathParams[p.Name]
		return ok
	case InQuery:
		_, ok := inv.Query[p.Name]
		return ok && p.Name != ""
	case InForm:
		_, ok := inv.Form[p.Name]
		return ok && p.Name != ""
	case InHeader:
		_, ok := inv.Headers[http.CanonicalHeaderKey(p.Name)]
		return ok
	}
	return false
}

func resolveURL(inv *invocation.Invocation) error {
	u := inv.Metadata.URLTemplate()
	for _, name := range invocation.PathVariables(u) {
		v, ok := inv.PathParams[name]
		if !ok {
			return errors.Serialization(nil, "%s: path parameter %q is unbound", inv.Metadata.FullName(), name)
		}
		u = strings.ReplaceAll(u, "{"+name+"}", url.PathEscape(v))
	}
	if len(inv.Query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + inv.Query.Encode()
	}
	inv.URL = u
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

// validatable reports whether v is a struct the validator accepts
func validatable(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Struct && rv.Type() != timeType
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
