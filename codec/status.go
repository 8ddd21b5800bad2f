package codec

import (
	"reflect"

	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
)

// UnmarshalFunc decodes data into the value v points to
type UnmarshalFunc func(data []byte, v any) error

// Decode decodes the body into a new value of the method's result type.
// A method without a result type, or an empty body, yields nil.
func Decode(res *invocation.Result, md *invocation.MethodMetadata, unmarshal UnmarshalFunc) (any, error) {
	ptr := md.NewResult()
	if !ptr.IsValid() || len(res.Body) == 0 {
		return nil, nil
	}
	if err := unmarshal(res.Body, ptr.Interface()); err != nil {
		return nil, errors.Serialization(err, "decode %s response", md.FullName())
	}
	return ptr.Elem().Interface(), nil
}

// RemoteError builds the error for a non-2xx response. When the method declares an
// error type and unmarshal is non-nil, the body is decoded into it as the error detail;
// a body that does not decode is kept raw only.
func RemoteError(res *invocation.Result, md *invocation.MethodMetadata, unmarshal UnmarshalFunc) error {
	var detail any
	if ptr := md.NewError(); ptr.IsValid() && unmarshal != nil && len(res.Body) > 0 {
		if err := unmarshal(res.Body, ptr.Interface()); err == nil {
			detail = ptr.Interface()
			if md.ErrorType.Kind() == reflect.Ptr {
				detail = ptr.Elem().Interface()
			}
		}
	}
	return errors.RemoteStatus(res.StatusCode, res.Body, detail)
}
