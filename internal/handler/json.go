package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// errBadBody marks request bodies that are not a JSON object of the expected shape.
var errBadBody = errors.New("invalid JSON body")

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// decodeObject reads the request body and calls fn for every top-level key.
// An empty body counts as an empty object. Anything after the object is
// rejected.
func decodeObject(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(errBadBody, err.Error())
	}
	if len(body) == 0 {
		return nil
	}

	if !jx.Valid(body) {
		return errBadBody
	}
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return errBadBody
	}
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	}); err != nil {
		return errors.Wrap(errBadBody, err.Error())
	}
	return nil
}

// decodeText stores a JSON string in dst. Null leaves dst empty; any other
// value is kept as its raw JSON text so it still counts as present.
func decodeText(d *jx.Decoder, dst *string) error {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		*dst = s
		return nil
	case jx.Null:
		return d.Null()
	default:
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		*dst = string(raw)
		return nil
	}
}

func decodeInt(d *jx.Decoder, field string, dst *int) error {
	if d.Next() != jx.Number {
		return errors.Errorf("%s must be an integer", field)
	}
	v, err := d.Int()
	if err != nil {
		return errors.Wrapf(err, "%s must be an integer", field)
	}
	*dst = v
	return nil
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder, field string, dst *decimal.Decimal) error {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return errors.Wrapf(err, "%s must be a number", field)
		}
		raw = string(n)
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return errors.Wrapf(err, "%s must be a number", field)
		}
		raw = s
	default:
		return errors.Errorf("%s must be a number", field)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return errors.Wrapf(err, "%s must be a number", field)
	}
	*dst = v
	return nil
}

// encodeDecimal writes v as an exact JSON number.
func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}
