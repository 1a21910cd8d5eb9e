package api

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

// decodeBody reads the request body and walks its top-level object, calling
// field for every key. Returns a client-facing error on malformed input.
func decodeBody(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(err, "read body")
	}

	d := jx.DecodeBytes(raw)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		return field(d, key)
	}); err != nil {
		return errors.Wrap(err, "invalid JSON body")
	}
	return nil
}

// respond writes a JSON response built by the given encoder function.
func respond(w http.ResponseWriter, r *http.Request, status int, encode func(e *jx.Encoder)) {
	e := &jx.Encoder{}
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(e.Bytes()); err != nil {
		zctx.From(r.Context()).Debug("write response", zap.Error(err))
	}
}

// money encodes a decimal amount as a JSON number with two fraction digits.
func money(e *jx.Encoder, v decimal.Decimal) {
	e.RawStr(v.StringFixed(2))
}
