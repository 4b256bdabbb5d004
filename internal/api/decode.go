package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"nnoitra-backend/internal/apperr"
	"nnoitra-backend/internal/dispatch"
)

const (
	contextKeyPayload = "payload"
	contextKeyAction  = "action"

	maxMultipartMemory = 1 << 20
)

// errMalformedBody is returned for a body that does not parse as its
// declared content type
var errMalformedBody = apperr.New(apperr.KindInvalidInput, "Malformed request body.")

// decodeAccounting parses the request body into a payload and resolves the
// action from the query string, falling back to the body field.
func (h *Handler) decodeAccounting(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := decodePayload(c.Request())
		if err != nil {
			h.log.Debug("malformed accounting body",
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Error(err))
			resp := dispatch.ErrorResponse(errMalformedBody)
			return c.JSON(resp.Code, resp.Body)
		}

		action := c.QueryParam(dispatch.FieldAction)
		if action == "" {
			action = p.Get(dispatch.FieldAction)
		}
		delete(p, dispatch.FieldAction)

		c.Set(contextKeyPayload, p)
		c.Set(contextKeyAction, action)
		return next(c)
	}
}

func payloadFrom(c echo.Context) dispatch.Payload {
	if p, ok := c.Get(contextKeyPayload).(dispatch.Payload); ok {
		return p
	}
	return dispatch.Payload{}
}

func actionFrom(c echo.Context) string {
	a, _ := c.Get(contextKeyAction).(string)
	return a
}

// decodePayload reads a multipart, urlencoded or JSON body into a flat
// payload. A request without a body yields an empty payload.
func decodePayload(r *http.Request) (dispatch.Payload, error) {
	p := dispatch.Payload{}

	ct := r.Header.Get(echo.HeaderContentType)
	if ct == "" {
		if r.ContentLength > 0 {
			return nil, errors.New("missing content type")
		}
		return p, nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, fmt.Errorf("content type: %w", err)
	}

	switch mediaType {
	case echo.MIMEMultipartForm:
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, fmt.Errorf("multipart form: %w", err)
		}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				p[k] = v[0]
			}
		}
	case echo.MIMEApplicationForm:
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("form: %w", err)
		}
		for k, v := range r.PostForm {
			if len(v) > 0 {
				p[k] = v[0]
			}
		}
	case echo.MIMEApplicationJSON:
		if err := decodeJSON(r.Body, p); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
	return p, nil
}

// decodeJSON accepts an object whose values are strings, numbers, booleans
// or null. Null fields are treated as absent.
func decodeJSON(body io.Reader, p dispatch.Payload) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	if dec.More() {
		return errors.New("json: trailing data")
	}
	if fields == nil {
		return errors.New("json: body is not an object")
	}

	for k, v := range fields {
		switch v := v.(type) {
		case nil:
		case string:
			p[k] = v
		case json.Number:
			p[k] = v.String()
		case bool:
			p[k] = strconv.FormatBool(v)
		default:
			return fmt.Errorf("json: field %q is not a scalar", k)
		}
	}
	return nil
}
