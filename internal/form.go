package internal

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
)

// MaxFormBody caps how much of a request body FormValue buffers.
const MaxFormBody = 1 << 20

// FormValue returns the named value from the query string or, for url-encoded
// and multipart bodies, the form. Unlike (*http.Request).FormValue it puts the
// body back so the request can still be proxied upstream.
func FormValue(r *http.Request, name string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}

	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}

	if r.Form != nil {
		return r.Form.Get(name)
	}

	ct, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}

	switch ct {
	case "application/x-www-form-urlencoded":
	case "multipart/form-data":
		if params["boundary"] == "" {
			return ""
		}
	default:
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxFormBody+1))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil || len(body) > MaxFormBody {
		return ""
	}

	if ct == "multipart/form-data" {
		return multipartValue(body, params["boundary"], name)
	}

	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return ""
	}

	return vals.Get(name)
}

// multipartValue reads a non-file field from a buffered multipart body.
func multipartValue(body []byte, boundary, name string) string {
	form, err := multipart.NewReader(bytes.NewReader(body), boundary).ReadForm(MaxFormBody)
	if err != nil {
		return ""
	}
	defer form.RemoveAll()

	if vals := form.Value[name]; len(vals) != 0 {
		return vals[0]
	}

	return ""
}
