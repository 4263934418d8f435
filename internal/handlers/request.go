package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/shopfront/accounts/internal/apperr"
	"github.com/shopfront/accounts/internal/media"
)

// maxMultipartMemory is the part of a multipart body kept in memory; the rest spills to disk
const maxMultipartMemory = 10 << 20 // 10MB

const avatarField = "avatar"

// decodeBody fills dst from a JSON, multipart or urlencoded body.
// Form values are mapped onto the json tags of dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var values map[string][]string
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return bodyError(err)
		}
		values = r.MultipartForm.Value
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return bodyError(err)
		}
		values = r.PostForm
	default:
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return bodyError(err)
		}
		return nil
	}

	fields := make(map[string]string, len(values))
	for key, v := range values {
		if len(v) > 0 {
			fields[key] = v[0]
		}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return bodyError(err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return bodyError(err)
	}
	return nil
}

func bodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return apperr.BadRequest("Request body too large")
	}
	return apperr.BadRequest("Invalid request body")
}

// readAvatar returns the avatar sent as a multipart file or as a data URI field.
// It returns nil when the request carries no avatar. decodeBody must run first.
func readAvatar(r *http.Request, dataURI string) (*media.Payload, error) {
	if r.MultipartForm != nil {
		file, header, err := r.FormFile(avatarField)
		switch {
		case err == nil:
			defer file.Close()
			payload, err := media.ReadPayload(file, header.Header.Get("Content-Type"))
			if err != nil {
				return nil, apperr.BadRequest("Avatar must be a valid image")
			}
			return payload, nil
		case !errors.Is(err, http.ErrMissingFile):
			return nil, apperr.BadRequest("Failed to process avatar file")
		}
	}

	if dataURI == "" {
		return nil, nil
	}
	payload, err := media.DecodeDataURI(dataURI)
	if err != nil {
		return nil, apperr.BadRequest("Avatar must be a valid image")
	}
	return payload, nil
}

// resetBaseURL returns the scheme and host reset links are built on
func resetBaseURL(r *http.Request, override string) string {
	if override != "" {
		return override
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}
