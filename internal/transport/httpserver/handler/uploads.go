package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"family-circle-go/internal/domain/storage"
)

const (
	imageField            = "file"
	msgInvalidImageType   = "Image must be of type jpg, jpeg or png"
	multipartMemoryBuffer = 1 << 20
)

var (
	errImageTooLarge    = errors.New("image too large")
	errInvalidImageType = errors.New(msgInvalidImageType)
)

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// readImage returns the optional image part of a multipart form. A missing
// part is not an error.
func (h *Handlers) readImage(r *http.Request) (*storage.File, error) {
	file, header, err := r.FormFile(imageField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	if _, ok := allowedImageTypes[contentType]; !ok {
		return nil, errInvalidImageType
	}
	if header.Size > h.maxImageBytes {
		return nil, errImageTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.maxImageBytes {
		return nil, errImageTooLarge
	}

	return &storage.File{
		Name:        header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (h *Handlers) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+multipartMemoryBuffer)
	return r.ParseMultipartForm(multipartMemoryBuffer)
}
