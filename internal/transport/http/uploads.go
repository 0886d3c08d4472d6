package http

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	apperrors "dataflow/internal/errors"
	"dataflow/pkg/contracts/domain"
)

const (
	// maxFilesPerRequest bounds a multipart request to this many files of
	// the maximum upload size
	maxFilesPerRequest = 10

	// multipartMemory is kept in memory before parts spill to disk
	multipartMemory = 8 << 20
)

// readUploads reads the files of the given form fields. A file larger than
// maxBytes is read one byte past the limit so the selector can reject it.
func readUploads(w http.ResponseWriter, r *http.Request, maxBytes int64, fields ...string) ([]domain.Upload, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return nil, apperrors.InvalidInput("expected a multipart/form-data upload")
	}
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes*maxFilesPerRequest+1<<20)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperrors.InvalidInputf("upload exceeds %d bytes", maxErr.Limit)
		}
		return nil, apperrors.New(apperrors.KindInvalidInput, "invalid multipart upload", err)
	}
	// The server removes only the form of its own request, not of the copies
	// handed down by the router.
	defer r.MultipartForm.RemoveAll()

	var uploads []domain.Upload
	for _, field := range fields {
		for _, header := range r.MultipartForm.File[field] {
			upload, err := readPart(header, maxBytes)
			if err != nil {
				return nil, err
			}
			uploads = append(uploads, upload)
		}
	}
	return uploads, nil
}

func readPart(header *multipart.FileHeader, maxBytes int64) (domain.Upload, error) {
	f, err := header.Open()
	if err != nil {
		return domain.Upload{}, apperrors.New(apperrors.KindInvalidInput, "cannot read uploaded file", err)
	}
	defer f.Close()

	var src io.Reader = f
	if maxBytes > 0 {
		src = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return domain.Upload{}, apperrors.New(apperrors.KindInvalidInput, "cannot read uploaded file", err)
	}
	return domain.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func writeAttachment(w http.ResponseWriter, d *domain.Download) {
	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename}))
	w.WriteHeader(http.StatusOK)
	w.Write(d.Data)
}
