package engine

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"dataflow/pkg/contracts/domain"
)

// formFile is one file part of a multipart body
type formFile struct {
	field  string
	upload domain.Upload
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeMultipart builds a multipart/form-data body from the given files and
// returns it with its content type.
func encodeMultipart(files []formFile) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.field), quoteEscaper.Replace(f.upload.Name)))
		contentType := f.upload.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create part for %s: %w", f.upload.Name, err)
		}
		if _, err := part.Write(f.upload.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write part for %s: %w", f.upload.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
