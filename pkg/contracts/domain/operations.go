package domain

import (
	"fmt"
	"strings"
)

// Upload is a client-side file handle selected by the user
type Upload struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
}

// Size returns the payload length in bytes
func (u Upload) Size() int {
	return len(u.Data)
}

// Download is a binary artifact handed to the user's browser or disk
type Download struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// ConversionKind identifies one document-conversion workflow
type ConversionKind string

const (
	ConversionMerge      ConversionKind = "merge"
	ConversionImageToPDF ConversionKind = "image-to-pdf"
	ConversionPDFToImage ConversionKind = "pdf-to-image"
)

// ConversionSpec describes how a conversion kind talks to the engine
type ConversionSpec struct {
	Kind        ConversionKind
	Endpoint    string
	FormField   string
	Multiple    bool
	Filename    string
	ContentType string
}

var conversionSpecs = map[ConversionKind]ConversionSpec{
	ConversionMerge: {
		Kind:        ConversionMerge,
		Endpoint:    "/api/merge-pdf",
		FormField:   "files",
		Multiple:    true,
		Filename:    "merged.pdf",
		ContentType: "application/pdf",
	},
	ConversionImageToPDF: {
		Kind:        ConversionImageToPDF,
		Endpoint:    "/api/jpg-to-pdf",
		FormField:   "files",
		Multiple:    true,
		Filename:    "converted.pdf",
		ContentType: "application/pdf",
	},
	ConversionPDFToImage: {
		Kind:        ConversionPDFToImage,
		Endpoint:    "/api/pdf-to-jpg",
		FormField:   "file",
		Multiple:    false,
		Filename:    "converted_images.zip",
		ContentType: "application/zip",
	},
}

// ConversionKinds lists every kind in display order
func ConversionKinds() []ConversionKind {
	return []ConversionKind{ConversionMerge, ConversionImageToPDF, ConversionPDFToImage}
}

// SpecFor returns the wiring of a conversion kind
func SpecFor(kind ConversionKind) (ConversionSpec, error) {
	spec, ok := conversionSpecs[kind]
	if !ok {
		return ConversionSpec{}, fmt.Errorf("unknown conversion kind %q", kind)
	}
	return spec, nil
}

// ParseConversionKind converts a route parameter into a ConversionKind
func ParseConversionKind(s string) (ConversionKind, error) {
	kind := ConversionKind(strings.ToLower(strings.TrimSpace(s)))
	if _, err := SpecFor(kind); err != nil {
		return "", err
	}
	return kind, nil
}

// JobStatus is the lifecycle state of a conversion job
type JobStatus string

const (
	JobStatusIdle       JobStatus = "idle"
	JobStatusSelecting  JobStatus = "selecting"
	JobStatusSubmitting JobStatus = "submitting"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// ConversionJob is a read-only snapshot of one conversion workflow
type ConversionJob struct {
	Kind          ConversionKind `json:"kind"`
	Status        JobStatus      `json:"status"`
	SelectedFiles []string       `json:"selected_files"`
	LastError     string         `json:"last_error,omitempty"`
	LastDownload  string         `json:"last_download,omitempty"`
}
