package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// ErrDocumentTooLarge indicates the upload exceeds the size limit.
var ErrDocumentTooLarge = errors.New("document exceeds size limit")

// ErrDocumentTypeNotAllowed indicates the sniffed type is not accepted as evidence.
var ErrDocumentTypeNotAllowed = errors.New("document type not allowed")

const maxDocumentBytes = 10 << 20

var allowedDocumentTypes = []string{
	"application/pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
	"image/png",
	"image/jpeg",
}

// FileUploader stores a document and returns its public URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// DocumentService validates and stores supporting documents attached to answers.
// The stored URLs feed the document-authenticity veracity dimension.
type DocumentService interface {
	UploadSupportingDocument(ctx context.Context, filename string, data []byte) (string, error)
}

type documentService struct {
	uploader FileUploader
	logger   zerolog.Logger
}

// NewDocumentService constructs the document service.
func NewDocumentService(uploader FileUploader, logger zerolog.Logger) DocumentService {
	return &documentService{
		uploader: uploader,
		logger:   logger.With().Str("component", "document_service").Logger(),
	}
}

func (s *documentService) UploadSupportingDocument(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrDocumentTypeNotAllowed
	}
	if len(data) > maxDocumentBytes {
		return "", ErrDocumentTooLarge
	}

	mime := mimetype.Detect(data)
	if !documentTypeAllowed(mime.String()) {
		s.logger.Warn().Str("mime", mime.String()).Str("filename", filename).Msg("rejected supporting document")
		return "", ErrDocumentTypeNotAllowed
	}

	url, err := s.uploader.Upload(ctx, filename, bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	s.logger.Info().Str("filename", filename).Str("mime", mime.String()).Msg("supporting document stored")
	return url, nil
}

func documentTypeAllowed(mime string) bool {
	for _, allowed := range allowedDocumentTypes {
		if strings.HasPrefix(mime, allowed) {
			return true
		}
	}
	return false
}
