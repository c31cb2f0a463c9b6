package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/rs/zerolog"

	"driveshare/internal/ids"
	"driveshare/internal/media/sniffer"
	"driveshare/internal/models"
)

var (
	ErrDocumentTooLarge = errors.New("document too large")
	ErrDocumentEmpty    = errors.New("document is empty")
	ErrDocumentType     = errors.New("document must be a JPEG, PNG or PDF")
	ErrNoDocument       = errors.New("user has not uploaded a licence")
)

type DocumentStore interface {
	PutDocument(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	DocumentURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type VerificationStore interface {
	GetByID(ctx context.Context, id string) (models.User, error)
	SetLicenseDocument(ctx context.Context, id string, objectKey string) (models.User, error)
	ListByVerificationStatus(ctx context.Context, status models.VerificationStatus, limit, offset int) ([]models.User, error)
	UpdateVerificationStatus(ctx context.Context, id string, status models.VerificationStatus) (models.User, error)
}

// DocumentService handles driving licence uploads and their review.
type DocumentService struct {
	store    DocumentStore
	users    VerificationStore
	maxBytes int64
	log      zerolog.Logger
	now      func() time.Time
}

func NewDocumentService(store DocumentStore, users VerificationStore, maxBytes int64, log zerolog.Logger) *DocumentService {
	return &DocumentService{
		store:    store,
		users:    users,
		maxBytes: maxBytes,
		log:      log.With().Str("component", "documents").Logger(),
		now:      time.Now,
	}
}

type UploadInput struct {
	UserID       string
	File         io.Reader
	Size         int64
	DeclaredMIME string
}

// UploadLicense stores the file and puts the user back into review.
func (s *DocumentService) UploadLicense(ctx context.Context, input UploadInput) (models.User, error) {
	if input.File == nil || input.Size == 0 {
		return models.User{}, ErrDocumentEmpty
	}
	if s.maxBytes > 0 && input.Size > s.maxBytes {
		return models.User{}, ErrDocumentTooLarge
	}

	reader := input.File
	if s.maxBytes > 0 {
		reader = io.LimitReader(input.File, s.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return models.User{}, fmt.Errorf("read document: %w", err)
	}
	if len(data) == 0 {
		return models.User{}, ErrDocumentEmpty
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return models.User{}, ErrDocumentTooLarge
	}

	result, err := sniffer.DetectHead(data[:min(len(data), 512)])
	if err != nil {
		return models.User{}, ErrDocumentType
	}
	if input.DeclaredMIME != "" && input.DeclaredMIME != "application/octet-stream" && input.DeclaredMIME != result.MIME {
		return models.User{}, fmt.Errorf("%w: declared %s, actual %s", ErrDocumentType, input.DeclaredMIME, result.MIME)
	}

	key := s.objectKey(input.UserID, result)
	if err := s.store.PutDocument(ctx, key, bytes.NewReader(data), int64(len(data)), result.MIME); err != nil {
		return models.User{}, err
	}

	user, err := s.users.SetLicenseDocument(ctx, input.UserID, key)
	if err != nil {
		return models.User{}, fmt.Errorf("save document key: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Str("object_key", key).Msg("licence uploaded")
	return user, nil
}

func (s *DocumentService) PendingUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.users.ListByVerificationStatus(ctx, models.VerificationPending, limit, offset)
}

// LicenseURL gives reviewers temporary access to a user's uploaded licence.
func (s *DocumentService) LicenseURL(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.LicenseObjectKey == nil {
		return "", ErrNoDocument
	}
	return s.store.DocumentURL(ctx, *user.LicenseObjectKey, 15*time.Minute)
}

func (s *DocumentService) Review(ctx context.Context, userID string, status models.VerificationStatus) (models.User, error) {
	if status != models.VerificationVerified && status != models.VerificationRejected {
		return models.User{}, fmt.Errorf("%w: status must be VERIFIED or REJECTED", ErrInvalidInput)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	if status == models.VerificationVerified && user.LicenseObjectKey == nil {
		return models.User{}, ErrNoDocument
	}

	user, err = s.users.UpdateVerificationStatus(ctx, userID, status)
	if err != nil {
		return models.User{}, err
	}
	s.log.Info().Str("user_id", user.ID).Str("status", string(status)).Msg("verification reviewed")
	return user, nil
}

func (s *DocumentService) objectKey(userID string, result sniffer.Result) string {
	datePrefix := s.now().UTC().Format("2006/01/02")
	return path.Join("licences", datePrefix, userID, ids.New()+"."+result.Extension())
}
