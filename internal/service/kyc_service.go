package service

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/LuisNMHN/netmarkethn-backend/internal/logger"
	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
)

// KYCRepository describes the storage dependencies of KYCService.
type KYCRepository interface {
	CreateDocument(ctx context.Context, userID uuid.UUID, docType, filePath string) (*models.KYCDocument, error)
	GetDocument(ctx context.Context, docID uuid.UUID) (*models.KYCDocument, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.KYCDocument, error)
	ListPending(ctx context.Context, limit, offset int) ([]models.KYCDocument, error)
	Review(ctx context.Context, docID uuid.UUID, status string, note *string) (*models.KYCDocument, error)
}

// KYCUserRepository is the slice of the user store the KYC flow needs.
type KYCUserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateKYCStatus(ctx context.Context, userID uuid.UUID, status string) error
}

// DocumentStore persists uploaded document files.
type DocumentStore interface {
	Save(ctx context.Context, userID uuid.UUID, originalName string, r io.Reader) (string, int64, error)
	Open(ctx context.Context, relativePath string) (io.ReadCloser, error)
	Delete(ctx context.Context, relativePath string) error
}

// KYCMailer mirrors review decisions to email.
type KYCMailer interface {
	EnqueueKYCDecisionEmail(userID, email, decision, note string) error
}

// KYCService handles identity document uploads and review.
type KYCService struct {
	repo     KYCRepository
	users    KYCUserRepository
	store    DocumentStore
	notifier Notifier
	mailer   KYCMailer
}

func NewKYCService(repo KYCRepository, users KYCUserRepository, store DocumentStore, notifier Notifier, mailer KYCMailer) *KYCService {
	return &KYCService{
		repo:     repo,
		users:    users,
		store:    store,
		notifier: notifier,
		mailer:   mailer,
	}
}

var allowedDocTypes = map[string]struct{}{
	models.KYCDocTypeIdentity: {},
	models.KYCDocTypeAddress:  {},
	models.KYCDocTypeSelfie:   {},
}

// Content types accepted for KYC uploads, checked against the file's
// magic bytes rather than the client-supplied name.
var allowedMIMEs = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"application/pdf": {},
}

// UploadDocument stores a document and moves the user into the pending
// KYC state. The upload is sniffed; extension and Content-Type headers
// are not trusted.
func (s *KYCService) UploadDocument(ctx context.Context, userID uuid.UUID, docType, fileName string, r io.Reader) (*models.KYCDocument, error) {
	if _, ok := allowedDocTypes[docType]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "unknown document type")
	}

	head := make([]byte, 262)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to read upload")
	}
	head = head[:n]

	kind, _ := filetype.Match(head)
	if _, ok := allowedMIMEs[kind.MIME.Value]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "document must be a JPEG, PNG or PDF")
	}

	full := io.MultiReader(bytes.NewReader(head), r)
	relativePath, _, err := s.store.Save(ctx, userID, fileName, full)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to store document")
	}

	doc, err := s.repo.CreateDocument(ctx, userID, docType, relativePath)
	if err != nil {
		_ = s.store.Delete(ctx, relativePath)
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to register document")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err == nil && user.KYCStatus != models.KYCStatusApproved {
		if err := s.users.UpdateKYCStatus(ctx, userID, models.KYCStatusPending); err != nil {
			logger.Log.Warnf("kyc service: set pending for %s: %v", userID, err)
		}
	}

	return doc, nil
}

// ListMyDocuments returns the caller's documents.
func (s *KYCService) ListMyDocuments(ctx context.Context, userID uuid.UUID) ([]models.KYCDocument, error) {
	docs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list documents")
	}
	return docs, nil
}

// ListPending returns documents awaiting review. Admin only, enforced at
// the router.
func (s *KYCService) ListPending(ctx context.Context, limit, offset int) ([]models.KYCDocument, error) {
	limit = normalizeLimit(limit)
	docs, err := s.repo.ListPending(ctx, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list pending documents")
	}
	return docs, nil
}

// OpenDocument streams a stored document's file for review. Admin only,
// enforced at the router.
func (s *KYCService) OpenDocument(ctx context.Context, docID uuid.UUID) (*models.KYCDocument, io.ReadCloser, error) {
	doc, err := s.repo.GetDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, repository.ErrKYCDocumentNotFound) {
			return nil, nil, apperror.New(apperror.ErrCodeNotFound, "document not found")
		}
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load document")
	}

	file, err := s.store.Open(ctx, doc.FilePath)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to open document file")
	}
	return doc, file, nil
}

// Review settles a pending document and propagates the decision to the
// user's aggregate KYC status. Admin only, enforced at the router.
func (s *KYCService) Review(ctx context.Context, docID uuid.UUID, approve bool, note *string) (*models.KYCDocument, error) {
	status := models.KYCDocStatusRejected
	if approve {
		status = models.KYCDocStatusApproved
	}

	doc, err := s.repo.Review(ctx, docID, status, note)
	if err != nil {
		if errors.Is(err, repository.ErrKYCDocumentNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "document not found or already reviewed")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to review document")
	}

	userStatus := models.KYCStatusRejected
	if approve {
		userStatus = models.KYCStatusApproved
	}
	if err := s.users.UpdateKYCStatus(ctx, doc.UserID, userStatus); err != nil {
		logger.Log.Errorf("kyc service: update user status for %s: %v", doc.UserID, err)
	}

	s.notifyDecision(ctx, doc, approve, note)
	return doc, nil
}

func (s *KYCService) notifyDecision(ctx context.Context, doc *models.KYCDocument, approve bool, note *string) {
	title := "Identity verification rejected"
	body := "Your document was rejected."
	decision := "rejected"
	if approve {
		title = "Identity verification approved"
		body = "Your identity was verified. The full platform is now available."
		decision = "approved"
	}
	if note != nil && *note != "" {
		body += " Note: " + *note
	}

	if s.notifier != nil {
		key := "kyc_decision:" + doc.ID.String()
		s.notifier.Notify(ctx, doc.UserID, models.NotificationTopicKYC, "kyc_"+decision,
			title, body, models.NotificationPriorityHigh, &key)
	}

	if s.mailer != nil {
		user, err := s.users.GetByID(ctx, doc.UserID)
		if err != nil {
			return
		}
		noteText := ""
		if note != nil {
			noteText = *note
		}
		if err := s.mailer.EnqueueKYCDecisionEmail(doc.UserID.String(), user.Email, decision, noteText); err != nil {
			logger.Log.Warnf("kyc service: decision email for %s: %v", doc.UserID, err)
		}
	}
}
