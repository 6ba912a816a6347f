package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
)

var ErrKYCDocumentNotFound = errors.New("kyc document not found")

type KYCRepository struct {
	db *sqlx.DB
}

func NewKYCRepository(db *sqlx.DB) *KYCRepository {
	return &KYCRepository{db: db}
}

// CreateDocument registers an uploaded document pending review.
func (r *KYCRepository) CreateDocument(ctx context.Context, userID uuid.UUID, docType, filePath string) (*models.KYCDocument, error) {
	var doc models.KYCDocument
	err := r.db.GetContext(ctx, &doc, `
		INSERT INTO kyc_documents (user_id, doc_type, file_path)
		VALUES ($1, $2, $3)
		RETURNING *
	`, userID, docType, filePath)
	if err != nil {
		return nil, fmt.Errorf("kyc repository: create document %w", err)
	}
	return &doc, nil
}

// GetDocument returns one document.
func (r *KYCRepository) GetDocument(ctx context.Context, docID uuid.UUID) (*models.KYCDocument, error) {
	var doc models.KYCDocument
	err := r.db.GetContext(ctx, &doc, `SELECT * FROM kyc_documents WHERE id = $1`, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKYCDocumentNotFound
		}
		return nil, fmt.Errorf("kyc repository: get document %w", err)
	}
	return &doc, nil
}

// ListByUser returns the user's documents, newest first.
func (r *KYCRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.KYCDocument, error) {
	var docs []models.KYCDocument
	err := r.db.SelectContext(ctx, &docs, `
		SELECT * FROM kyc_documents WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("kyc repository: list by user %w", err)
	}
	return docs, nil
}

// ListPending returns documents awaiting review, oldest first.
func (r *KYCRepository) ListPending(ctx context.Context, limit, offset int) ([]models.KYCDocument, error) {
	var docs []models.KYCDocument
	err := r.db.SelectContext(ctx, &docs, `
		SELECT * FROM kyc_documents WHERE status = 'pending'
		ORDER BY created_at LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("kyc repository: list pending %w", err)
	}
	return docs, nil
}

// Review settles a pending document.
func (r *KYCRepository) Review(ctx context.Context, docID uuid.UUID, status string, note *string) (*models.KYCDocument, error) {
	var doc models.KYCDocument
	err := r.db.GetContext(ctx, &doc, `
		UPDATE kyc_documents SET status = $2, review_note = $3, reviewed_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING *
	`, docID, status, note)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKYCDocumentNotFound
		}
		return nil, fmt.Errorf("kyc repository: review %w", err)
	}
	return &doc, nil
}
