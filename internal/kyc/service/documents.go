package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kyc-core/internal/auth"
	"kyc-core/internal/kyc/models"
	dErrors "kyc-core/pkg/domain-errors"
	"kyc-core/pkg/platform/sentinel"
)

// SaveDocuments stores a batch of uploads: fresh files go to object storage
// and get a metadata row, id-only entries update metadata in place. Uploads
// run in parallel; the first failure aborts the batch.
func (s *Service) SaveDocuments(ctx context.Context, cred auth.Credential, uploads []models.DocumentUpload) (_ []models.DocumentResult, err error) {
	ctx, done := s.startOp(ctx, "save_documents")
	defer func() { done(err) }()

	id, err := s.resolve(ctx, cred)
	if err != nil {
		return nil, err
	}
	return s.saveDocuments(ctx, id.UserID(), uploads)
}

// SaveFormsDocuments is the form-token variant: the uid comes from the token
// and every document is tagged with the form marker.
func (s *Service) SaveFormsDocuments(ctx context.Context, formToken, formID string, uploads []models.DocumentUpload) (_ []models.DocumentResult, err error) {
	ctx, done := s.startOp(ctx, "save_forms_documents")
	defer func() { done(err) }()

	claims, err := s.forms.Verify(formToken)
	if err != nil {
		return nil, err
	}
	if formID != "" {
		for i := range uploads {
			uploads[i].Form = formID
		}
	}
	return s.saveDocuments(ctx, claims.UID, uploads)
}

func (s *Service) saveDocuments(ctx context.Context, uid int64, uploads []models.DocumentUpload) ([]models.DocumentResult, error) {
	docs := make([]*models.Document, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	for i := range uploads {
		g.Go(func() error {
			doc, err := s.prepareDocument(gctx, uid, uploads[i])
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]models.DocumentResult, 0, len(docs))
	for _, doc := range docs {
		if err := s.docs.Upsert(ctx, doc); err != nil {
			return nil, err
		}
		results = append(results, models.DocumentResult{
			ID:        doc.ID,
			URL:       doc.URL,
			Timestamp: doc.Timestamp,
		})
	}
	if s.metrics != nil {
		s.metrics.DocumentsUploaded.Add(float64(len(results)))
	}
	return results, nil
}

// prepareDocument turns one upload into a document row: either a fresh
// object-storage upload or a metadata-only update of an existing row.
func (s *Service) prepareDocument(ctx context.Context, uid int64, up models.DocumentUpload) (*models.Document, error) {
	if uid != 0 && up.UID != 0 && up.UID != uid {
		return nil, dErrors.New(dErrors.CodeMustBeAdminOrOwner, "")
	}

	if len(up.Data) > 0 {
		docUID := uid
		if docUID == 0 {
			docUID = up.UID
		}
		if docUID == 0 {
			return nil, dErrors.New(dErrors.CodeUploadedNoUID, "")
		}
		if s.uploader == nil {
			return nil, dErrors.New(dErrors.CodeInternal, "object storage not configured")
		}
		res, err := s.uploader.Upload(ctx, up.Data, up.Filename, http.DetectContentType(up.Data))
		if err != nil {
			return nil, err
		}
		docID := up.ID
		if docID == "" {
			docID = uuid.NewString()
		}
		return &models.Document{
			ID:        docID,
			UID:       docUID,
			URL:       res.URL,
			Key:       res.Key,
			Filename:  up.Filename,
			Type:      up.Type,
			Form:      up.Form,
			Remark:    up.Remark,
			AccountID: up.AccountID,
			IsPrivate: up.IsPrivate,
			Timestamp: s.nowMillis(),
		}, nil
	}

	if up.ID == "" {
		return nil, dErrors.New(dErrors.CodeUploadedNoFileOrID, "")
	}

	doc := &models.Document{ID: up.ID, UID: uid}
	existing, err := s.docs.ByID(ctx, up.ID)
	switch {
	case err == nil:
		doc = existing
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, err
	}
	if up.UID != 0 {
		doc.UID = up.UID
	}
	if up.Filename != "" {
		doc.Filename = up.Filename
	}
	if up.Type != "" {
		doc.Type = up.Type
	}
	if up.Form != "" {
		doc.Form = up.Form
	}
	if up.Remark != "" {
		doc.Remark = up.Remark
	}
	if up.AccountID != "" {
		doc.AccountID = up.AccountID
	}
	doc.IsPrivate = up.IsPrivate
	doc.Timestamp = s.nowMillis()
	return doc, nil
}
