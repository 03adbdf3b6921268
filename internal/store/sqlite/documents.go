package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
)

// Text field names in document_texts.
const (
	fieldTitle       = "title"
	fieldSubtitle    = "subtitle"
	fieldDescription = "description"
	fieldKeywords    = "keywords"
)

// SaveDocument inserts or replaces a document with its texts, contributions,
// files and research outputs in a single transaction. Zero ids on nested
// records are assigned and written back.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if !doc.Type.IsValid() {
		return domainerrors.Validationf("unknown document type %q", doc.Type)
	}
	if doc.ApprovalStatus == "" {
		doc.ApprovalStatus = domain.ApprovalRequested
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(s.now())
	res, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, type, document_date, doi, approval_status, open_access, created_at, updated_at)
		VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			document_date = excluded.document_date,
			doi = excluded.doi,
			approval_status = excluded.approval_status,
			open_access = excluded.open_access,
			updated_at = excluded.updated_at`,
		doc.ID,
		string(doc.Type),
		nullString(doc.DocumentDate),
		nullString(doc.DOI),
		string(doc.ApprovalStatus),
		boolInt(doc.OpenAccess),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	if doc.ID == 0 {
		if doc.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("document id: %w", err)
		}
	}

	if err := replaceDocumentTexts(ctx, tx, doc); err != nil {
		return err
	}
	if err := replaceContributions(ctx, tx, doc); err != nil {
		return err
	}
	if err := replaceFiles(ctx, tx, doc); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_research_outputs WHERE thesis_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("delete research outputs: %w", err)
	}
	for _, outputID := range doc.ResearchOutputIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO document_research_outputs (thesis_id, output_id) VALUES (?, ?)`,
			doc.ID, outputID); err != nil {
			return fmt.Errorf("insert research output: %w", err)
		}
	}

	return tx.Commit()
}

func replaceDocumentTexts(ctx context.Context, tx *sql.Tx, doc *domain.Document) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_texts WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("delete document texts: %w", err)
	}
	for field, contents := range map[string][]domain.MultiLingualContent{
		fieldTitle:       doc.Title,
		fieldSubtitle:    doc.Subtitle,
		fieldDescription: doc.Description,
		fieldKeywords:    doc.Keywords,
	} {
		for _, mc := range contents {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO document_texts (document_id, field, language_tag, content, priority)
				VALUES (?, ?, ?, ?, ?)`,
				doc.ID, field, mc.LanguageTag, mc.Content, mc.Priority)
			if err != nil {
				return fmt.Errorf("insert %s text: %w", field, err)
			}
		}
	}
	return nil
}

func replaceContributions(ctx context.Context, tx *sql.Tx, doc *domain.Document) error {
	keep := make([]any, 0, len(doc.Contributions)+1)
	keep = append(keep, doc.ID)
	for _, c := range doc.Contributions {
		if c.ID != 0 {
			keep = append(keep, c.ID)
		}
	}
	del := `DELETE FROM contributions WHERE document_id = ?`
	if len(keep) > 1 {
		del += ` AND id NOT IN (` + placeholders(len(keep)-1) + `)`
	}
	if _, err := tx.ExecContext(ctx, del, keep...); err != nil {
		return fmt.Errorf("delete contributions: %w", err)
	}

	for i := range doc.Contributions {
		c := &doc.Contributions[i]
		if !c.Role.IsValid() {
			return domainerrors.Validationf("unknown contribution role %q", c.Role)
		}
		c.DocumentID = doc.ID

		institutions, err := json.Marshal(nonNilIDs(c.InstitutionIDs))
		if err != nil {
			return fmt.Errorf("marshal institution ids: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO contributions (
				id, document_id, role, order_number, person_id,
				first_name, other_name, last_name, institution_ids
			) VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				role = excluded.role,
				order_number = excluded.order_number,
				person_id = excluded.person_id,
				first_name = excluded.first_name,
				other_name = excluded.other_name,
				last_name = excluded.last_name,
				institution_ids = excluded.institution_ids`,
			c.ID, doc.ID, string(c.Role), c.OrderNumber, nullInt64Ptr(c.PersonID),
			c.Name.FirstName, c.Name.OtherName, c.Name.LastName, string(institutions),
		)
		if err != nil {
			return fmt.Errorf("upsert contribution: %w", err)
		}
		if c.ID == 0 {
			if c.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("contribution id: %w", err)
			}
		}
	}
	return nil
}

func replaceFiles(ctx context.Context, tx *sql.Tx, doc *domain.Document) error {
	keep := make([]any, 0, len(doc.Files)+1)
	keep = append(keep, doc.ID)
	for _, f := range doc.Files {
		if f.ID != 0 {
			keep = append(keep, f.ID)
		}
	}
	del := `DELETE FROM document_files WHERE document_id = ?`
	if len(keep) > 1 {
		del += ` AND id NOT IN (` + placeholders(len(keep)-1) + `)`
	}
	if _, err := tx.ExecContext(ctx, del, keep...); err != nil {
		return fmt.Errorf("delete files: %w", err)
	}

	for i := range doc.Files {
		f := &doc.Files[i]
		f.DocumentID = doc.ID
		res, err := tx.ExecContext(ctx, `
			INSERT INTO document_files (id, document_id, file_name, is_proof)
			VALUES (NULLIF(?, 0), ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				file_name = excluded.file_name,
				is_proof = excluded.is_proof`,
			f.ID, doc.ID, f.FileName, boolInt(f.IsProof))
		if err != nil {
			return fmt.Errorf("upsert file: %w", err)
		}
		if f.ID == 0 {
			if f.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("file id: %w", err)
			}
		}
	}
	return nil
}

// GetDocument loads a document with everything the projector needs.
// Returns a NOT_FOUND error if the document does not exist.
func (s *Store) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	var (
		doc          domain.Document
		typ, status  string
		documentDate sql.NullString
		doi          sql.NullString
		openAccess   int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, document_date, doi, approval_status, open_access
		FROM documents WHERE id = ?`, id).
		Scan(&doc.ID, &typ, &documentDate, &doi, &status, &openAccess)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.NotFoundf("document %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc.Type = domain.DocumentType(typ)
	doc.ApprovalStatus = domain.ApprovalStatus(status)
	doc.DocumentDate = documentDate.String
	doc.DOI = doi.String
	doc.OpenAccess = openAccess != 0

	if err := s.loadDocumentTexts(ctx, &doc); err != nil {
		return nil, err
	}
	if doc.Contributions, err = s.GetContributionsForDocument(ctx, id); err != nil {
		return nil, err
	}
	if doc.Files, err = s.getFilesForDocument(ctx, id); err != nil {
		return nil, err
	}
	if doc.ResearchOutputIDs, err = s.getResearchOutputs(ctx, id); err != nil {
		return nil, err
	}

	return &doc, nil
}

func (s *Store) loadDocumentTexts(ctx context.Context, doc *domain.Document) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT field, language_tag, content, priority
		FROM document_texts
		WHERE document_id = ?
		ORDER BY priority, rowid`, doc.ID)
	if err != nil {
		return fmt.Errorf("query document texts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			field string
			mc    domain.MultiLingualContent
		)
		if err := rows.Scan(&field, &mc.LanguageTag, &mc.Content, &mc.Priority); err != nil {
			return fmt.Errorf("scan document text: %w", err)
		}
		switch field {
		case fieldTitle:
			doc.Title = append(doc.Title, mc)
		case fieldSubtitle:
			doc.Subtitle = append(doc.Subtitle, mc)
		case fieldDescription:
			doc.Description = append(doc.Description, mc)
		case fieldKeywords:
			doc.Keywords = append(doc.Keywords, mc)
		}
	}
	return rows.Err()
}

func (s *Store) getResearchOutputs(ctx context.Context, thesisID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT output_id FROM document_research_outputs WHERE thesis_id = ? ORDER BY output_id`, thesisID)
	if err != nil {
		return nil, fmt.Errorf("query research outputs: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan research output: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetApprovalStatus changes the editorial state of a document.
func (s *Store) SetApprovalStatus(ctx context.Context, id int64, status domain.ApprovalStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET approval_status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("set approval status: %w", err)
	}
	return requireRow(res, "document", id)
}

// DeleteDocument removes a document. Nested rows cascade.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireRow(res, "document", id)
}

// ListDocumentIDs returns up to limit document ids greater than afterID, ascending.
func (s *Store) ListDocumentIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list document ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func requireRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domainerrors.NotFoundf("%s %d not found", entity, id)
	}
	return nil
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
