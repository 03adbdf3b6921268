package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
)

func (s *Store) getFilesForDocument(ctx context.Context, documentID int64) ([]domain.DocumentFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, file_name, is_proof
		FROM document_files WHERE document_id = ? ORDER BY id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []domain.DocumentFile
	for rows.Next() {
		var (
			f       domain.DocumentFile
			isProof int
		)
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.FileName, &isProof); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.IsProof = isProof != 0
		files = append(files, f)
	}
	return files, rows.Err()
}

// GetFile returns one attached file.
func (s *Store) GetFile(ctx context.Context, fileID int64) (*domain.DocumentFile, error) {
	var (
		f       domain.DocumentFile
		isProof int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, file_name, is_proof FROM document_files WHERE id = ?`, fileID).
		Scan(&f.ID, &f.DocumentID, &f.FileName, &isProof)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.NotFoundf("file %d not found", fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	f.IsProof = isProof != 0
	return &f, nil
}

// SaveFileText stores the extraction output of a file, replacing earlier output.
func (s *Store) SaveFileText(ctx context.Context, ft *domain.FileText) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO file_texts (file_id, text, language, extracted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			text = excluded.text,
			language = excluded.language,
			extracted_at = excluded.extracted_at`,
		ft.FileID, ft.Text, ft.Language, formatTime(s.now()))
	if err != nil {
		if isForeignKeyError(err) {
			return domainerrors.NotFoundf("file %d not found", ft.FileID)
		}
		return fmt.Errorf("upsert file text: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM file_descriptions WHERE file_id = ?`, ft.FileID); err != nil {
		return fmt.Errorf("delete file descriptions: %w", err)
	}
	for _, mc := range ft.Descriptions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO file_descriptions (file_id, language_tag, content, priority)
			VALUES (?, ?, ?, ?)`,
			ft.FileID, mc.LanguageTag, mc.Content, mc.Priority); err != nil {
			return fmt.Errorf("insert file description: %w", err)
		}
	}

	return tx.Commit()
}

// GetFileText returns the extraction output of a file.
// Returns NOT_FOUND when the file has not been extracted yet.
func (s *Store) GetFileText(ctx context.Context, fileID int64) (*domain.FileText, error) {
	ft := domain.FileText{FileID: fileID}
	err := s.db.QueryRowContext(ctx,
		`SELECT text, language FROM file_texts WHERE file_id = ?`, fileID).
		Scan(&ft.Text, &ft.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.NotFoundf("no extracted text for file %d", fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("get file text: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT language_tag, content, priority
		FROM file_descriptions WHERE file_id = ? ORDER BY priority, rowid`, fileID)
	if err != nil {
		return nil, fmt.Errorf("query file descriptions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mc domain.MultiLingualContent
		if err := rows.Scan(&mc.LanguageTag, &mc.Content, &mc.Priority); err != nil {
			return nil, fmt.Errorf("scan file description: %w", err)
		}
		ft.Descriptions = append(ft.Descriptions, mc)
	}
	return &ft, rows.Err()
}

func isForeignKeyError(err error) bool {
	return err != nil && containsAny(err.Error(), "FOREIGN KEY constraint failed")
}
