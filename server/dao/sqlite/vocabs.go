package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dekarrin/gramask/server/dao"
	"github.com/google/uuid"
)

type VocabulariesDB struct {
	db *sql.DB
}

func (repo *VocabulariesDB) init() error {
	_, err := repo.db.Exec(`CREATE TABLE IF NOT EXISTS vocabularies (
		id TEXT NOT NULL PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		size INTEGER NOT NULL,
		created INTEGER NOT NULL
	);`)
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (repo *VocabulariesDB) Close() error {
	return nil
}

func (repo *VocabulariesDB) Create(ctx context.Context, v dao.Vocabulary) (dao.Vocabulary, error) {
	newUUID, err := uuid.NewRandom()
	if err != nil {
		return dao.Vocabulary{}, fmt.Errorf("could not generate ID: %w", err)
	}

	stmt, err := repo.db.Prepare(`INSERT INTO vocabularies (id, owner_id, name, source, size, created) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return dao.Vocabulary{}, wrapDBError(err)
	}

	_, err = stmt.ExecContext(
		ctx,
		convertToDB_UUID(newUUID),
		convertToDB_UUID(v.OwnerID),
		v.Name,
		v.Source,
		v.Size,
		convertToDB_Time(time.Now()),
	)
	if err != nil {
		return dao.Vocabulary{}, wrapDBError(err)
	}

	return repo.GetByID(ctx, newUUID)
}

func (repo *VocabulariesDB) GetByID(ctx context.Context, id uuid.UUID) (dao.Vocabulary, error) {
	row := repo.db.QueryRowContext(ctx, `SELECT id, owner_id, name, source, size, created FROM vocabularies WHERE id = ?;`,
		convertToDB_UUID(id),
	)
	return scanVocabulary(row.Scan)
}

func (repo *VocabulariesDB) GetAll(ctx context.Context) ([]dao.Vocabulary, error) {
	rows, err := repo.db.QueryContext(ctx, `SELECT id, owner_id, name, source, size, created FROM vocabularies ORDER BY id;`)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var all []dao.Vocabulary

	for rows.Next() {
		v, err := scanVocabulary(rows.Scan)
		if err != nil {
			return all, err
		}
		all = append(all, v)
	}

	if err := rows.Err(); err != nil {
		return all, wrapDBError(err)
	}

	return all, nil
}

func (repo *VocabulariesDB) GetAllByOwner(ctx context.Context, ownerID uuid.UUID) ([]dao.Vocabulary, error) {
	rows, err := repo.db.QueryContext(ctx, `SELECT id, owner_id, name, source, size, created FROM vocabularies WHERE owner_id = ? ORDER BY id;`,
		convertToDB_UUID(ownerID),
	)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var owned []dao.Vocabulary

	for rows.Next() {
		v, err := scanVocabulary(rows.Scan)
		if err != nil {
			return owned, err
		}
		owned = append(owned, v)
	}

	if err := rows.Err(); err != nil {
		return owned, wrapDBError(err)
	}

	return owned, nil
}

func (repo *VocabulariesDB) Update(ctx context.Context, id uuid.UUID, v dao.Vocabulary) (dao.Vocabulary, error) {
	res, err := repo.db.ExecContext(ctx, `UPDATE vocabularies SET id=?, owner_id=?, name=?, source=?, size=? WHERE id=?;`,
		convertToDB_UUID(v.ID),
		convertToDB_UUID(v.OwnerID),
		v.Name,
		v.Source,
		v.Size,
		convertToDB_UUID(id),
	)
	if err != nil {
		return dao.Vocabulary{}, wrapDBError(err)
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return dao.Vocabulary{}, wrapDBError(err)
	}
	if rowsAff < 1 {
		return dao.Vocabulary{}, dao.ErrNotFound
	}

	return repo.GetByID(ctx, v.ID)
}

func (repo *VocabulariesDB) Delete(ctx context.Context, id uuid.UUID) (dao.Vocabulary, error) {
	existing, err := repo.GetByID(ctx, id)
	if err != nil {
		return existing, err
	}

	res, err := repo.db.ExecContext(ctx, `DELETE FROM vocabularies WHERE id = ?;`, convertToDB_UUID(id))
	if err != nil {
		return existing, wrapDBError(err)
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return existing, wrapDBError(err)
	}
	if rowsAff < 1 {
		return existing, dao.ErrNotFound
	}

	return existing, nil
}

func scanVocabulary(scan func(...interface{}) error) (dao.Vocabulary, error) {
	var v dao.Vocabulary
	var id string
	var ownerID string
	var created int64

	err := scan(
		&id,
		&ownerID,
		&v.Name,
		&v.Source,
		&v.Size,
		&created,
	)
	if err != nil {
		return v, wrapDBError(err)
	}

	if err := convertFromDB_UUID(id, &v.ID); err != nil {
		return v, fmt.Errorf("stored UUID %q is invalid: %w", id, err)
	}
	if err := convertFromDB_UUID(ownerID, &v.OwnerID); err != nil {
		return v, fmt.Errorf("stored owner UUID %q is invalid: %w", ownerID, err)
	}
	convertFromDB_Time(created, &v.Created)

	return v, nil
}
