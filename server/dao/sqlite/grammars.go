package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dekarrin/gramask/server/dao"
	"github.com/google/uuid"
)

type GrammarsDB struct {
	db *sql.DB
}

func (repo *GrammarsDB) init() error {
	_, err := repo.db.Exec(`CREATE TABLE IF NOT EXISTS grammars (
		id TEXT NOT NULL PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		created INTEGER NOT NULL,
		modified INTEGER NOT NULL
	);`)
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (repo *GrammarsDB) Close() error {
	return nil
}

func (repo *GrammarsDB) Create(ctx context.Context, g dao.Grammar) (dao.Grammar, error) {
	newUUID, err := uuid.NewRandom()
	if err != nil {
		return dao.Grammar{}, fmt.Errorf("could not generate ID: %w", err)
	}

	stmt, err := repo.db.Prepare(`INSERT INTO grammars (id, owner_id, name, source, fingerprint, created, modified) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return dao.Grammar{}, wrapDBError(err)
	}

	now := convertToDB_Time(time.Now())
	_, err = stmt.ExecContext(
		ctx,
		convertToDB_UUID(newUUID),
		convertToDB_UUID(g.OwnerID),
		g.Name,
		g.Source,
		convertToDB_ByteSlice(g.Fingerprint),
		now,
		now,
	)
	if err != nil {
		return dao.Grammar{}, wrapDBError(err)
	}

	return repo.GetByID(ctx, newUUID)
}

func (repo *GrammarsDB) GetByID(ctx context.Context, id uuid.UUID) (dao.Grammar, error) {
	row := repo.db.QueryRowContext(ctx, `SELECT id, owner_id, name, source, fingerprint, created, modified FROM grammars WHERE id = ?;`,
		convertToDB_UUID(id),
	)
	return scanGrammar(row.Scan)
}

func (repo *GrammarsDB) GetAll(ctx context.Context) ([]dao.Grammar, error) {
	rows, err := repo.db.QueryContext(ctx, `SELECT id, owner_id, name, source, fingerprint, created, modified FROM grammars ORDER BY id;`)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var all []dao.Grammar

	for rows.Next() {
		g, err := scanGrammar(rows.Scan)
		if err != nil {
			return all, err
		}
		all = append(all, g)
	}

	if err := rows.Err(); err != nil {
		return all, wrapDBError(err)
	}

	return all, nil
}

func (repo *GrammarsDB) GetAllByOwner(ctx context.Context, ownerID uuid.UUID) ([]dao.Grammar, error) {
	rows, err := repo.db.QueryContext(ctx, `SELECT id, owner_id, name, source, fingerprint, created, modified FROM grammars WHERE owner_id = ? ORDER BY id;`,
		convertToDB_UUID(ownerID),
	)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var owned []dao.Grammar

	for rows.Next() {
		g, err := scanGrammar(rows.Scan)
		if err != nil {
			return owned, err
		}
		owned = append(owned, g)
	}

	if err := rows.Err(); err != nil {
		return owned, wrapDBError(err)
	}

	return owned, nil
}

func (repo *GrammarsDB) Update(ctx context.Context, id uuid.UUID, g dao.Grammar) (dao.Grammar, error) {
	res, err := repo.db.ExecContext(ctx, `UPDATE grammars SET id=?, owner_id=?, name=?, source=?, fingerprint=?, modified=? WHERE id=?;`,
		convertToDB_UUID(g.ID),
		convertToDB_UUID(g.OwnerID),
		g.Name,
		g.Source,
		convertToDB_ByteSlice(g.Fingerprint),
		convertToDB_Time(time.Now()),
		convertToDB_UUID(id),
	)
	if err != nil {
		return dao.Grammar{}, wrapDBError(err)
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return dao.Grammar{}, wrapDBError(err)
	}
	if rowsAff < 1 {
		return dao.Grammar{}, dao.ErrNotFound
	}

	return repo.GetByID(ctx, g.ID)
}

func (repo *GrammarsDB) Delete(ctx context.Context, id uuid.UUID) (dao.Grammar, error) {
	existing, err := repo.GetByID(ctx, id)
	if err != nil {
		return existing, err
	}

	res, err := repo.db.ExecContext(ctx, `DELETE FROM grammars WHERE id = ?;`, convertToDB_UUID(id))
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

func scanGrammar(scan func(...interface{}) error) (dao.Grammar, error) {
	var g dao.Grammar
	var id string
	var ownerID string
	var fingerprint string
	var created int64
	var modified int64

	err := scan(
		&id,
		&ownerID,
		&g.Name,
		&g.Source,
		&fingerprint,
		&created,
		&modified,
	)
	if err != nil {
		return g, wrapDBError(err)
	}

	if err := convertFromDB_UUID(id, &g.ID); err != nil {
		return g, fmt.Errorf("stored UUID %q is invalid: %w", id, err)
	}
	if err := convertFromDB_UUID(ownerID, &g.OwnerID); err != nil {
		return g, fmt.Errorf("stored owner UUID %q is invalid: %w", ownerID, err)
	}
	if err := convertFromDB_ByteSlice(fingerprint, &g.Fingerprint); err != nil {
		return g, fmt.Errorf("stored fingerprint is invalid: %w", err)
	}
	convertFromDB_Time(created, &g.Created)
	convertFromDB_Time(modified, &g.Modified)

	return g, nil
}
