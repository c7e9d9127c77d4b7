package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dekarrin/gramask/server/dao"
)

type CompiledBlobsDB struct {
	db *sql.DB
}

func (repo *CompiledBlobsDB) init() error {
	_, err := repo.db.Exec(`CREATE TABLE IF NOT EXISTS compiled_blobs (
		fingerprint TEXT NOT NULL PRIMARY KEY,
		data TEXT NOT NULL,
		created INTEGER NOT NULL
	);`)
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (repo *CompiledBlobsDB) Close() error {
	return nil
}

// Put is an upsert; the fingerprint is the identity and a second Put with
// the same fingerprint replaces the stored data.
func (repo *CompiledBlobsDB) Put(ctx context.Context, blob dao.CompiledBlob) (dao.CompiledBlob, error) {
	stmt, err := repo.db.Prepare(`INSERT INTO compiled_blobs (fingerprint, data, created) VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET data=excluded.data;`)
	if err != nil {
		return dao.CompiledBlob{}, wrapDBError(err)
	}

	_, err = stmt.ExecContext(
		ctx,
		convertToDB_ByteSlice(blob.Fingerprint),
		convertToDB_ByteSlice(blob.Data),
		convertToDB_Time(time.Now()),
	)
	if err != nil {
		return dao.CompiledBlob{}, wrapDBError(err)
	}

	return repo.GetByFingerprint(ctx, blob.Fingerprint)
}

func (repo *CompiledBlobsDB) GetByFingerprint(ctx context.Context, fingerprint []byte) (dao.CompiledBlob, error) {
	row := repo.db.QueryRowContext(ctx, `SELECT fingerprint, data, created FROM compiled_blobs WHERE fingerprint = ?;`,
		convertToDB_ByteSlice(fingerprint),
	)
	return scanCompiledBlob(row.Scan)
}

func (repo *CompiledBlobsDB) Delete(ctx context.Context, fingerprint []byte) (dao.CompiledBlob, error) {
	existing, err := repo.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return existing, err
	}

	res, err := repo.db.ExecContext(ctx, `DELETE FROM compiled_blobs WHERE fingerprint = ?;`, convertToDB_ByteSlice(fingerprint))
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

func scanCompiledBlob(scan func(...interface{}) error) (dao.CompiledBlob, error) {
	var blob dao.CompiledBlob
	var fingerprint string
	var data string
	var created int64

	err := scan(
		&fingerprint,
		&data,
		&created,
	)
	if err != nil {
		return blob, wrapDBError(err)
	}

	if err := convertFromDB_ByteSlice(fingerprint, &blob.Fingerprint); err != nil {
		return blob, fmt.Errorf("stored fingerprint is invalid: %w", err)
	}
	if err := convertFromDB_ByteSlice(data, &blob.Data); err != nil {
		return blob, fmt.Errorf("stored blob data is invalid: %w", err)
	}
	convertFromDB_Time(created, &blob.Created)

	return blob, nil
}
