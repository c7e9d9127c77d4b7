package inmem

import (
	"context"
	"time"

	"github.com/dekarrin/gramask/server/dao"
)

func NewCompiledBlobsRepository() *CompiledBlobsRepository {
	return &CompiledBlobsRepository{
		blobs: make(map[string]dao.CompiledBlob),
	}
}

// CompiledBlobsRepository keys entries by the string form of the
// fingerprint bytes. Unlike the other repositories there is no generated
// UUID; the fingerprint IS the identity, and Put is an upsert.
type CompiledBlobsRepository struct {
	blobs map[string]dao.CompiledBlob
}

func (imbr *CompiledBlobsRepository) Close() error {
	return nil
}

func (imbr *CompiledBlobsRepository) Put(ctx context.Context, blob dao.CompiledBlob) (dao.CompiledBlob, error) {
	if _, ok := imbr.blobs[string(blob.Fingerprint)]; !ok {
		blob.Created = time.Now()
	}
	imbr.blobs[string(blob.Fingerprint)] = blob
	return blob, nil
}

func (imbr *CompiledBlobsRepository) GetByFingerprint(ctx context.Context, fingerprint []byte) (dao.CompiledBlob, error) {
	blob, ok := imbr.blobs[string(fingerprint)]
	if !ok {
		return dao.CompiledBlob{}, dao.ErrNotFound
	}
	return blob, nil
}

func (imbr *CompiledBlobsRepository) Delete(ctx context.Context, fingerprint []byte) (dao.CompiledBlob, error) {
	blob, ok := imbr.blobs[string(fingerprint)]
	if !ok {
		return dao.CompiledBlob{}, dao.ErrNotFound
	}
	delete(imbr.blobs, string(fingerprint))
	return blob, nil
}
