package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	count     int
	countErr  error
	deleted   [][]string
	deleteErr error
	written   [][]Document
}

func (f *fakeStore) Count(ctx context.Context) (int, error) {
	return f.count, f.countErr
}

func (f *fakeStore) Delete(ctx context.Context, ids []string) error {
	f.deleted = append(f.deleted, ids)
	return f.deleteErr
}

func (f *fakeStore) Write(ctx context.Context, docs []Document) error {
	f.written = append(f.written, docs)
	return nil
}

func TestResetDeletesPositionalIDs(t *testing.T) {
	f := &fakeStore{count: 3}

	require.NoError(t, Reset(context.Background(), f))

	require.Len(t, f.deleted, 1)
	assert.Equal(t, []string{"0", "1", "2"}, f.deleted[0])
}

func TestResetEmptyStoreIsNoOp(t *testing.T) {
	f := &fakeStore{count: 0}

	require.NoError(t, Reset(context.Background(), f))
	assert.Empty(t, f.deleted)
}

func TestResetPropagatesCountError(t *testing.T) {
	f := &fakeStore{countErr: errors.New("boom")}

	err := Reset(context.Background(), f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count documents failed")
}

func TestResetPropagatesDeleteError(t *testing.T) {
	f := &fakeStore{count: 1, deleteErr: errors.New("boom")}

	err := Reset(context.Background(), f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete documents failed")
}
