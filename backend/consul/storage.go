package consul

import (
	"context"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/resdb/backend"
	"github.com/mwantia/resdb/data"
)

func (cb *ConsulBackend) PutBlob(ctx context.Context, hash string, payload []byte) error {
	if err := backend.CheckBlobSize(hash, len(payload), maxObjectSize); err != nil {
		return err
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Check-and-set with index 0 only writes when the key does not exist yet
	pair := &api.KVPair{
		Key:         cb.buildKey(hash),
		Value:       payload,
		ModifyIndex: 0,
	}
	if _, _, err := cb.kv.CAS(pair, (&api.WriteOptions{}).WithContext(ctx)); err != nil {
		return err
	}

	return nil
}

func (cb *ConsulBackend) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	pair, _, err := cb.kv.Get(cb.buildKey(hash), (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, data.ErrNotExist
	}

	return pair.Value, nil
}

func (cb *ConsulBackend) HasBlob(ctx context.Context, hash string) (bool, error) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	keys, _, err := cb.kv.Keys(cb.buildKey(hash), "", (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return false, err
	}

	for _, key := range keys {
		if key == cb.buildKey(hash) {
			return true, nil
		}
	}
	return false, nil
}
