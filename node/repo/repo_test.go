package repo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/chain/types"
)

func basicTest(t *testing.T, repo Repo) {
	apima, err := repo.APIEndpoint()
	if assert.Error(t, err) {
		assert.Equal(t, ErrNoAPIEndpoint, err)
	}
	assert.Empty(t, apima, "with no api endpoint, return empty")

	lrepo, err := repo.Lock()
	assert.NoError(t, err, "should be able to lock once")
	assert.NotNil(t, lrepo, "locked repo shouldn't be nil")

	{
		lrepo2, err := repo.Lock()
		if assert.Error(t, err) {
			assert.Equal(t, ErrRepoAlreadyLocked, err)
		}
		assert.Nil(t, lrepo2, "with locked repo, we mustn't be able to lock again")
	}

	err = lrepo.SetAPIEndpoint("127.0.0.1:43211")
	assert.NoError(t, err, "setting api endpoint shouldn't fail")

	apima, err = repo.APIEndpoint()
	assert.NoError(t, err, "setting api endpoint shouldn't fail")
	assert.Equal(t, "127.0.0.1:43211", apima, "returned api endpoint should equal set one")

	ds, err := lrepo.Datastore("/metadata")
	require.NoError(t, err)
	require.NotNil(t, ds)

	err = lrepo.Close()
	assert.NoError(t, err, "should be able to unlock")

	lrepo, err = repo.Lock()
	assert.NoError(t, err, "should be able to relock")
	defer func() {
		require.NoError(t, lrepo.Close())
	}()

	kstr, err := lrepo.KeyStore()
	assert.NoError(t, err, "should be able to get keystore")
	assert.NotNil(t, kstr, "keystore shouldn't be nil")

	list, err := kstr.List()
	assert.NoError(t, err, "should be able to list key")
	assert.Empty(t, list, "there should be no keys")

	k1 := types.KeyInfo{Type: types.KTSecp256k1, PrivateKey: []byte("secret key one")}
	k2 := types.KeyInfo{Type: types.KTSecp256k1, PrivateKey: []byte("secret key two")}

	err = kstr.Put("k1", k1)
	assert.NoError(t, err, "should be able to put k1")

	err = kstr.Put("k1", k1)
	if assert.Error(t, err, "putting key under the same name should fail") {
		assert.True(t, errors.Is(err, types.ErrKeyExists), "returned error is ErrKeyExists")
	}

	err = kstr.Put("k2", k2)
	assert.NoError(t, err, "should be able to put k2")

	list, err = kstr.List()
	assert.NoError(t, err, "should be able to list keys")
	assert.ElementsMatch(t, []string{"k1", "k2"}, list, "returned keys match")

	k1prim, err := kstr.Get("k1")
	assert.NoError(t, err, "should be able to get k1")
	assert.Equal(t, k1, k1prim, "returned key matches k1")

	k2prim, err := kstr.Get("k2")
	assert.NoError(t, err, "should be able to get k2")
	assert.Equal(t, k2, k2prim, "returned key matches k2")

	err = kstr.Delete("k1")
	assert.NoError(t, err, "should be able to delete k1")

	_, err = kstr.Get("k1")
	if assert.Error(t, err, "getting deleted key should fail") {
		assert.True(t, errors.Is(err, types.ErrKeyInfoNotFound), "returned error is ErrKeyInfoNotFound")
	}

	list, err = kstr.List()
	assert.NoError(t, err, "should be able to list keys")
	assert.ElementsMatch(t, []string{"k2"}, list, "returned keys match")
}

func TestMemBasic(t *testing.T) {
	repo := NewMemory(nil)
	basicTest(t, repo)
}

func TestFsBasic(t *testing.T) {
	path := t.TempDir()

	repo, err := NewFS(path)
	require.NoError(t, err)

	err = repo.Init()
	require.NoError(t, err)

	basicTest(t, repo)
}
