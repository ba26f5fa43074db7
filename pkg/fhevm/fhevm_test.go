package fhevm_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/grexie/confidential-defi/pkg/fhevm"
	"github.com/grexie/confidential-defi/pkg/fhevm/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	vaultAddress = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	cethAddress  = common.HexToAddress("0x00000000000000000000000000000000000000a2")
)

func newInstance(t *testing.T) (fhevm.Instance, mock.Relayer) {
	t.Helper()

	config := fhevm.LocalConfig
	config.RelayerURL = "http://relayer.test"

	relayer, err := mock.NewRelayer(config)
	require.NoError(t, err)

	instance, err := fhevm.CreateInstance(context.Background(), config, fhevm.WithHTTPClient(relayer.HTTPClient()))
	require.NoError(t, err)

	return instance, relayer
}

func signEIP712(t *testing.T, typed fhevm.EIP712, key []byte) []byte {
	t.Helper()

	pk, err := crypto.ToECDSA(key)
	require.NoError(t, err)
	hash, err := typed.Hash()
	require.NoError(t, err)
	sig, err := crypto.Sign(hash, pk)
	require.NoError(t, err)
	sig[64] += 27
	return sig
}

func TestEncryptAdd64(t *testing.T) {
	instance, relayer := newInstance(t)
	user := common.HexToAddress("0x00000000000000000000000000000000000000b1")

	encrypted, err := instance.CreateEncryptedInput(vaultAddress, user).Add64(1_000_000).Encrypt(context.Background())
	require.NoError(t, err)
	require.Len(t, encrypted.Handles, 1)

	h := encrypted.Handles[0]
	assert.Equal(t, fhevm.TypeUint64, h.Type())
	assert.Equal(t, uint64(31337), h.ChainID())
	assert.Equal(t, byte(0), h.Index())
	assert.Equal(t, fhevm.HandleVersion, h.Version())

	handles, signatures, extra, err := fhevm.ParseInputProof(encrypted.InputProof)
	require.NoError(t, err)
	assert.Equal(t, encrypted.Handles, handles)
	assert.Len(t, signatures, 1)
	assert.Equal(t, fhevm.DefaultExtraData, extra)

	v, ok := relayer.Plaintext(h)
	require.True(t, ok)
	assert.Equal(t, int64(1_000_000), v.Int64())
	assert.True(t, relayer.IsAllowed(h, user))
	assert.True(t, relayer.IsAllowed(h, vaultAddress))
}

func TestEncryptMultipleValues(t *testing.T) {
	instance, relayer := newInstance(t)
	user := common.HexToAddress("0x00000000000000000000000000000000000000b1")

	encrypted, err := instance.CreateEncryptedInput(vaultAddress, user).
		AddBool(true).
		Add8(7).
		AddAddress(cethAddress).
		Encrypt(context.Background())
	require.NoError(t, err)
	require.Len(t, encrypted.Handles, 3)

	assert.Equal(t, fhevm.TypeBool, encrypted.Handles[0].Type())
	assert.Equal(t, fhevm.TypeUint8, encrypted.Handles[1].Type())
	assert.Equal(t, fhevm.TypeAddress, encrypted.Handles[2].Type())
	assert.Equal(t, byte(2), encrypted.Handles[2].Index())

	v, ok := relayer.Plaintext(encrypted.Handles[2])
	require.True(t, ok)
	assert.Equal(t, cethAddress, common.BigToAddress(v))
}

func TestEncryptRejectsInvalidInputs(t *testing.T) {
	instance, _ := newInstance(t)
	user := common.HexToAddress("0x00000000000000000000000000000000000000b1")

	_, err := instance.CreateEncryptedInput(vaultAddress, user).Encrypt(context.Background())
	assert.Error(t, err)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 128)
	input := instance.CreateEncryptedInput(vaultAddress, user).Add128(tooBig)
	assert.Error(t, input.Err())

	input = instance.CreateEncryptedInput(vaultAddress, user)
	for i := 0; i < 8; i++ {
		input.Add256(big.NewInt(int64(i)))
	}
	require.NoError(t, input.Err())
	input.AddBool(false)
	assert.ErrorContains(t, input.Err(), "2048 bits")

	_, err = input.Encrypt(context.Background())
	assert.Error(t, err)

	input = instance.CreateEncryptedInput(vaultAddress, user)
	for i := 0; i < fhevm.MaxInputValues; i++ {
		input.AddBool(i%2 == 0)
	}
	require.NoError(t, input.Err())
	input.AddBool(true)
	assert.ErrorContains(t, input.Err(), "256 variables")
}

func TestUserDecrypt(t *testing.T) {
	instance, relayer := newInstance(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	user := crypto.PubkeyToAddress(key.PublicKey)

	handle := relayer.NewHandle(fhevm.TypeUint64, big.NewInt(600_000), user, vaultAddress)

	keypair, err := instance.GenerateKeypair()
	require.NoError(t, err)

	start := time.Now().Unix()
	contracts := []common.Address{vaultAddress}
	typed, err := instance.CreateEIP712(keypair.PublicKey[:], contracts, start, 10)
	require.NoError(t, err)

	signature := signEIP712(t, typed, crypto.FromECDSA(key))

	results, err := instance.UserDecrypt(context.Background(), []fhevm.HandleContractPair{{Handle: handle, ContractAddress: vaultAddress}}, keypair, signature, contracts, user, start, 10)
	require.NoError(t, err)

	v, err := results.Uint64(handle)
	require.NoError(t, err)
	assert.Equal(t, uint64(600_000), v)
}

func TestUserDecryptRejectsForeignSignature(t *testing.T) {
	instance, relayer := newInstance(t)

	owner, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()
	user := crypto.PubkeyToAddress(owner.PublicKey)

	handle := relayer.NewHandle(fhevm.TypeUint64, big.NewInt(1), user, vaultAddress)
	keypair, _ := instance.GenerateKeypair()
	start := time.Now().Unix()
	contracts := []common.Address{vaultAddress}
	typed, err := instance.CreateEIP712(keypair.PublicKey[:], contracts, start, 10)
	require.NoError(t, err)

	signature := signEIP712(t, typed, crypto.FromECDSA(other))

	_, err = instance.UserDecrypt(context.Background(), []fhevm.HandleContractPair{{Handle: handle, ContractAddress: vaultAddress}}, keypair, signature, contracts, user, start, 10)

	var relayerErr *fhevm.RelayerError
	require.True(t, errors.As(err, &relayerErr))
	assert.Equal(t, 401, relayerErr.Status)
}

func TestUserDecryptRequiresACL(t *testing.T) {
	instance, relayer := newInstance(t)

	key, _ := crypto.GenerateKey()
	user := crypto.PubkeyToAddress(key.PublicKey)

	handle := relayer.NewHandle(fhevm.TypeUint64, big.NewInt(1), vaultAddress)
	keypair, _ := instance.GenerateKeypair()
	start := time.Now().Unix()
	contracts := []common.Address{vaultAddress}
	typed, _ := instance.CreateEIP712(keypair.PublicKey[:], contracts, start, 10)
	signature := signEIP712(t, typed, crypto.FromECDSA(key))

	_, err := instance.UserDecrypt(context.Background(), []fhevm.HandleContractPair{{Handle: handle, ContractAddress: vaultAddress}}, keypair, signature, contracts, user, start, 10)

	var relayerErr *fhevm.RelayerError
	require.True(t, errors.As(err, &relayerErr))
	assert.Equal(t, 403, relayerErr.Status)
}

func TestUserDecryptValidatesLocally(t *testing.T) {
	instance, _ := newInstance(t)
	keypair, _ := instance.GenerateKeypair()
	user := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	handle := fhevm.ComputeHandles([]byte("x"), []fhevm.FheType{fhevm.TypeUint64}, fhevm.LocalConfig.ACLContractAddress, 31337)[0]
	pairs := []fhevm.HandleContractPair{{Handle: handle, ContractAddress: cethAddress}}
	now := time.Now().Unix()

	_, err := instance.UserDecrypt(context.Background(), pairs, keypair, []byte{1}, []common.Address{vaultAddress}, user, now, 10)
	assert.ErrorContains(t, err, "not in the contract addresses list")

	_, err = instance.UserDecrypt(context.Background(), pairs, keypair, []byte{1}, []common.Address{cethAddress}, user, now+3600, 10)
	assert.ErrorContains(t, err, "in the future")

	_, err = instance.UserDecrypt(context.Background(), pairs, keypair, []byte{1}, []common.Address{cethAddress}, user, now-11*86400, 10)
	assert.ErrorContains(t, err, "expired")

	_, err = instance.UserDecrypt(context.Background(), pairs, keypair, []byte{1}, []common.Address{cethAddress}, user, now, 366)
	assert.Error(t, err)

	many := make([]common.Address, fhevm.MaxUserDecryptContractAddresses+1)
	many[0] = cethAddress
	_, err = instance.UserDecrypt(context.Background(), pairs, keypair, []byte{1}, many, user, now, 10)
	assert.ErrorContains(t, err, "too many contract addresses")

	wide := fhevm.ComputeHandles([]byte("wide"), []fhevm.FheType{
		fhevm.TypeUint256, fhevm.TypeUint256, fhevm.TypeUint256,
		fhevm.TypeUint256, fhevm.TypeUint256, fhevm.TypeUint256,
		fhevm.TypeUint256, fhevm.TypeUint256, fhevm.TypeUint256,
	}, fhevm.LocalConfig.ACLContractAddress, 31337)
	widePairs := make([]fhevm.HandleContractPair, len(wide))
	for i, h := range wide {
		widePairs[i] = fhevm.HandleContractPair{Handle: h, ContractAddress: cethAddress}
	}
	_, err = instance.UserDecrypt(context.Background(), widePairs, keypair, []byte{1}, []common.Address{cethAddress}, user, now, 10)
	assert.ErrorContains(t, err, "2048 encrypted bits")
}

func TestRequestValidityWindowEnd(t *testing.T) {
	start := int64(1_700_000_000)
	end := start + 10*86400

	assert.NoError(t, fhevm.CheckRequestValidity(start, start, 10))
	assert.NoError(t, fhevm.CheckRequestValidity(end-1, start, 10))
	assert.ErrorContains(t, fhevm.CheckRequestValidity(end, start, 10), "expired")

	config := fhevm.LocalConfig
	config.RelayerURL = "http://relayer.test"
	relayer, err := mock.NewRelayer(config)
	require.NoError(t, err)
	instance, err := fhevm.CreateInstance(context.Background(), config,
		fhevm.WithHTTPClient(relayer.HTTPClient()),
		fhevm.WithClock(func() time.Time { return time.Unix(end, 0) }))
	require.NoError(t, err)

	keypair, _ := instance.GenerateKeypair()
	handle := relayer.NewHandle(fhevm.TypeUint64, big.NewInt(1), cethAddress)
	pairs := []fhevm.HandleContractPair{{Handle: handle, ContractAddress: cethAddress}}
	_, err = instance.UserDecrypt(context.Background(), pairs, keypair, []byte{1}, []common.Address{cethAddress}, cethAddress, start, 10)
	assert.ErrorContains(t, err, "expired")
}

func TestUserDecryptBoolAndAddress(t *testing.T) {
	instance, relayer := newInstance(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	user := crypto.PubkeyToAddress(key.PublicKey)

	flag := relayer.NewHandle(fhevm.TypeBool, big.NewInt(1), user, vaultAddress)
	token := relayer.NewHandle(fhevm.TypeAddress, cethAddress.Big(), user, vaultAddress)

	keypair, err := instance.GenerateKeypair()
	require.NoError(t, err)
	start := time.Now().Unix()
	contracts := []common.Address{vaultAddress}
	typed, err := instance.CreateEIP712(keypair.PublicKey[:], contracts, start, 10)
	require.NoError(t, err)

	pairs := []fhevm.HandleContractPair{{Handle: flag, ContractAddress: vaultAddress}, {Handle: token, ContractAddress: vaultAddress}}
	results, err := instance.UserDecrypt(context.Background(), pairs, keypair, signEIP712(t, typed, crypto.FromECDSA(key)), contracts, user, start, 10)
	require.NoError(t, err)

	b, err := results.Bool(flag)
	require.NoError(t, err)
	assert.True(t, b)

	a, err := results.Address(token)
	require.NoError(t, err)
	assert.Equal(t, cethAddress, a)

	_, err = results.Bool(fhevm.Handle{})
	assert.Error(t, err)
	_, err = results.Address(fhevm.Handle{})
	assert.Error(t, err)
}

func TestNetworkPublicKey(t *testing.T) {
	instance, relayer := newInstance(t)
	assert.NotEqual(t, [32]byte{}, instance.NetworkPublicKey())

	again, err := fhevm.CreateInstance(context.Background(), instance.Config(), fhevm.WithHTTPClient(relayer.HTTPClient()))
	require.NoError(t, err)
	assert.Equal(t, instance.NetworkPublicKey(), again.NetworkPublicKey())
}

func TestCreateEIP712(t *testing.T) {
	instance, _ := newInstance(t)
	keypair, _ := instance.GenerateKeypair()

	typed, err := instance.CreateEIP712(keypair.PublicKey[:], []common.Address{vaultAddress}, 1700000000, 10)
	require.NoError(t, err)
	assert.Equal(t, "Decryption", typed.Domain.Name)
	assert.Equal(t, "1", typed.Domain.Version)
	assert.Equal(t, fhevm.UserDecryptPrimaryType, typed.PrimaryType)
	assert.Equal(t, "10", typed.Message["durationDays"])
	assert.Equal(t, "1700000000", typed.Message["startTimestamp"])

	_, err = instance.CreateEIP712(keypair.PublicKey[:], []common.Address{vaultAddress}, 1700000000, 0)
	assert.Error(t, err)

	many := make([]common.Address, fhevm.MaxUserDecryptContractAddresses+1)
	_, err = instance.CreateEIP712(keypair.PublicKey[:], many, 1700000000, 10)
	assert.Error(t, err)
}

func TestHandleHex(t *testing.T) {
	handle := fhevm.ComputeHandles([]byte("ciphertext"), []fhevm.FheType{fhevm.TypeUint32}, fhevm.SepoliaConfig.ACLContractAddress, fhevm.SepoliaConfig.ChainID)[0]

	parsed, err := fhevm.HandleFromHex(handle.Hex()[2:])
	require.NoError(t, err)
	assert.Equal(t, handle, parsed)
	assert.Equal(t, fhevm.SepoliaConfig.ChainID, parsed.ChainID())

	_, err = fhevm.HandleFromHex("0x1234")
	assert.Error(t, err)
}
