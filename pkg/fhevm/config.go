package fhevm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Config locates the host chain contracts, the gateway chain and the relayer
// an instance talks to.
type Config struct {
	ACLContractAddress                        common.Address `yaml:"aclContractAddress" json:"aclContractAddress"`
	KMSContractAddress                        common.Address `yaml:"kmsContractAddress" json:"kmsContractAddress"`
	InputVerifierContractAddress              common.Address `yaml:"inputVerifierContractAddress" json:"inputVerifierContractAddress"`
	VerifyingContractAddressDecryption        common.Address `yaml:"verifyingContractAddressDecryption" json:"verifyingContractAddressDecryption"`
	VerifyingContractAddressInputVerification common.Address `yaml:"verifyingContractAddressInputVerification" json:"verifyingContractAddressInputVerification"`
	ChainID                                   uint64         `yaml:"chainId" json:"chainId"`
	GatewayChainID                            uint64         `yaml:"gatewayChainId" json:"gatewayChainId"`
	RelayerURL                                string         `yaml:"relayerUrl" json:"relayerUrl"`
	NetworkURL                                string         `yaml:"networkUrl" json:"networkUrl"`
}

var SepoliaConfig = Config{
	ACLContractAddress:                        common.HexToAddress("0x687820221192C5B662b25367F70076A37bc79b6c"),
	KMSContractAddress:                        common.HexToAddress("0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC"),
	InputVerifierContractAddress:              common.HexToAddress("0xbc91f3daD1A5F19F8390c400196e58073B6a0BC4"),
	VerifyingContractAddressDecryption:        common.HexToAddress("0xb6E160B1ff80D67Bfe90A85eE06Ce0A2613607D1"),
	VerifyingContractAddressInputVerification: common.HexToAddress("0x7048C39f048125eDa9d678AEbaDfB22F7900a29F"),
	ChainID:                                   11155111,
	GatewayChainID:                            55815,
	RelayerURL:                                "https://relayer.testnet.zama.cloud",
	NetworkURL:                                "https://eth-sepolia.public.blastapi.io",
}

// LocalConfig matches a hardhat node started with the fhevm plugin and the
// mock relayer listening next to it.
var LocalConfig = Config{
	ACLContractAddress:                        common.HexToAddress("0x50157CFfD6bBFA2DECe204a89ec419c23ef5755D"),
	KMSContractAddress:                        common.HexToAddress("0xcCAe95fF1d11656358E782570dF0418F59fA40e1"),
	InputVerifierContractAddress:              common.HexToAddress("0x901F8942346f7AB3a01F6D7613119Bca447Bb030"),
	VerifyingContractAddressDecryption:        common.HexToAddress("0xa02Cda4Ca3a71D7C46997716F4283aa851C28812"),
	VerifyingContractAddressInputVerification: common.HexToAddress("0x812b06e1CDCE800494b79fFE4f925A504a9A9810"),
	ChainID:                                   31337,
	GatewayChainID:                            55815,
	RelayerURL:                                "http://127.0.0.1:8545/relayer",
	NetworkURL:                                "http://127.0.0.1:8545",
}

func (c Config) Validate() error {
	if c.RelayerURL == "" {
		return fmt.Errorf("relayer url not configured")
	} else if c.ChainID == 0 {
		return fmt.Errorf("chain id not configured")
	} else if c.GatewayChainID == 0 {
		return fmt.Errorf("gateway chain id not configured")
	} else if c.ACLContractAddress == (common.Address{}) {
		return fmt.Errorf("acl contract address not configured")
	} else if c.VerifyingContractAddressDecryption == (common.Address{}) {
		return fmt.Errorf("decryption verifying contract address not configured")
	}
	return nil
}
