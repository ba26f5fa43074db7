package fhevm

type RelayerResponse[E any] struct {
	Response *E     `json:"response,omitempty"`
	Message  string `json:"message,omitempty"`
	Status   string `json:"status,omitempty"`
}

type KeyURLResponse struct {
	PublicKey   string `json:"publicKey"`
	PublicKeyID string `json:"publicKeyId"`
}

type InputProofRequest struct {
	ContractAddress                 string `json:"contractAddress"`
	UserAddress                     string `json:"userAddress"`
	CiphertextWithInputVerification string `json:"ciphertextWithInputVerification"`
	ContractChainID                 string `json:"contractChainId"`
	ExtraData                       string `json:"extraData"`
}

type InputProofResponse struct {
	Handles    []string `json:"handles"`
	Signatures []string `json:"signatures"`
}

type RequestValidity struct {
	StartTimestamp string `json:"startTimestamp"`
	DurationDays   string `json:"durationDays"`
}

type UserDecryptPair struct {
	Handle          string `json:"handle"`
	ContractAddress string `json:"contractAddress"`
}

type UserDecryptRequest struct {
	HandleContractPairs []UserDecryptPair `json:"handleContractPairs"`
	RequestValidity     RequestValidity   `json:"requestValidity"`
	ContractsChainID    string            `json:"contractsChainId"`
	ContractAddresses   []string          `json:"contractAddresses"`
	UserAddress         string            `json:"userAddress"`
	Signature           string            `json:"signature"`
	PublicKey           string            `json:"publicKey"`
	ExtraData           string            `json:"extraData"`
}

type UserDecryptShare struct {
	Handle     string `json:"handle"`
	Ciphertext string `json:"ciphertext"`
}

type UserDecryptResponse struct {
	Payload []UserDecryptShare `json:"payload"`
}
