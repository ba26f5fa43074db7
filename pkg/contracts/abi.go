package contracts

const (
	FHECounterName           = "FHECounter"
	ConfidentialETHName      = "ConfidentialETH"
	ConfidentialVaultName    = "ConfidentialVault"
	ConfidentialTestCoinName = "ConfidentialTestCoin"
	ConfidentialAAVEName     = "ConfidentialAAVE"
)

// Encrypted values cross the ABI as bytes32 handles.

const ConfidentialETHABI = `[
	{"type":"constructor","inputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"faucet","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"confidentialBalanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view"},
	{"type":"function","name":"setOperator","inputs":[{"name":"operator","type":"address"},{"name":"until","type":"uint48"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"isOperator","inputs":[{"name":"holder","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"}
]`

const ConfidentialVaultABI = `[
	{"type":"constructor","inputs":[{"name":"token","type":"address"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"deposit","inputs":[{"name":"encryptedAmount","type":"bytes32"},{"name":"inputProof","type":"bytes"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"withdraw","inputs":[{"name":"encryptedAmount","type":"bytes32"},{"name":"inputProof","type":"bytes"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view"}
]`

const ConfidentialAAVEABI = `[
	{"type":"constructor","inputs":[{"name":"_token","type":"address"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"deposit","inputs":[{"name":"encryptedAmount","type":"bytes32"},{"name":"inputProof","type":"bytes"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"withdraw","inputs":[{"name":"encryptedAmount","type":"bytes32"},{"name":"inputProof","type":"bytes"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view"},
	{"type":"function","name":"totalSupply","inputs":[],"outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view"},
	{"type":"function","name":"getLastError","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bytes32"},{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"token","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"}
]`

const ConfidentialTestCoinABI = `[
	{"type":"constructor","inputs":[],"stateMutability":"nonpayable"}
]`

const FHECounterABI = `[
	{"type":"constructor","inputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"getCount","inputs":[],"outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view"}
]`

// ABIs maps every deployable contract to its interface.
var ABIs = map[string]string{
	FHECounterName:           FHECounterABI,
	ConfidentialETHName:      ConfidentialETHABI,
	ConfidentialVaultName:    ConfidentialVaultABI,
	ConfidentialTestCoinName: ConfidentialTestCoinABI,
	ConfidentialAAVEName:     ConfidentialAAVEABI,
}
