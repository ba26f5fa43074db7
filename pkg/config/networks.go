package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/grexie/confidential-defi/pkg/fhevm"
	"gopkg.in/yaml.v3"
)

const MockNetwork = "mock"

// Network is one entry of networks.yaml. Mock networks run the contracts
// in-process against a local relayer.
type Network struct {
	Name      string                    `yaml:"-"`
	Mock      bool                      `yaml:"mock"`
	FHEVM     fhevm.Config              `yaml:"fhevm"`
	Contracts map[string]common.Address `yaml:"contracts"`
}

func DefaultNetworks() map[string]Network {
	return map[string]Network{
		MockNetwork: {Name: MockNetwork, Mock: true, FHEVM: fhevm.LocalConfig},
		"localhost": {Name: "localhost", FHEVM: fhevm.LocalConfig},
		"sepolia":   {Name: "sepolia", FHEVM: fhevm.SepoliaConfig},
	}
}

type networksFile struct {
	Networks map[string]yaml.Node `yaml:"networks"`
}

// LoadNetworks overlays the entries of filename on DefaultNetworks. Fields
// an entry leaves out keep their default values. A missing file yields the
// defaults.
func LoadNetworks(filename string) (map[string]Network, error) {
	networks := DefaultNetworks()

	b, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return networks, nil
	} else if err != nil {
		return nil, err
	}

	var f networksFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	for name, node := range f.Networks {
		n := networks[name]
		if err := node.Decode(&n); err != nil {
			return nil, fmt.Errorf("parsing network %s in %s: %w", name, filename, err)
		}
		n.Name = name
		networks[name] = n
	}

	return networks, nil
}

func networkNames(networks map[string]Network) []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveNetwork picks the configured network and applies the RPC_URL and
// RELAYER_URL overrides.
func (c *Config) ResolveNetwork() (*Network, error) {
	networks, err := LoadNetworks(c.NetworksFile)
	if err != nil {
		return nil, err
	}

	n, ok := networks[c.Network]
	if !ok {
		return nil, fmt.Errorf("unknown network %q, expected one of %v", c.Network, networkNames(networks))
	}

	if c.RPCURL != "" {
		n.FHEVM.NetworkURL = c.RPCURL
	}
	if c.RelayerURL != "" {
		n.FHEVM.RelayerURL = c.RelayerURL
	}

	if err := n.FHEVM.Validate(); err != nil {
		return nil, fmt.Errorf("network %s: %w", n.Name, err)
	}
	return &n, nil
}

// Contract returns the address configured for name, if any.
func (n *Network) Contract(name string) (common.Address, bool) {
	address, ok := n.Contracts[name]
	return address, ok && address != (common.Address{})
}
