package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress validates a hex account and returns its lowercase form
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", &InvalidAddressError{Address: address}
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// NormalizeAccounts normalizes every account, failing on the first malformed entry
func NormalizeAccounts(accounts []string) ([]string, error) {
	out := make([]string, 0, len(accounts))
	for _, account := range accounts {
		normalized, err := NormalizeAddress(account)
		if err != nil {
			return nil, err
		}
		out = append(out, normalized)
	}
	return out, nil
}

// ChecksumAddress returns the EIP-55 mixed-case form of address
func ChecksumAddress(address string) string {
	if !common.IsHexAddress(address) {
		return address
	}
	return common.HexToAddress(address).Hex()
}
