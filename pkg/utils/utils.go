package utils

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sigweihq/walletsession/pkg/constants"
)

// FormatAddress shortens an address to display form (0x1234...5678)
func FormatAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return fmt.Sprintf("%s...%s", address[:6], address[len(address)-4:])
}

// WeiToEther converts a smallest-unit amount to native units rounded to the display scale
func WeiToEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	ether := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether))
	value, _ := ether.Float64()
	scale := math.Pow10(constants.BalanceDisplayScale)
	return math.Round(value*scale) / scale
}

// FormatBalance renders a display balance with a fixed number of decimals
// A missing balance renders as "0"
func FormatBalance(balance *float64) string {
	if balance == nil {
		return "0"
	}
	return strconv.FormatFloat(*balance, 'f', constants.BalanceDisplayScale, 64)
}

// NormalizeChainID returns the canonical lowercase hex form of a chain ID ("0x089" -> "0x89")
// Values that are not hex quantities are returned trimmed and lowercased
func NormalizeChainID(chainID string) string {
	chainID = strings.ToLower(strings.TrimSpace(chainID))
	if !strings.HasPrefix(chainID, "0x") {
		return chainID
	}
	n, ok := new(big.Int).SetString(chainID[2:], 16)
	if !ok || n.Sign() < 0 {
		return chainID
	}
	return hexutil.EncodeBig(n)
}

// ParseChainID accepts a hex ("0x89") or decimal ("137") chain ID and returns the hex form
func ParseChainID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty chain ID")
	}
	if strings.HasPrefix(strings.ToLower(input), "0x") {
		n, err := hexutil.DecodeBig(NormalizeChainID(input))
		if err != nil {
			return "", fmt.Errorf("invalid hex chain ID %q: %w", input, err)
		}
		return hexutil.EncodeBig(n), nil
	}
	n, ok := new(big.Int).SetString(input, 10)
	if !ok || n.Sign() <= 0 {
		return "", fmt.Errorf("invalid chain ID %q", input)
	}
	return hexutil.EncodeBig(n), nil
}

// ChainIDLess orders chain IDs numerically, falling back to string order for malformed IDs
func ChainIDLess(a, b string) bool {
	na, errA := hexutil.DecodeBig(NormalizeChainID(a))
	nb, errB := hexutil.DecodeBig(NormalizeChainID(b))
	if errA != nil || errB != nil {
		return a < b
	}
	return na.Cmp(nb) < 0
}
