// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mesh

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/vechain/mesh-security/bn"
)

// Coin is an amount of one denom.
type Coin struct {
	Denom  string     `json:"denom"`
	Amount bn.Uint128 `json:"amount"`
}

// NewCoin creates a coin.
func NewCoin(amount uint64, denom string) Coin {
	return Coin{Denom: denom, Amount: bn.NewUint128(amount)}
}

func (c Coin) String() string {
	return fmt.Sprintf("%s%s", c.Amount, c.Denom)
}

// ParseCoin parses the "<amount><denom>" form, e.g. "100ustake".
func ParseCoin(s string) (Coin, error) {
	i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if i <= 0 {
		return Coin{}, errors.Errorf("invalid coin %q", s)
	}
	amount, err := bn.ParseUint128(s[:i])
	if err != nil {
		return Coin{}, err
	}
	return Coin{Denom: s[i:], Amount: amount}, nil
}

// Coins is a list of coins, at most one entry per denom.
type Coins []Coin

// ParseCoins parses a comma separated list of coins.
func ParseCoins(s string) (Coins, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var coins Coins
	for _, part := range strings.Split(s, ",") {
		c, err := ParseCoin(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		coins = append(coins, c)
	}
	return coins, nil
}

// AmountOf returns the amount of denom, zero when absent.
func (cs Coins) AmountOf(denom string) bn.Uint128 {
	for _, c := range cs {
		if c.Denom == denom {
			return c.Amount
		}
	}
	return bn.ZeroUint128()
}

func (cs Coins) String() string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ",")
}
