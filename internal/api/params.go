package api

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// parseAddress validates and parses a hex address parameter
func parseAddress(value, field string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s must be a hex address", field)
	}
	return common.HexToAddress(value), nil
}

// parseBigInt parses a decimal string into a big integer
func parseBigInt(value, field string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a decimal integer", field)
	}
	return n, nil
}

// callerAddress extracts the caller's address from the request headers.
// In production this would come from an auth middleware.
func callerAddress(r *http.Request) (common.Address, error) {
	value := r.Header.Get("X-Caller-Address")
	if value == "" {
		return common.Address{}, fmt.Errorf("X-Caller-Address header is required")
	}
	return parseAddress(value, "X-Caller-Address")
}

// parseQueryInt reads an integer query parameter with a default
func parseQueryInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
