package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// parseTime accepts unix seconds, RFC3339, or a YYYY-MM-DD date taken as
// midnight UTC.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		if sec < 0 {
			return time.Time{}, fmt.Errorf("invalid time %q: negative unix seconds", s)
		}
		return time.Unix(sec, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: expected unix seconds, RFC3339 or YYYY-MM-DD", s)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseAddresses(args []string) ([]common.Address, error) {
	addrs := make([]common.Address, 0, len(args))
	for _, a := range args {
		addr, err := parseAddress(a)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
