// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"time"
)

var errNotFound = errors.New("no live record with that identity")

func parseThreshold(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
