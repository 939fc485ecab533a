//go:build !linux

package main

import "os"

// stderrIsTTY is a small seam for tests.
var stderrIsTTY = isTTY

func isTTY() bool {
	st, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (st.Mode() & os.ModeCharDevice) != 0
}
