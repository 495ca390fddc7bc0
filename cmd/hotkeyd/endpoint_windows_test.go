//go:build windows

package main

import (
	"fmt"
	"os"
	"testing"
)

func testEndpoint(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf(`\\.\pipe\hotkeyd-cli-%d-%s`, os.Getpid(), t.Name())
}
