// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
)

func execute(t *testing.T, args ...string) string {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return strings.TrimSpace(out.String())
}

func TestKeygen(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "key")

	generated := execute(t, "keygen", path)
	_, err := addresses.Parse(generated)
	r.NoError(err)

	info, err := os.Stat(path)
	r.NoError(err)
	r.Equal(os.FileMode(0o600), info.Mode().Perm())

	r.Equal(generated, execute(t, "address", "--key", path))

	rootCmd.SetArgs([]string{"keygen", path})
	r.Error(rootCmd.Execute())
}

func TestLoadKeyRejectsMalformed(t *testing.T) {
	r := require.New(t)
	dir := t.TempDir()

	short := filepath.Join(dir, "short")
	r.NoError(os.WriteFile(short, []byte("abcd"), 0o600))
	_, err := loadKey(short)
	r.Error(err)

	garbage := filepath.Join(dir, "garbage")
	r.NoError(os.WriteFile(garbage, []byte("not hex"), 0o600))
	_, err = loadKey(garbage)
	r.Error(err)
}
