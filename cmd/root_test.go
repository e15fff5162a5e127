/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	root.Version = "1.2.3"

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "ns-migrator version 1.2.3\n", out.String())
}

func TestRootCmd_registers_flags(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{
		"config",
		"metrics-bind-address",
		"health-probe-bind-address",
		"leader-elect",
		"watch-namespace",
		"request-selector",
		"operation-timeout",
		"concurrent-kinds",
		"reserved-configmaps",
		"local-storage-marker",
		"request-retention",
		"retention-interval",
		"reconnect-initial",
		"reconnect-max",
		"reconnect-factor",
		"zap-log-level",
	} {
		assert.NotNil(t, root.Flags().Lookup(name), "flag %s", name)
	}
}

func TestRootCmd_rejects_invalid_configuration(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		args    []string
		wantErr string
	}{
		{
			name:    "invalid file value",
			file:    "reconnect:\n  factor: 0.5\n",
			wantErr: "reconnect.factor",
		},
		{
			name:    "invalid flag value",
			args:    []string{"--request-selector=team in ("},
			wantErr: "requestSelector",
		},
		{
			name:    "file value overridden by a valid flag is not reported",
			file:    "localStorageMarker: \"\"\nwatchNamespace: Bad_NS\n",
			args:    []string{"--local-storage-marker=hostpath"},
			wantErr: "watchNamespace",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.args
			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o600))
				args = append(args, "--config", path)
			}

			root := newRootCmd()
			root.SetArgs(args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})

			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.NotContains(t, err.Error(), "localStorageMarker")
		})
	}
}

func TestRootCmd_missing_config_file(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading")
}
