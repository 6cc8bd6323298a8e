package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
format_version = "0.1.0"
server_hostname = "localhost"
server_port = "8790"
device_node = "${CHARDEV_TEST_RUN}/char_dev"
handle_cors = true
log_level = "debug"
request_timeout = "5s"

[audit]
enabled = true
dir = "${CHARDEV_TEST_RUN}/audit"
flush_every = 10
buffer_size = 16
`

func TestParse(t *testing.T) {
	t.Setenv("CHARDEV_TEST_RUN", "/run/chardev")

	c, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "localhost:8790", c.Address())
	assert.Equal(t, "http://localhost:8790", c.URL())
	assert.Equal(t, "/run/chardev/char_dev", c.DeviceNode)
	assert.Equal(t, DefaultCapacity, c.Capacity)
	assert.True(t, c.HandleCORS)
	assert.Equal(t, 5*time.Second, c.GetRequestTimeout())
	assert.True(t, c.Audit.Enabled)
	assert.Equal(t, "/run/chardev/audit", c.Audit.Dir)
	assert.Equal(t, 10, c.Audit.FlushEvery)
	assert.Equal(t, 16, c.Audit.BufferSize)
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("format_version = \"0.1.0\"\nserver_port = \"8790\"\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHostName, c.ServerHostName)
	assert.Equal(t, DefaultDeviceNode, c.DeviceNode)
	assert.Equal(t, DefaultCapacity, c.Capacity)
	assert.Equal(t, DefaultLogLevel, c.LogLevel)
	assert.Equal(t, 30*time.Second, c.GetRequestTimeout())
	assert.False(t, c.Audit.Enabled)
	assert.Equal(t, DefaultAuditFlush, c.Audit.FlushEvery)
	assert.Equal(t, DefaultAuditBuffer, c.Audit.BufferSize)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"format version", "format_version = \"9\"\nserver_port = \"1\"\n", "unsupported config file format version"},
		{"missing port", "format_version = \"0.1.0\"\n", "ServerPort"},
		{"port not numeric", "format_version = \"0.1.0\"\nserver_port = \"http\"\n", "ServerPort"},
		{"negative capacity", "format_version = \"0.1.0\"\nserver_port = \"1\"\ncapacity = -4\n", "Capacity"},
		{"log level", "format_version = \"0.1.0\"\nserver_port = \"1\"\nlog_level = \"loud\"\n", "LogLevel"},
		{"timeout", "format_version = \"0.1.0\"\nserver_port = \"1\"\nrequest_timeout = \"soon\"\n", "RequestTimeout"},
		{"audit dir", "format_version = \"0.1.0\"\nserver_port = \"1\"\n[audit]\nenabled = true\n", "Dir"},
		{"old flush key", "format_version = \"0.1.0\"\nserver_port = \"1\"\n[audit]\nflush_interval = 5\n", "unknown config keys: audit.flush_interval"},
		{"unknown key", "format_version = \"0.1.0\"\nserver_port = \"1\"\nmax_size = 12\n", "unknown config keys: max_size"},
		{"missing env", "format_version = \"${CHARDEV_TEST_UNSET_VAR}\"\n", "missing environment variable: CHARDEV_TEST_UNSET_VAR"},
		{"bad toml", "format_version = \n", "error parsing config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigWithDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CHARDEV_TEST_PORT=9911\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chardevd.conf"), []byte("format_version = \"0.1.0\"\nserver_port = \"${CHARDEV_TEST_PORT}\"\n"), 0600))
	t.Cleanup(func() {
		os.Unsetenv("CHARDEV_TEST_PORT")
		SetConfig(nil)
	})

	require.NoError(t, LoadConfig(filepath.Join(dir, "chardevd.conf")))
	require.NotNil(t, Config())
	assert.Equal(t, "9911", Config().ServerPort)

	assert.Error(t, LoadConfig(""))
	assert.Error(t, LoadConfig(filepath.Join(dir, "missing.conf")))
}

func TestDefault(t *testing.T) {
	c := Default()
	c.ServerPort = "8790"
	assert.NoError(t, ValidateConfig(c))
}
