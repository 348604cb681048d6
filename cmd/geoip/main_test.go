package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TomasB/geoheader/internal/mmdbtest"
)

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestRun_Formats(t *testing.T) {
	path := mmdbtest.WriteCity(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "key-value",
			args: []string{"--db", path, "8.8.8.8"},
			want: "city:Mountain View, country:US, lat:37.400000, lon:-122.100000, ip:8.8.8.8\n",
		},
		{
			name: "key-value miss",
			args: []string{"--db", path, "1.1.1.1"},
			want: "city:, country:XX, lat:0.000000, lon:0.000000, ip:1.1.1.1\n",
		},
		{
			name: "json",
			args: []string{"--db", path, "--format", "json", "8.8.8.8"},
			want: `{"city":"Mountain View","country":"US","lat":"37.400000","lon":"-122.100000","classC":"8.8.8.8","netmask":24}` + "\n",
		},
		{
			name: "json miss",
			args: []string{"--db", path, "-f", "json", "1.1.1.1"},
			want: "{}\n",
		},
		{
			name: "country",
			args: []string{"--db", path, "-f", "country", "2.125.160.216"},
			want: "GB\n",
		},
		{
			name: "country-prefixed custom fallback",
			args: []string{"--db", path, "-f", "country-prefixed", "--fallback", "A1", "1.1.1.1"},
			want: "country:A1\n",
		},
		{
			name: "mmap mode",
			args: []string{"--db", path, "--memory-cache=false", "-f", "country", "8.8.8.8"},
			want: "US\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, code := runCLI(t, tt.args...)
			assert.Equal(t, 0, code)
			assert.Equal(t, tt.want, stdout)
		})
	}
}

func TestRun_MissingDatasetStillExitsZero(t *testing.T) {
	stdout, stderr, code := runCLI(t, "--db", "/nonexistent/GeoIP2-City.mmdb", "8.8.8.8")

	assert.Equal(t, 0, code)
	assert.Equal(t, "city:, country:XX, lat:0.000000, lon:0.000000, ip:8.8.8.8\n", stdout)
	assert.Contains(t, stderr, "failed to open geo database")
}

func TestRun_WrongArgCountPrintsEmptyLine(t *testing.T) {
	path := mmdbtest.WriteCity(t)

	stdout, _, code := runCLI(t, "--db", path)
	assert.Equal(t, 0, code)
	assert.Equal(t, "\n", stdout)

	stdout, _, code = runCLI(t, "--db", path, "8.8.8.8", "1.1.1.1")
	assert.Equal(t, 0, code)
	assert.Equal(t, "\n", stdout)
}

func TestRun_BadFormat(t *testing.T) {
	stdout, stderr, code := runCLI(t, "-f", "xml", "8.8.8.8")
	assert.Equal(t, 2, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "unknown format mode")
}

func TestRun_BadFlag(t *testing.T) {
	_, _, code := runCLI(t, "--no-such-flag")
	assert.Equal(t, 2, code)
}

func TestRun_RejectsServerFlags(t *testing.T) {
	for _, flag := range []string{"--port=9000", "--grpc-port=9090", "--upstream=http://x", "--watch=false"} {
		_, _, code := runCLI(t, flag, "8.8.8.8")
		assert.Equal(t, 2, code, flag)
	}
}
