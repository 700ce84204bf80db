// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bassosimone/slogstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDiscardLogger returns a logger that drops every record.
func newDiscardLogger() *slog.Logger {
	return slog.New(&slogstub.FuncHandler{
		EnabledFunc: func(context.Context, slog.Level) bool { return false },
		HandleFunc:  func(context.Context, slog.Record) error { return nil },
	})
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantAddress string
		wantPort    string
		wantBacklog int
		wantErr     bool
	}{
		{
			name:        "defaults",
			args:        nil,
			wantAddress: "localhost",
			wantPort:    "9901",
			wantBacklog: 128,
		},

		{
			name:        "address only",
			args:        []string{"0.0.0.0"},
			wantAddress: "0.0.0.0",
			wantPort:    "9901",
			wantBacklog: 128,
		},

		{
			name:        "address, port, and flags",
			args:        []string{"-backlog", "8", "::1", "8080"},
			wantAddress: "::1",
			wantPort:    "8080",
			wantBacklog: 8,
		},

		{
			name:    "too many arguments",
			args:    []string{"a", "b", "c"},
			wantErr: true,
		},

		{
			name:    "unknown flag",
			args:    []string{"-nonexistent"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseOptions(tt.args, io.Discard)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddress, opts.address)
			assert.Equal(t, tt.wantPort, opts.port)
			assert.Equal(t, tt.wantBacklog, opts.backlog)
			assert.Equal(t, 15*time.Second, opts.timeout)
		})
	}
}

func TestStatusDocument(t *testing.T) {
	started := time.Unix(1328734787, 0)
	var sb strings.Builder
	count, err := newStatusDocument("example.com", started, newDiscardLogger()).Format(&sb, nil)
	require.NoError(t, err)
	assert.Equal(t, sb.Len(), count)

	var status struct {
		Hostname  string         `json:"hostname"`
		Date      string         `json:"date"`
		JobID     int            `json:"jobid"`
		StartTime int64          `json:"start_time"`
		EndTime   int64          `json:"end_time"`
		Uptime    float64        `json:"uptime"`
		Self      map[string]any `json:"self"`
	}
	require.NoError(t, json.Unmarshal([]byte(sb.String()), &status))
	assert.Equal(t, "example.com", status.Hostname)
	assert.NotEmpty(t, status.Date)
	assert.Equal(t, jobID, status.JobID)
	assert.Equal(t, int64(1328734787), status.StartTime)
	assert.Equal(t, int64(0), status.EndTime)
	for _, key := range []string{
		"name", "exe", "cwd", "pid", "uid", "utime", "stime",
		"maxrss", "nsignals", "nvcsw", "nivcsw",
	} {
		assert.Contains(t, status.Self, key)
	}
}

// The daemon serves its resources until the context is cancelled.
func TestRun(t *testing.T) {
	opts, err := parseOptions([]string{"127.0.0.1", "0"}, io.Discard)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	addrch := make(chan net.Addr, 1)
	errch := make(chan error, 1)
	go func() {
		errch <- run(ctx, opts, newDiscardLogger(), func(addr net.Addr) {
			addrch <- addr
		})
	}()

	var addr net.Addr
	select {
	case addr = <-addrch:
	case err := <-errch:
		t.Fatal(err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	for _, path := range []string{"/status", "/self"} {
		resp, err := client.Get("http://" + addr.String() + path)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, json.Valid(body), path)
	}

	cancel()
	assert.NoError(t, <-errch)
}

func TestRunBindError(t *testing.T) {
	opts, err := parseOptions([]string{"127.0.0.1", "not-a-port"}, io.Discard)
	require.NoError(t, err)
	err = run(context.Background(), opts, newDiscardLogger(), nil)
	assert.Error(t, err)
}

func TestLookupPath(t *testing.T) {
	var records []slog.Record
	logger := slog.New(&slogstub.FuncHandler{
		EnabledFunc: func(context.Context, slog.Level) bool { return true },
		HandleFunc: func(_ context.Context, r slog.Record) error {
			records = append(records, r)
			return nil
		},
	})

	path := lookupPath(logger, "cwd", func() (string, error) { return "/srv", nil })
	assert.Equal(t, "/srv", path)
	assert.Empty(t, records)

	path = lookupPath(logger, "exe", func() (string, error) {
		return "/partial", errors.New("readlink /proc/self/exe: permission denied")
	})
	assert.Equal(t, "", path)
	require.Len(t, records, 1)
	assert.Equal(t, "lookupPath", records[0].Message)
	assert.Equal(t, slog.LevelWarn, records[0].Level)
}
