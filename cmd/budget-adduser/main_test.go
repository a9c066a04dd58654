package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Success(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "budget.db")
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	args := []string{"-name", "Ann", "-email", "Ann@Example.com", "-secret", "open sesame", "-backend", "sqlite", "-db", dbPath}
	require.NoError(t, run(args, new(bytes.Buffer), stdout, stderr))
	assert.Contains(t, stdout.String(), "User ann@example.com created successfully")
}

func TestRun_DuplicateUser(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "budget.db")
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	args := []string{"-name", "Ann", "-email", "ann@example.com", "-secret", "open sesame", "-backend", "sqlite", "-db", dbPath}

	require.NoError(t, run(args, new(bytes.Buffer), stdout, stderr))
	err := run(args, new(bytes.Buffer), stdout, stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRun_MissingFlags(t *testing.T) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	err := run([]string{"-secret", "open sesame"}, new(bytes.Buffer), stdout, stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required flags")
	assert.Contains(t, stdout.String(), "Usage:")
}

func TestRun_InteractiveSecret(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "budget.db")
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	stdin := bytes.NewBufferString("typed secret\n")

	args := []string{"-name", "Bo", "-email", "bo@example.com", "-backend", "sqlite", "-db", dbPath}
	require.NoError(t, run(args, stdin, stdout, stderr))
	assert.Contains(t, stdout.String(), "Secret: ")
	assert.Contains(t, stdout.String(), "created successfully")
}

func TestRun_Rejects(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "budget.db")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"blank secret", []string{"-name", "Bo", "-email", "bo@example.com", "-secret", "   ", "-backend", "sqlite", "-db", dbPath}, "secret cannot be empty"},
		{"memory backend", []string{"-name", "Bo", "-email", "bo@example.com", "-secret", "x1234", "-backend", "memory"}, "memory backend"},
		{"bad email", []string{"-name", "Bo", "-email", "not-an-email", "-secret", "x1234", "-backend", "sqlite", "-db", dbPath}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
