package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("download-secret", time.Hour)

	token, expiresAt, err := signer.Generate("job-42", "run-7/findings.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	jobID, relPath, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-42", jobID)
	assert.Equal(t, "run-7/findings.pdf", relPath)
	assert.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("download-secret", time.Hour)

	token, _, err := signer.Generate("job-42", "run-7/findings.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 4)
	parts[0] = "job-99"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	assert.Error(t, err)

	other := NewSignedURLSigner("different-secret", time.Hour)
	_, _, _, err = other.Parse(token, false)
	assert.Error(t, err)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("download-secret", 10*time.Millisecond)

	token, _, err := signer.Generate("job-42", "run-7/findings.csv")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, _, _, err = signer.Parse(token, false)
	assert.Error(t, err)

	// cleanup routines still need the path out of expired tokens
	jobID, relPath, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "job-42", jobID)
	assert.Equal(t, "run-7/findings.csv", relPath)
}
