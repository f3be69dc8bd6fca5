package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func criticalEvent() *Event {
	e := NewEvent(EventSessionCreated)
	e.EventID = "evt-critical"
	e.Timestamp = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.SessionID = "sess-1"
	e.UserID = "user-1"
	e.PreviousHash = genesisHash
	e.EventHash = computeEventHash(e, genesisHash)
	return e
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	signer, err := NewRSASigner()
	require.NoError(t, err)

	e := criticalEvent()
	require.NoError(t, signer.Sign(e))
	assert.NotEmpty(t, e.Signature)
	assert.NotEmpty(t, e.SigningKeyID)
	assert.True(t, signer.Verify(e))
}

func TestSignRejectsNonCriticalEventType(t *testing.T) {
	signer, err := NewRSASigner()
	require.NoError(t, err)

	e := NewEvent(EventDataIngested)
	assert.Error(t, signer.Sign(e))
}

func TestVerifyFailsOnTamperedPayload(t *testing.T) {
	signer, err := NewRSASigner()
	require.NoError(t, err)

	e := criticalEvent()
	require.NoError(t, signer.Sign(e))

	e.UserID = "someone-else"
	assert.False(t, signer.Verify(e))
}

func TestVerifyFailsOnUnknownKeyID(t *testing.T) {
	signer, err := NewRSASigner()
	require.NoError(t, err)

	e := criticalEvent()
	require.NoError(t, signer.Sign(e))
	e.SigningKeyID = "never-issued"

	assert.False(t, signer.Verify(e))
}

func TestRotateKeepsOldKeyVerifiable(t *testing.T) {
	signer, err := NewRSASigner()
	require.NoError(t, err)

	e := criticalEvent()
	require.NoError(t, signer.Sign(e))
	oldKeyID := e.SigningKeyID

	newKeyID, err := signer.Rotate()
	require.NoError(t, err)
	assert.NotEqual(t, oldKeyID, newKeyID)

	// The event signed under the retired key still verifies.
	assert.True(t, signer.Verify(e))

	// A fresh signature now carries the new key ID.
	e2 := criticalEvent()
	e2.EventID = "evt-after-rotation"
	require.NoError(t, signer.Sign(e2))
	assert.Equal(t, newKeyID, e2.SigningKeyID)
	assert.True(t, signer.Verify(e2))
}
