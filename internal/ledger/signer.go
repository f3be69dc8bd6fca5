package ledger

// Digital signatures for critical events. Grounded on the source
// system's EventSigner: RSA-PSS/SHA-256 over a deterministic payload
// built from a fixed subset of critical fields. The source signs via
// Cloud KMS; no KMS client exists anywhere in the retrieved corpus, so
// keys are generated and held locally, with rotation deriving the next
// key's randomness from the current one via HKDF (the same
// golang.org/x/crypto family the teacher reaches for with bcrypt).

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const signerKeyBits = 2048

// criticalMetadataFields mirrors the source's signing payload: only
// these metadata keys are folded into the signed message, so adding an
// unrelated metadata field never invalidates past signatures.
var criticalMetadataFields = []string{"resource", "action", "ip_address", "data_size_bytes"}

// Signer signs and verifies critical ledger events.
type Signer interface {
	Sign(e *Event) error
	Verify(e *Event) bool
	Rotate() (keyID string, err error)
}

// RSASigner holds the active signing key plus every public key it has
// ever rotated from, so events signed under a retired key still verify.
type RSASigner struct {
	mu           sync.RWMutex
	currentKeyID string
	currentPriv  *rsa.PrivateKey
	publicKeys   map[string]*rsa.PublicKey
	rotationSeed []byte
}

// NewRSASigner generates the first signing key from the system CSPRNG.
func NewRSASigner() (*RSASigner, error) {
	priv, err := rsa.GenerateKey(rand.Reader, signerKeyBits)
	if err != nil {
		return nil, fmt.Errorf("ledger: generating signing key: %w", err)
	}
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("ledger: seeding rotation state: %w", err)
	}

	keyID := uuid.NewString()
	return &RSASigner{
		currentKeyID: keyID,
		currentPriv:  priv,
		publicKeys:   map[string]*rsa.PublicKey{keyID: &priv.PublicKey},
		rotationSeed: seed,
	}, nil
}

// signingPayload builds the deterministic, canonically-ordered field set
// that gets signed: identity and chain-integrity fields always, plus
// whichever of criticalMetadataFields are present.
func signingPayload(e *Event) []byte {
	fields := map[string]interface{}{
		"event_id":      e.EventID,
		"event_type":    string(e.EventType),
		"timestamp":     e.Timestamp.Format("2006-01-02T15:04:05.000000Z07:00"),
		"event_hash":    e.EventHash,
		"previous_hash": e.PreviousHash,
	}
	if e.UserID != "" {
		fields["user_id"] = e.UserID
	}
	if e.SessionID != "" {
		fields["session_id"] = e.SessionID
	}
	if e.DataHash != "" {
		fields["data_hash"] = e.DataHash
	}

	critical := map[string]string{}
	for _, k := range criticalMetadataFields {
		if v, ok := e.Metadata[k]; ok {
			critical[k] = v
		}
	}
	if len(critical) > 0 {
		fields["metadata"] = critical
	}

	return canonicalJSON(fields)
}

// Sign signs e in place, populating Signature and SigningKeyID. It
// refuses event types that don't require a signature, since signing an
// ordinary event would make signature presence meaningless as a
// criticality marker.
func (s *RSASigner) Sign(e *Event) error {
	if !RequiresSignature(e.EventType) {
		return fmt.Errorf("ledger: event type %s does not require a signature", e.EventType)
	}

	digest := sha256.Sum256(signingPayload(e))

	s.mu.RLock()
	priv, keyID := s.currentPriv, s.currentKeyID
	s.mu.RUnlock()

	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return fmt.Errorf("ledger: signing event %s: %w", e.EventID, err)
	}

	e.Signature = sig
	e.SigningKeyID = keyID
	return nil
}

// Verify checks e.Signature against the public key named by
// e.SigningKeyID, including keys retired by prior rotations.
func (s *RSASigner) Verify(e *Event) bool {
	if len(e.Signature) == 0 || e.SigningKeyID == "" {
		return false
	}

	s.mu.RLock()
	pub, ok := s.publicKeys[e.SigningKeyID]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	digest := sha256.Sum256(signingPayload(e))
	err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], e.Signature, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
	return err == nil
}

// Rotate generates a new signing key, deriving its randomness from the
// current rotation seed via HKDF and advancing the seed for the next
// rotation. Past public keys remain in publicKeys so already-signed
// events keep verifying.
func (s *RSASigner) Rotate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kdf := hkdf.New(sha256.New, s.rotationSeed, nil, []byte("neuroflux-ledger-key-rotation"))
	nextSeed := make([]byte, 32)
	if _, err := io.ReadFull(kdf, nextSeed); err != nil {
		return "", fmt.Errorf("ledger: deriving rotation seed: %w", err)
	}

	priv, err := rsa.GenerateKey(newDRBGReader(nextSeed), signerKeyBits)
	if err != nil {
		return "", fmt.Errorf("ledger: generating rotated key: %w", err)
	}

	keyID := uuid.NewString()
	s.currentKeyID = keyID
	s.currentPriv = priv
	s.publicKeys[keyID] = &priv.PublicKey
	s.rotationSeed = nextSeed
	return keyID, nil
}

// newDRBGReader returns an unbounded deterministic byte stream derived
// from seed via AES-CTR, since HKDF's own output is capped at 255 hash
// blocks and rsa.GenerateKey can consume more than that for 2048-bit
// keys.
func newDRBGReader(seed []byte) io.Reader {
	key := sha256.Sum256(seed)
	block, _ := aes.NewCipher(key[:])
	iv := make([]byte, aes.BlockSize)
	return &cipher.StreamReader{S: cipher.NewCTR(block, iv), R: zeroReader{}}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
