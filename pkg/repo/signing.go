package repo

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/gritvcs/grit/pkg/object"
)

const commitSignaturePrefix = "sshsig-v1"

// CommitSigner produces a signature string over a commit signing payload.
type CommitSigner func(payload []byte) (string, error)

// NewSSHSigner wraps an SSH signer into a CommitSigner. The produced
// signature embeds the signing public key so it can be verified without
// out-of-band key distribution:
//
//	sshsig-v1:<sig-format>:<base64 pubkey>:<base64 sig blob>
func NewSSHSigner(signer ssh.Signer) CommitSigner {
	pubB64 := base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal())
	return func(payload []byte) (string, error) {
		sig, err := signer.Sign(rand.Reader, payload)
		if err != nil {
			return "", fmt.Errorf("ssh sign: %w", err)
		}
		sigB64 := base64.StdEncoding.EncodeToString(sig.Blob)
		return fmt.Sprintf("%s:%s:%s:%s", commitSignaturePrefix, sig.Format, pubB64, sigB64), nil
	}
}

// LoadSSHSigner reads an unencrypted SSH private key file and returns a
// CommitSigner for it.
func LoadSSHSigner(keyPath string) (CommitSigner, error) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read signing key %q: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse signing key %q: %w", keyPath, err)
	}
	return NewSSHSigner(signer), nil
}

// VerifyCommitSignature checks the embedded SSH signature of a commit. It
// returns the signing public key on success, an error when the signature
// is malformed or does not verify, and (nil, nil) for unsigned commits.
func VerifyCommitSignature(commit *object.CommitObj) (ssh.PublicKey, error) {
	if commit.Signature == "" {
		return nil, nil
	}

	parts := strings.SplitN(commit.Signature, ":", 4)
	if len(parts) != 4 || parts[0] != commitSignaturePrefix {
		return nil, fmt.Errorf("verify signature: unrecognized signature format")
	}
	format := parts[1]
	pubRaw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("verify signature: decode public key: %w", err)
	}
	sigBlob, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("verify signature: decode signature: %w", err)
	}

	pub, err := ssh.ParsePublicKey(pubRaw)
	if err != nil {
		return nil, fmt.Errorf("verify signature: parse public key: %w", err)
	}

	payload := object.CommitSigningPayload(commit)
	sig := &ssh.Signature{Format: format, Blob: sigBlob}
	if err := pub.Verify(payload, sig); err != nil {
		return nil, fmt.Errorf("verify signature: %w", err)
	}
	return pub, nil
}
