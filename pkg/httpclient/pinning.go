package httpclient

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// ErrPinMismatch is returned (wrapped) from the TLS handshake when a peer
// certificate's SPKI fingerprint is not in the configured pin set.
type ErrPinMismatch struct {
	Fingerprint string
}

func (e *ErrPinMismatch) Error() string {
	return fmt.Sprintf("httpclient: certificate pin mismatch, leaf spki sha256 %q not in pinned set", e.Fingerprint)
}

// spkiFingerprint returns the base64-encoded SHA-256 digest of a
// certificate's subject public key info, the standard pinning unit (it
// survives reissuance under the same key, unlike a whole-cert hash).
func spkiFingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// verifyPinnedCert builds a tls.Config.VerifyPeerCertificate callback that
// rejects a handshake whose leaf certificate fingerprint is not among
// pinned. Standard chain/name verification has already run by the time
// this is invoked; this only adds the pin constraint on top.
func verifyPinnedCert(pinned []string) func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	pinSet := make(map[string]struct{}, len(pinned))
	for _, p := range pinned {
		pinSet[p] = struct{}{}
	}

	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return &ErrPinMismatch{Fingerprint: ""}
		}

		leaf, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("httpclient: parsing leaf certificate for pin check: %w", err)
		}

		fp := spkiFingerprint(leaf)
		if _, ok := pinSet[fp]; !ok {
			return &ErrPinMismatch{Fingerprint: fp}
		}
		return nil
	}
}

// applyPinning mutates tlsCfg in place to enforce cfg.PinnedFingerprints,
// if any are configured. InsecureSkipVerify stays false: the custom
// callback runs in addition to, not instead of, normal verification.
func applyPinning(tlsCfg *tls.Config, cfg Config) {
	if len(cfg.PinnedFingerprints) == 0 {
		return
	}
	tlsCfg.VerifyPeerCertificate = verifyPinnedCert(cfg.PinnedFingerprints)
}
