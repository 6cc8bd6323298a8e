package auditlog

import (
	"bufio"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
)

// PublicKeySuffix is appended to a log path to name its public key file.
const PublicKeySuffix = ".pub"

// Verify checks every entry read from r: the hash, the link to the previous
// entry, the signature and the sequence number. It returns the number of
// entries verified.
func Verify(r io.Reader, pubKey ed25519.PublicKey) (int, error) {
	if len(pubKey) != ed25519.PublicKeySize {
		return 0, fmt.Errorf("invalid ed25519 public key size: got %d", len(pubKey))
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	prevHash := ""
	for scanner.Scan() {
		lineNum++
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return lineNum - 1, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		if entry.Record.Seq != uint64(lineNum) {
			return lineNum - 1, fmt.Errorf("line %d: sequence %d out of order", lineNum, entry.Record.Seq)
		}
		if entry.PrevHash != prevHash {
			return lineNum - 1, fmt.Errorf("line %d: prevHash mismatch", lineNum)
		}

		data, err := json.Marshal(hashInput{Record: entry.Record, PrevHash: entry.PrevHash})
		if err != nil {
			return lineNum - 1, fmt.Errorf("line %d: failed to marshal hash input: %w", lineNum, err)
		}
		if entry.Hash != fmt.Sprintf("%x", sha256.Sum256(data)) {
			return lineNum - 1, fmt.Errorf("line %d: hash mismatch", lineNum)
		}

		data, err = json.Marshal(signInput{Record: entry.Record, PrevHash: entry.PrevHash, Hash: entry.Hash})
		if err != nil {
			return lineNum - 1, fmt.Errorf("line %d: failed to marshal signature input: %w", lineNum, err)
		}
		sig, err := base64.StdEncoding.DecodeString(entry.Signature)
		if err != nil {
			return lineNum - 1, fmt.Errorf("line %d: invalid base64 signature: %w", lineNum, err)
		}
		if !ed25519.Verify(pubKey, data, sig) {
			return lineNum - 1, fmt.Errorf("line %d: signature verification failed", lineNum)
		}
		prevHash = entry.Hash
	}
	if err := scanner.Err(); err != nil {
		return lineNum, fmt.Errorf("failed to read stream: %w", err)
	}
	return lineNum, nil
}

// VerifyFile verifies the log at path against the key stored next to it.
func VerifyFile(path string) (int, error) {
	pubKey, err := ReadPublicKey(path + PublicKeySuffix)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Verify(f, pubKey)
}

// WritePublicKey stores pubKey base64 encoded at path.
func WritePublicKey(path string, pubKey ed25519.PublicKey) error {
	return os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(pubKey)+"\n"), 0644)
}

func ReadPublicKey(path string) (ed25519.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, fmt.Errorf("invalid public key in %s: %w", path, err)
	}
	return ed25519.PublicKey(key), nil
}
