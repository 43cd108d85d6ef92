package icon

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// Wallet signs ICON transactions with a secp256k1 key. Addresses are
// "hx" plus the last twenty bytes of the SHA3-256 of the public key.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func NewWallet(privateKeyHex string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	pub := crypto.FromECDSAPub(&key.PublicKey)
	digest := sha3.Sum256(pub[1:])
	return &Wallet{
		key:     key,
		address: "hx" + hex.EncodeToString(digest[12:]),
	}, nil
}

func (w *Wallet) Address() string {
	return w.address
}

// Sign serializes the transaction parameters the way the node does,
// hashes with SHA3-256 and returns the base64 recoverable signature.
func (w *Wallet) Sign(params map[string]interface{}) (string, error) {
	serialized := "icx_sendTransaction." + serializeValue(params)
	digest := sha3.Sum256([]byte(serialized))
	signature, err := crypto.Sign(digest[:], w.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

// serializeValue renders a parameter tree in the canonical signing
// form: dict entries sorted by key as k.v pairs inside braces, lists
// inside brackets, nil as the escaped null marker.
func serializeValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "\\0"
	case string:
		return escapeString(v)
	case HexInt:
		return escapeString(string(v))
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, escapeString(key)+"."+serializeValue(v[key]))
		}
		return "{" + strings.Join(parts, ".") + "}"
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, serializeValue(item))
		}
		return "[" + strings.Join(parts, ".") + "]"
	default:
		return escapeString(fmt.Sprintf("%v", v))
	}
}

func escapeString(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		".", "\\.",
		"{", "\\{",
		"}", "\\}",
		"[", "\\[",
		"]", "\\]",
	)
	return replacer.Replace(s)
}
