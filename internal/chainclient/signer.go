package chainclient

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// WalletSigner implements collab.Signer over an ECDSA private key, the
// standard secp256k1 signing primitive used for EIP-712-style message
// signing.
type WalletSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewWalletSigner parses a hex-encoded private key (with or without a 0x
// prefix) into a WalletSigner.
func NewWalletSigner(privateKeyHex string) (*WalletSigner, error) {
	keyHex := privateKeyHex
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}

	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &WalletSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Sign produces a secp256k1 signature over the 32-byte hash of payload,
// adjusting the recovery byte to 27/28 as Ethereum tooling expects.
func (s *WalletSigner) Sign(payload []byte) ([]byte, error) {
	hash := crypto.Keccak256(payload)
	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// Address returns the signer's account address.
func (s *WalletSigner) Address() string {
	return s.address.Hex()
}
