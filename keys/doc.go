// Package keys loads signing keys from PEM files and keeps named key pairs in
// a local directory.
//
// Accepted PEM blocks:
//
//	RSA PRIVATE KEY        PKCS#1 RSA private key
//	PRIVATE KEY            PKCS#8 RSA or Ed25519 private key
//	RSA PUBLIC KEY         PKCS#1 RSA public key
//	PUBLIC KEY             PKIX RSA or Ed25519 public key
//	DILITHIUM3 PRIVATE KEY circl mode3 packed private key
//	DILITHIUM3 PUBLIC KEY  circl mode3 packed public key
//
// Dilithium3 blocks carry a "Hash-Alg" header naming the message digest
// (sha256 when absent).
package keys
