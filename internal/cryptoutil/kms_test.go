package cryptoutil

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
)

func genECKey(t *testing.T, curve elliptic.Curve) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		t.Fatalf("generate ECDSA key: %v", err)
	}
	return key
}

func genRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	return key
}

// cachedVerifier skips the KMS fetch by pre-seeding the key cache.
func cachedVerifier(pub crypto.PublicKey) *KMSVerifier {
	v := &KMSVerifier{keyARN: "arn:aws:kms:us-east-1:000000000000:key/bundle-signing"}
	v.pubKey = pub
	return v
}

func TestVerifySignature_ECDSA(t *testing.T) {
	bundle := []byte("sha256 manifest of content bundle")

	t.Run("P-256 round trip", func(t *testing.T) {
		key := genECKey(t, elliptic.P256())
		digest := sha256.Sum256(bundle)
		sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
		if err != nil {
			t.Fatalf("sign: %v", err)
		}

		v := cachedVerifier(&key.PublicKey)
		if err := v.VerifySignature(context.Background(), bundle, sig); err != nil {
			t.Fatalf("verify: %v", err)
		}
		if err := v.VerifySignature(context.Background(), []byte("tampered"), sig); err == nil {
			t.Fatal("tampered message verified")
		}
	})

	t.Run("P-384 uses SHA-384", func(t *testing.T) {
		key := genECKey(t, elliptic.P384())
		digest := sha512.Sum384(bundle)
		sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
		if err != nil {
			t.Fatalf("sign: %v", err)
		}

		if err := cachedVerifier(&key.PublicKey).VerifySignature(context.Background(), bundle, sig); err != nil {
			t.Fatalf("verify: %v", err)
		}
	})

	t.Run("unsupported curve rejected", func(t *testing.T) {
		key := genECKey(t, elliptic.P521())
		err := cachedVerifier(&key.PublicKey).VerifySignature(context.Background(), bundle, []byte("sig"))
		if err == nil || !strings.Contains(err.Error(), "unsupported ECDSA curve") {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestVerifySignature_RSA(t *testing.T) {
	bundle := []byte("sha256 manifest of content bundle")
	key := genRSAKey(t)
	digest := sha256.Sum256(bundle)

	pssSig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], nil)
	if err != nil {
		t.Fatalf("sign PSS: %v", err)
	}
	pkcsSig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign PKCS1v15: %v", err)
	}

	v := cachedVerifier(&key.PublicKey)

	if err := v.VerifySignature(context.Background(), bundle, pssSig); err != nil {
		t.Fatalf("PSS verify: %v", err)
	}

	// PKCS1v15 is only honored behind the compatibility flag
	if err := v.VerifySignature(context.Background(), bundle, pkcsSig); err == nil {
		t.Fatal("PKCS1v15 accepted without fallback enabled")
	}
	v.AllowPKCS1v15 = true
	if err := v.VerifySignature(context.Background(), bundle, pkcsSig); err != nil {
		t.Fatalf("PKCS1v15 with fallback: %v", err)
	}
}

func TestVerifySignature_UnsupportedKeyType(t *testing.T) {
	v := cachedVerifier("not a key")
	err := v.VerifySignature(context.Background(), []byte("m"), []byte("s"))
	if err == nil || !strings.Contains(err.Error(), "unsupported public key type") {
		t.Fatalf("err = %v", err)
	}
}

// fakeKeyFetcher serves a canned GetPublicKey response and counts calls.
type fakeKeyFetcher struct {
	der   []byte
	usage kmstypes.KeyUsageType
	calls int
}

func (f *fakeKeyFetcher) GetPublicKey(_ context.Context, _ *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	f.calls++
	return &kms.GetPublicKeyOutput{PublicKey: f.der, KeyUsage: f.usage}, nil
}

func TestPublicKey_FetchesOnceAndCaches(t *testing.T) {
	key := genECKey(t, elliptic.P256())
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	fetcher := &fakeKeyFetcher{der: der, usage: kmstypes.KeyUsageTypeSignVerify}
	v := &KMSVerifier{client: fetcher, keyARN: "key-arn"}

	for i := 0; i < 3; i++ {
		if _, err := v.PublicKey(context.Background()); err != nil {
			t.Fatalf("PublicKey call %d: %v", i+1, err)
		}
	}
	if fetcher.calls != 1 {
		t.Fatalf("KMS called %d times, want 1", fetcher.calls)
	}
}

func TestPublicKey_RejectsEncryptionKey(t *testing.T) {
	key := genECKey(t, elliptic.P256())
	der, _ := x509.MarshalPKIXPublicKey(&key.PublicKey)
	fetcher := &fakeKeyFetcher{der: der, usage: kmstypes.KeyUsageTypeEncryptDecrypt}
	v := &KMSVerifier{client: fetcher, keyARN: "key-arn"}

	_, err := v.PublicKey(context.Background())
	if err == nil || !strings.Contains(err.Error(), "SIGN_VERIFY") {
		t.Fatalf("err = %v", err)
	}
}

func TestPublicKey_NilClient(t *testing.T) {
	v := &KMSVerifier{keyARN: "key-arn"}
	if _, err := v.PublicKey(context.Background()); err == nil {
		t.Fatal("expected error with no client")
	}
}
