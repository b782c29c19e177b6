package verify

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"nullbytes.dev/wipecert/canon"
	"nullbytes.dev/wipecert/certerr"
	"nullbytes.dev/wipecert/docmeta"
	"nullbytes.dev/wipecert/hosting"
	"nullbytes.dev/wipecert/issue"
	"nullbytes.dev/wipecert/payload"
	"nullbytes.dev/wipecert/render"
	"nullbytes.dev/wipecert/signing"
	"nullbytes.dev/wipecert/storage/memcas"
)

const base = "https://verify.example"

func signer(t testing.TB, b byte) *signing.Ed25519Signer {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = b
	s, err := signing.NewEd25519SignerFromSeed(seed)
	require.NoError(t, err)
	return s
}

func issueRecord(t testing.TB, p *issue.Pipeline, js string) *issue.Certificate {
	t.Helper()
	r, err := canon.Parse([]byte(js))
	require.NoError(t, err)
	cert, err := p.Issue(context.Background(), r)
	require.NoError(t, err)
	return cert
}

type jsonDoc struct{}

func (jsonDoc) Render(render.Sheet) ([]byte, error) { return []byte(`{}`), nil }

func TestVerifyDocument_Valid(t *testing.T) {
	s := signer(t, 1)
	cert := issueRecord(t, &issue.Pipeline{
		Signer: s, Document: jsonDoc{}, Meta: docmeta.Memory{}, VerifierBase: base,
	}, `{"a":1,"b":"x"}`)

	p := &Pipeline{Verifier: s.Verifier(), Meta: docmeta.Memory{}}
	res, err := p.VerifyDocument(cert.Document)
	require.NoError(t, err)
	require.Equal(t, Valid, res.Outcome)
	require.True(t, res.Trusted())
	require.Equal(t, FromMetadata, res.Source)
	require.True(t, canon.Equal(cert.Record, res.Record))
}

func TestVerifyDocument_MissingMetadataIsNoPayload(t *testing.T) {
	p := &Pipeline{Verifier: signer(t, 1).Verifier(), Meta: docmeta.Memory{}}

	for name, doc := range map[string][]byte{
		"empty":       nil,
		"other props": []byte(`{"Title":"x"}`),
		"unreadable":  []byte("%PDF-garbage"),
		"bad payload": []byte(`{"CertPayload":"not json"}`),
		"wrong shape": []byte(`{"CertPayload":"{\"cert\":[],\"sig\":\"A\"}"}`),
	} {
		res, err := p.VerifyDocument(doc)
		require.NoError(t, err, name)
		require.Equal(t, NoPayload, res.Outcome, name)
		require.False(t, res.Trusted(), name)
		require.NotEmpty(t, res.Detail, name)
	}
}

func TestVerifyDocument_TamperedRecordIsInvalid(t *testing.T) {
	s := signer(t, 1)
	cert := issueRecord(t, &issue.Pipeline{Signer: s, VerifierBase: base}, `{"a":1,"b":"x"}`)

	tampered, err := payload.Marshal(payload.Embed(canon.Record{"a": 1, "b": "y"}, cert.Signature))
	require.NoError(t, err)
	doc, err := docmeta.Memory{}.Write(nil, docmeta.DefaultKey, string(tampered))
	require.NoError(t, err)

	res, err := (&Pipeline{Verifier: s.Verifier(), Meta: docmeta.Memory{}}).VerifyDocument(doc)
	require.NoError(t, err)
	require.Equal(t, InvalidSignature, res.Outcome)
	require.Equal(t, "y", res.Record["b"])
}

func TestVerifyFragment(t *testing.T) {
	s := signer(t, 1)
	cert := issueRecord(t, &issue.Pipeline{Signer: s, VerifierBase: base}, `{"a":1,"b":"x"}`)

	res, err := (&Pipeline{Verifier: s.Verifier()}).VerifyFragment(cert.Fragment)
	require.NoError(t, err)
	require.Equal(t, Valid, res.Outcome)

	res, err = (&Pipeline{Verifier: signer(t, 2).Verifier()}).VerifyFragment(cert.Fragment)
	require.NoError(t, err)
	require.Equal(t, InvalidSignature, res.Outcome)

	_, err = (&Pipeline{Verifier: s.Verifier()}).VerifyFragment("%%%")
	require.True(t, certerr.IsKind(err, certerr.KindFragmentDecode))

	_, err = (&Pipeline{}).VerifyFragment(cert.Fragment)
	require.True(t, certerr.IsKind(err, certerr.KindKeyLoad))
}

func TestVerifyFragment_MutationNeverValid(t *testing.T) {
	s := signer(t, 1)
	cert := issueRecord(t, &issue.Pipeline{Signer: s, VerifierBase: base}, `{"Serial":"SN-1","Passes":3,"Tool":"wipe 1.2"}`)
	p := &Pipeline{Verifier: s.Verifier()}
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	rapid.Check(t, func(rt *rapid.T) {
		frag := []byte(cert.Fragment)
		i := rapid.IntRange(0, len(frag)-1).Draw(rt, "pos")
		c := alphabet[rapid.IntRange(0, len(alphabet)-1).Draw(rt, "char")]
		if frag[i] == c {
			rt.Skip("no-op mutation")
		}
		frag[i] = c

		res, err := p.VerifyFragment(string(frag))
		if err != nil {
			return
		}
		if res.Outcome == Valid && !canon.Equal(res.Record, cert.Record) {
			rt.Fatalf("mutated fragment verified with a different record")
		}
	})
}

func TestVerifyLocator_Fragment(t *testing.T) {
	s := signer(t, 1)
	cert := issueRecord(t, &issue.Pipeline{Signer: s, VerifierBase: base}, `{"a":1}`)
	p := &Pipeline{Verifier: s.Verifier()}

	for _, loc := range []string{cert.Locator, " " + cert.Locator + "\n", cert.Fragment} {
		res, err := p.VerifyLocator(context.Background(), loc)
		require.NoError(t, err)
		require.Equal(t, Valid, res.Outcome)
		require.Equal(t, FromFragment, res.Source)
	}

	_, err := p.VerifyLocator(context.Background(), base+"/#")
	require.True(t, certerr.IsKind(err, certerr.KindFragmentDecode))
	_, err = p.VerifyLocator(context.Background(), base+"/#not-a-fragment")
	require.True(t, certerr.IsKind(err, certerr.KindFragmentDecode))
}

func TestVerifyLocator_HostedCID(t *testing.T) {
	s := signer(t, 1)
	store := memcas.New()
	cert := issueRecord(t, &issue.Pipeline{
		Signer: s, Uploader: &hosting.CASUploader{CAS: store}, VerifierBase: base,
	}, `{"a":1,"b":"x"}`)
	require.True(t, cert.Hosted)

	p := &Pipeline{Verifier: s.Verifier(), CAS: &hosting.CASFetcher{CAS: store}}
	res, err := p.VerifyLocator(context.Background(), cert.Locator)
	require.NoError(t, err)
	require.Equal(t, Valid, res.Outcome)
	require.Equal(t, FromHosted, res.Source)
	require.Equal(t, cert.Fragment, res.Reference)

	_, err = (&Pipeline{Verifier: s.Verifier()}).VerifyLocator(context.Background(), cert.Locator)
	require.Error(t, err, "CID reference without a payload store")

	_, err = (&Pipeline{Verifier: s.Verifier(), CAS: &hosting.CASFetcher{CAS: memcas.New()}}).
		VerifyLocator(context.Background(), cert.Locator)
	require.True(t, certerr.IsKind(err, certerr.KindFragmentDecode))
}

// lyingFetcher returns the same bytes whatever is asked for.
type lyingFetcher struct{ data []byte }

func (f lyingFetcher) Fetch(context.Context, string) ([]byte, error) { return f.data, nil }

func TestVerifyLocator_HostedCIDMismatch(t *testing.T) {
	s := signer(t, 1)
	store := memcas.New()
	cert := issueRecord(t, &issue.Pipeline{
		Signer: s, Uploader: &hosting.CASUploader{CAS: store}, VerifierBase: base,
	}, `{"a":1}`)
	other := issueRecord(t, &issue.Pipeline{Signer: s, VerifierBase: base}, `{"a":2}`)

	p := &Pipeline{Verifier: s.Verifier(), CAS: lyingFetcher{data: other.Payload}}
	_, err := p.VerifyLocator(context.Background(), cert.Locator)
	require.Equal(t, "CERT-HOST-012", certerr.RuleID(err))
}

func TestVerifyLocator_HostedHTTP(t *testing.T) {
	s := signer(t, 1)
	cert := issueRecord(t, &issue.Pipeline{Signer: s, VerifierBase: base}, `{"a":1,"b":"x"}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/certs/cert_1.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(cert.Payload)
	}))
	defer srv.Close()

	p := &Pipeline{Verifier: s.Verifier(), HTTP: &hosting.HTTPFetcher{Client: srv.Client()}}
	res, err := p.VerifyLocator(context.Background(), base+"/#"+srv.URL+"/certs/cert_1.json")
	require.NoError(t, err)
	require.Equal(t, Valid, res.Outcome)
	require.Equal(t, FromHosted, res.Source)

	_, err = p.VerifyLocator(context.Background(), base+"/#"+srv.URL+"/certs/missing.json")
	require.True(t, certerr.IsKind(err, certerr.KindFragmentDecode))
}
