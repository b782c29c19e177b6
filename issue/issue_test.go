package issue

import (
	"context"
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nullbytes.dev/wipecert/canon"
	"nullbytes.dev/wipecert/certerr"
	"nullbytes.dev/wipecert/cidutil"
	"nullbytes.dev/wipecert/docmeta"
	"nullbytes.dev/wipecert/hosting"
	"nullbytes.dev/wipecert/payload"
	"nullbytes.dev/wipecert/render"
	"nullbytes.dev/wipecert/signing"
	"nullbytes.dev/wipecert/storage/memcas"
)

const verifierBase = "https://verify.example"

func testSigner(t *testing.T) *signing.Ed25519Signer {
	t.Helper()
	s, err := signing.NewEd25519SignerFromSeed(make([]byte, ed25519.SeedSize))
	require.NoError(t, err)
	return s
}

func record(t *testing.T, js string) canon.Record {
	t.Helper()
	r, err := canon.Parse([]byte(js))
	require.NoError(t, err)
	return r
}

type failingUploader struct {
	probeErr error
	uploads  int
}

func (u *failingUploader) Probe(context.Context) error { return u.probeErr }

func (u *failingUploader) Upload(context.Context, []byte) hosting.Result {
	u.uploads++
	return hosting.Unavailable(errors.New("503 from upstream"))
}

type blockingUploader struct{}

func (blockingUploader) Probe(context.Context) error { return nil }

func (blockingUploader) Upload(ctx context.Context, _ []byte) hosting.Result {
	<-ctx.Done()
	return hosting.Unavailable(ctx.Err())
}

// stuckUploader ignores its context and blocks until released.
type stuckUploader struct {
	release    chan struct{}
	probeStuck bool
}

func (u stuckUploader) Probe(context.Context) error {
	if u.probeStuck {
		<-u.release
	}
	return nil
}

func (u stuckUploader) Upload(context.Context, []byte) hosting.Result {
	<-u.release
	return hosting.Hosted("late")
}

// slowProbe waits for its deadline before reporting.
type slowProbe struct{ uploads *int }

func (slowProbe) Probe(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (u slowProbe) Upload(context.Context, []byte) hosting.Result {
	*u.uploads++
	return hosting.Hosted("never")
}

// jsonDoc renders an empty JSON object so docmeta.Memory can carry the payload.
type jsonDoc struct{ sheets []render.Sheet }

func (d *jsonDoc) Render(s render.Sheet) ([]byte, error) {
	d.sheets = append(d.sheets, s)
	return []byte(`{}`), nil
}

type stubQR struct{ content string }

func (q *stubQR) Render(content string, px int) ([]byte, error) {
	q.content = content
	return []byte("png"), nil
}

func TestIssue_SimpleRecordScenario(t *testing.T) {
	s := testSigner(t)
	p := &Pipeline{Signer: s, VerifierBase: verifierBase}

	cert, err := p.Issue(context.Background(), record(t, `{"b":"x","a":1}`))
	require.NoError(t, err)
	require.Equal(t, `{"a":1,"b":"x"}`, string(cert.Canonical))
	require.False(t, cert.Hosted)
	require.Equal(t, verifierBase+"/#"+cert.Fragment, cert.Locator)
	require.True(t, signing.Verify(s.Verifier(), cert.Canonical, cert.Signature))

	decoded, err := payload.DecodeFragment(cert.Fragment)
	require.NoError(t, err)
	require.Equal(t, cert.Signature, decoded.Signature)
	require.True(t, canon.Equal(cert.Record, decoded.Record))
}

func TestIssue_FailingUploaderFallsBackDeterministically(t *testing.T) {
	s := testSigner(t)
	r := record(t, `{"Serial":"SN-1","Passes":3}`)

	offline, err := (&Pipeline{Signer: s, VerifierBase: verifierBase}).Issue(context.Background(), r)
	require.NoError(t, err)

	for _, up := range []*failingUploader{
		{probeErr: errors.New("dial tcp: connection refused")},
		{},
	} {
		cert, err := (&Pipeline{Signer: s, Uploader: up, VerifierBase: verifierBase}).Issue(context.Background(), r)
		require.NoError(t, err)
		require.False(t, cert.Hosted)
		require.Equal(t, offline.Locator, cert.Locator)
		if up.probeErr != nil {
			require.Zero(t, up.uploads, "upload must not run after a failed probe")
		}
	}
}

func TestIssue_DisabledHosting(t *testing.T) {
	cert, err := (&Pipeline{Signer: testSigner(t), Uploader: hosting.Disabled{}, VerifierBase: verifierBase}).
		Issue(context.Background(), record(t, `{"a":1}`))
	require.NoError(t, err)
	require.False(t, cert.Hosted)
}

func TestIssue_UploadTimeoutFallsBack(t *testing.T) {
	p := &Pipeline{
		Signer:        testSigner(t),
		Uploader:      blockingUploader{},
		VerifierBase:  verifierBase,
		UploadTimeout: 20 * time.Millisecond,
	}
	start := time.Now()
	cert, err := p.Issue(context.Background(), record(t, `{"a":1}`))
	require.NoError(t, err)
	require.False(t, cert.Hosted)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestIssue_HostedInCAS(t *testing.T) {
	store := memcas.New()
	p := &Pipeline{
		Signer:       testSigner(t),
		Uploader:     &hosting.CASUploader{CAS: store},
		VerifierBase: verifierBase,
	}
	cert, err := p.Issue(context.Background(), record(t, `{"a":1,"b":"x"}`))
	require.NoError(t, err)
	require.True(t, cert.Hosted)
	require.Equal(t, cidutil.String(cert.Payload), cert.Fragment)
	require.Equal(t, verifierBase+"/#"+cert.Fragment, cert.Locator)

	id, err := cidutil.Parse(cert.Fragment)
	require.NoError(t, err)
	stored, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, cert.Payload, stored)
}

func TestIssue_RendersAndEmbeds(t *testing.T) {
	doc := &jsonDoc{}
	qr := &stubQR{}
	p := &Pipeline{
		Signer:       testSigner(t),
		QR:           qr,
		Document:     doc,
		Meta:         docmeta.Memory{},
		VerifierBase: verifierBase,
		Subtitle:     DefaultSubtitle,
	}
	cert, err := p.Issue(context.Background(), record(t, `{"a":1}`))
	require.NoError(t, err)
	require.Equal(t, cert.Locator, qr.content)
	require.Len(t, doc.sheets, 1)
	require.Equal(t, DefaultSubtitle, doc.sheets[0].Subtitle)
	require.Equal(t, []byte("png"), doc.sheets[0].QRPNG)

	got, ok, err := docmeta.Memory{}.Read(cert.Document, docmeta.DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, string(cert.Payload), got)
}

func TestIssue_AssignID(t *testing.T) {
	r := record(t, `{"a":1}`)
	p := &Pipeline{
		Signer:       testSigner(t),
		VerifierBase: verifierBase,
		AssignID:     true,
		NewID:        func() string { return "00000000-0000-4000-8000-000000000001" },
	}
	cert, err := p.Issue(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, `{"a":1,"uuid":"00000000-0000-4000-8000-000000000001"}`, string(cert.Canonical))
	_, mutated := r[IDField]
	require.False(t, mutated, "input record must not be modified")

	kept, err := p.Issue(context.Background(), record(t, `{"uuid":"given"}`))
	require.NoError(t, err)
	require.Equal(t, `{"uuid":"given"}`, string(kept.Canonical))
}

func TestIssue_Failures(t *testing.T) {
	ctx := context.Background()

	_, err := (&Pipeline{}).Issue(ctx, canon.Record{"a": 1})
	require.True(t, certerr.IsKind(err, certerr.KindKeyLoad))

	p := &Pipeline{Signer: testSigner(t), VerifierBase: verifierBase}
	_, err = p.Issue(ctx, nil)
	require.True(t, certerr.IsKind(err, certerr.KindMalformedRecord))

	_, err = p.Issue(ctx, canon.Record{"bad": func() {}})
	require.True(t, certerr.IsKind(err, certerr.KindMalformedRecord))

	_, err = (&Pipeline{Signer: testSigner(t), Document: &jsonDoc{}}).Issue(ctx, canon.Record{"a": 1})
	require.Error(t, err)
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	p := &Pipeline{
		Signer:       testSigner(t),
		QR:           &stubQR{},
		Document:     &jsonDoc{},
		Meta:         docmeta.Memory{},
		VerifierBase: verifierBase,
	}
	cert, err := p.Issue(context.Background(), record(t, `{"Name":"<Zoë & co>","Passes":3}`))
	require.NoError(t, err)

	written, err := WriteArtifacts(dir, cert, DefaultArtifactNames())
	require.NoError(t, err)
	require.Len(t, written, 5)

	js, err := os.ReadFile(filepath.Join(dir, "certificate.json"))
	require.NoError(t, err)
	require.Equal(t, "{\n  \"Name\": \"<Zoë & co>\",\n  \"Passes\": 3\n}\n", string(js))

	sig, err := os.ReadFile(filepath.Join(dir, "certificate.sig.b64"))
	require.NoError(t, err)
	require.Equal(t, cert.Signature, string(sig))

	loc, err := os.ReadFile(filepath.Join(dir, "certificate_qr_url.txt"))
	require.NoError(t, err)
	require.Equal(t, cert.Locator, string(loc))

	names := DefaultArtifactNames()
	names.Document, names.QR = "", ""
	written, err = WriteArtifacts(t.TempDir(), cert, names)
	require.NoError(t, err)
	require.Len(t, written, 3)
}

func TestIssue_ProbeTimeoutFallsBack(t *testing.T) {
	var uploads int
	p := &Pipeline{
		Signer:       testSigner(t),
		Uploader:     slowProbe{uploads: &uploads},
		VerifierBase: verifierBase,
		ProbeTimeout: 20 * time.Millisecond,
	}
	start := time.Now()
	cert, err := p.Issue(context.Background(), record(t, `{"a":1}`))
	require.NoError(t, err)
	require.False(t, cert.Hosted)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Zero(t, uploads)

	decoded, err := payload.DecodeFragment(cert.Fragment)
	require.NoError(t, err)
	require.Equal(t, cert.Signature, decoded.Signature)
}

func TestIssue_UploaderIgnoringContextIsBounded(t *testing.T) {
	for _, probeStuck := range []bool{true, false} {
		release := make(chan struct{})
		p := &Pipeline{
			Signer:        testSigner(t),
			Uploader:      stuckUploader{release: release, probeStuck: probeStuck},
			VerifierBase:  verifierBase,
			ProbeTimeout:  20 * time.Millisecond,
			UploadTimeout: 20 * time.Millisecond,
		}
		start := time.Now()
		cert, err := p.Issue(context.Background(), record(t, `{"a":1}`))
		close(release)
		require.NoError(t, err)
		require.False(t, cert.Hosted, "probeStuck=%v", probeStuck)
		require.Less(t, time.Since(start), 2*time.Second)
	}
}
