package casconfig

import (
	"context"
	"testing"

	"nullbytes.dev/wipecert/storage"
	"nullbytes.dev/wipecert/storage/casregistry"
	_ "nullbytes.dev/wipecert/storage/localfs"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"empty", Config{}, false},
		{"missing name", Config{Backends: []BackendConfig{{}}}, false},
		{"dup id", Config{Backends: []BackendConfig{{Name: "localfs"}, {Name: "localfs"}}}, false},
		{"dup resolved by id", Config{Backends: []BackendConfig{{Name: "localfs"}, {Name: "localfs", ID: "mirror"}}}, true},
		{"bad policy", Config{WritePolicy: "some", Backends: []BackendConfig{{Name: "localfs"}}}, false},
		{"ok", Config{WritePolicy: WriteAll, Backends: []BackendConfig{{Name: "localfs"}}}, true},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if (err == nil) != tc.ok {
			t.Fatalf("%s: Validate() = %v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}

func TestOpen_Policies(t *testing.T) {
	ctx := context.Background()
	a, b := t.TempDir(), t.TempDir()
	backends := []BackendConfig{
		{Name: "localfs", ID: "primary", Config: map[string]string{"dir": a}},
		{Name: "localfs", ID: "mirror", Config: map[string]string{"dir": b}},
	}

	cas, closeFn, err := Config{WritePolicy: WriteAll, Backends: backends}.Open(casregistry.UsageCLI)
	if err != nil {
		t.Fatalf("Open(all): %v", err)
	}
	defer closeFn()
	if _, ok := cas.(storage.ReplicatingCAS); !ok {
		t.Fatalf("write_policy=all: got %T", cas)
	}
	id, err := cas.Put(ctx, []byte("replicated"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	first, closeFirst, err := Config{Backends: backends[1:]}.Open(casregistry.UsageCLI)
	if err != nil {
		t.Fatalf("Open(mirror): %v", err)
	}
	defer closeFirst()
	if ok, _ := first.Has(ctx, id); !ok {
		t.Fatalf("mirror did not receive replicated write")
	}

	fb, closeFB, err := Config{Backends: backends}.Open(casregistry.UsageCLI)
	if err != nil {
		t.Fatalf("Open(first): %v", err)
	}
	defer closeFB()
	if _, ok := fb.(storage.FallbackCAS); !ok {
		t.Fatalf("default policy: got %T", fb)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, _, err := Config{Backends: []BackendConfig{{Name: "nope"}}}.Open(casregistry.UsageCLI)
	if err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
