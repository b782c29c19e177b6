package grpccas

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"nullbytes.dev/wipecert/cidutil"
	"nullbytes.dev/wipecert/storage"
	"nullbytes.dev/wipecert/storage/localfs"
	"nullbytes.dev/wipecert/storage/testkit"
)

func serve(t *testing.T, backing storage.CAS) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterPayloadStoreServer(srv, &Server{CAS: backing})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial("passthrough:///bufnet", DialOptions{Extra: []grpc.DialOption{
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Timeout = 2 * time.Second
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		backing, err := localfs.New(t.TempDir())
		if err != nil {
			t.Fatalf("localfs.New: %v", err)
		}
		return serve(t, backing)
	})
}

func TestGRPCCAS_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	backing, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := serve(t, backing)

	missing, _ := cidutil.ForPayload([]byte("missing"))
	if _, err := client.Get(ctx, missing); !storage.IsNotFound(err) {
		t.Fatalf("Get missing: got %v want ErrNotFound", err)
	}
	if _, err := client.Put(ctx, nil); err != storage.ErrEmpty {
		t.Fatalf("Put empty: got %v want ErrEmpty", err)
	}
	if err := client.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestGRPCCAS_PingFailsWithoutServer(t *testing.T) {
	lis := bufconn.Listen(1024)
	_ = lis.Close()
	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial("passthrough:///bufnet", DialOptions{Extra: []grpc.DialOption{grpc.WithContextDialer(dialer)}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx); err == nil {
		t.Fatalf("expected Ping to fail against a closed listener")
	}
}

func TestServiceDesc_DirectHandlers(t *testing.T) {
	backing, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	srv := &Server{CAS: backing}
	handlers := map[string]func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error){}
	for _, m := range PayloadStore_ServiceDesc.Methods {
		handlers[m.MethodName] = m.Handler
	}
	for _, name := range []string{"Put", "Get", "Has", "Ping"} {
		if handlers[name] == nil {
			t.Fatalf("missing handler for %s", name)
		}
	}

	data := []byte(`{"cert":{"a":1},"sig":"S1"}`)
	dec := func(v interface{}) error {
		v.(*wrapperspb.BytesValue).Value = data
		return nil
	}
	out, err := handlers["Put"](srv, context.Background(), dec, nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := out.(*wrapperspb.StringValue).GetValue(); got != cidutil.String(data) {
		t.Fatalf("Put: got %q want %q", got, cidutil.String(data))
	}

	var seen string
	intercept := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, h grpc.UnaryHandler) (interface{}, error) {
		seen = info.FullMethod
		return h(ctx, req)
	}
	decCID := func(v interface{}) error {
		v.(*wrapperspb.StringValue).Value = cidutil.String(data)
		return nil
	}
	out, err = handlers["Has"](srv, context.Background(), decCID, intercept)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !out.(*wrapperspb.BoolValue).GetValue() {
		t.Fatalf("Has: want true")
	}
	if seen != methodHas {
		t.Fatalf("interceptor saw %q want %q", seen, methodHas)
	}
}
