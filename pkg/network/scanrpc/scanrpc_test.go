package scanrpc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/kvrange/pkg/db"
	"github.com/eigerco/kvrange/pkg/db/memory"
	"github.com/eigerco/kvrange/pkg/network/cert"
	"github.com/eigerco/kvrange/pkg/network/transport"
	"github.com/eigerco/kvrange/pkg/scan"
)

func startServer(t *testing.T, store db.KVStore, maxLimit int) string {
	t.Helper()
	tlsCert, err := cert.NewSelfSigned(time.Hour)
	require.NoError(t, err)

	tr, err := transport.NewTransport(transport.Config{
		TLSCert:       tlsCert,
		ListenAddr:    "127.0.0.1:0",
		CertValidator: cert.NewValidator(),
		Handler:       NewServer(store, maxLimit),
	})
	require.NoError(t, err)
	require.NoError(t, tr.Start())
	t.Cleanup(func() { tr.Stop() })
	return tr.Addr().String()
}

func keys(entries []scan.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, string(e.Key))
	}
	return out
}

func TestRemoteScan(t *testing.T) {
	store := memory.New()
	defer store.Close()
	for _, k := range []string{"one", "two", "three", "four", "five"} {
		require.NoError(t, store.Put([]byte(k), []byte("v-"+k)))
	}
	addr := startServer(t, store, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := Dial(ctx, addr, nil)
	require.NoError(t, err)
	defer client.Close()

	tests := []struct {
		name string
		opts scan.Options
		want []string
	}{
		{name: "reverse_bounds", opts: scan.NewOptions(scan.From([]byte("three")), scan.To([]byte("four")), scan.Reverse()), want: []string{"three", "one", "four"}},
		{name: "limit", opts: scan.NewOptions(scan.Limit(3)), want: []string{"five", "four", "one"}},
		{name: "clamped_to_server_max", opts: scan.NewOptions(), want: []string{"five", "four", "one", "three"}},
		{name: "empty", opts: scan.NewOptions(scan.From([]byte("a")), scan.Reverse()), want: []string{}},
		{name: "prefix", opts: scan.NewOptions(scan.Prefix([]byte("t"))), want: []string{"three", "two"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := client.Collect(ctx, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, keys(entries))
			for _, e := range entries {
				assert.Equal(t, "v-"+string(e.Key), string(e.Value))
			}
		})
	}

	t.Run("early_stop", func(t *testing.T) {
		var got []string
		err := client.Scan(ctx, scan.NewOptions(scan.Reverse()), func(e scan.Entry) bool {
			got = append(got, string(e.Key))
			return false
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"two"}, got)

		// the connection is still usable
		entries, err := client.Collect(ctx, scan.NewOptions(scan.Limit(1)))
		require.NoError(t, err)
		assert.Equal(t, []string{"five"}, keys(entries))
	})

	t.Run("remote_error", func(t *testing.T) {
		require.NoError(t, store.Close())
		_, err := client.Collect(ctx, scan.NewOptions())
		assert.ErrorIs(t, err, ErrRemote)
		assert.Contains(t, err.Error(), db.ErrClosed.Error())
	})
}

func TestDecode(t *testing.T) {
	entry := encodeEntry(scan.Entry{Key: []byte("key"), Value: []byte("value")})

	tests := []struct {
		name     string
		content  []byte
		want     scan.Entry
		wantDone bool
		wantErr  error
	}{
		{name: "entry", content: entry, want: scan.Entry{Key: []byte("key"), Value: []byte("value")}},
		{name: "empty_value", content: encodeEntry(scan.Entry{Key: []byte("k")}), want: scan.Entry{Key: []byte("k"), Value: []byte{}}},
		{name: "done", content: []byte{kindDone}, wantDone: true},
		{name: "remote_error", content: encodeError(fmt.Errorf("disk full")), wantDone: true, wantErr: ErrRemote},
		{name: "empty_frame", content: []byte{}, wantErr: ErrMalformed},
		{name: "short_header", content: []byte{kindEntry, 1, 0}, wantErr: ErrMalformed},
		{name: "key_overflows", content: []byte{kindEntry, 9, 0, 0, 0, 'a'}, wantErr: ErrMalformed},
		{name: "unknown_kind", content: []byte{0x7f}, wantErr: ErrMalformed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, done, err := decode(tc.content)
			assert.Equal(t, tc.wantDone, done)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, e)
		})
	}
}
