package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "plain", cfg: Config{Endpoint: "localhost:9000", Bucket: "tc"}, want: "http://localhost:9000/tc/changes/1/analysis.json"},
		{name: "tls", cfg: Config{Endpoint: "s3.example.com", Bucket: "tc", UseSSL: true}, want: "https://s3.example.com/tc/changes/1/analysis.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, err := newClient(tt.cfg)
			require.NoError(t, err)
			s := &Store{client: cli, bucketName: tt.cfg.Bucket}
			assert.Equal(t, tt.want, s.objectURL("changes/1/analysis.json"))
		})
	}
}
