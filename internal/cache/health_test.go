package cache

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/n3tuk/maintenance-gate/internal/health"
)

type fakeCluster struct {
	pingErr    error
	members    int
	membersErr error
}

func (f *fakeCluster) Ping(context.Context) error { return f.pingErr }

func (f *fakeCluster) Members(context.Context) (int, error) { return f.members, f.membersErr }

func TestConnectionHealthChecker(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name    string
		cluster *fakeCluster
		want    health.Status
	}{
		{name: "reachable", cluster: &fakeCluster{}, want: health.StatusOK},
		{name: "unreachable", cluster: &fakeCluster{pingErr: errors.New("refused")}, want: health.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewConnectionHealthChecker(logger, tt.cluster)

			if checker.Name() != "cache-connection" {
				t.Errorf("Name() = %s, want cache-connection", checker.Name())
			}

			result := checker.Check(context.Background())
			if result.Status != tt.want {
				t.Errorf("Check() status = %s, want %s, message: %s", result.Status, tt.want, result.Message)
			}
		})
	}
}

func TestClusterHealthChecker(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		cluster    *fakeCluster
		quorum     int
		singleNode bool
		want       health.Status
	}{
		{
			name:       "single node always passes",
			cluster:    &fakeCluster{membersErr: errors.New("unused")},
			quorum:     3,
			singleNode: true,
			want:       health.StatusOK,
		},
		{
			name:    "quorum reached",
			cluster: &fakeCluster{members: 3},
			quorum:  2,
			want:    health.StatusOK,
		},
		{
			name:    "below quorum",
			cluster: &fakeCluster{members: 1},
			quorum:  2,
			want:    health.StatusNotReady,
		},
		{
			name:    "members error",
			cluster: &fakeCluster{membersErr: errors.New("timeout")},
			quorum:  1,
			want:    health.StatusError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewClusterHealthChecker(logger, tt.cluster, tt.quorum, tt.singleNode)

			if checker.Name() != "cache-cluster" {
				t.Errorf("Name() = %s, want cache-cluster", checker.Name())
			}

			result := checker.Check(context.Background())
			if result.Status != tt.want {
				t.Errorf("Check() status = %s, want %s, message: %s", result.Status, tt.want, result.Message)
			}
		})
	}
}
