package scheduler

import "testing"

func TestStopIsIdempotent(t *testing.T) {
	s := &Scheduler{
		stop: make(chan struct{}),
	}

	s.Stop()
	s.Stop()

	select {
	case <-s.stop:
	default:
		t.Fatal("expected scheduler stop channel to be closed")
	}
}

func TestParseWarmTargets(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []WarmTarget
		wantErr bool
	}{
		{
			name: "empty",
			spec: "",
		},
		{
			name: "descriptors",
			spec: "@every 30s /edge/nodes; @every 1m /prediction/warnings",
			want: []WarmTarget{
				{Schedule: "@every 30s", Path: "/edge/nodes"},
				{Schedule: "@every 1m", Path: "/prediction/warnings"},
			},
		},
		{
			name: "five field cron",
			spec: "*/5 * * * * /alerts/status;",
			want: []WarmTarget{{Schedule: "*/5 * * * *", Path: "/alerts/status"}},
		},
		{
			name:    "missing path",
			spec:    "@hourly",
			wantErr: true,
		},
		{
			name:    "bad schedule",
			spec:    "@sometimes /edge/nodes",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWarmTargets(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWarmTargets() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d targets, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("target %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
