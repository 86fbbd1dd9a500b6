package catalog

import "testing"

func TestAdjustmentApply(t *testing.T) {
	tests := map[string]struct {
		current int
		adj     Adjustment
		want    int
		wantErr bool
	}{
		"set":                   {current: 5, adj: SetTo(12), want: 12},
		"set to zero":           {current: 5, adj: SetTo(0), want: 0},
		"add":                   {current: 5, adj: AddBy(3), want: 8},
		"subtract":              {current: 5, adj: SubtractBy(5), want: 0},
		"subtract below zero":   {current: 5, adj: SubtractBy(6), wantErr: true},
		"negative set rejected": {current: 5, adj: SetTo(-1), wantErr: true},
		"negative add rejected": {current: 5, adj: AddBy(-2), wantErr: true},
		"negative sub rejected": {current: 5, adj: SubtractBy(-2), wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := tc.adj.apply(tc.current)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if got != tc.want {
				t.Fatalf("apply(%d, %s) = %d, want %d", tc.current, tc.adj, got, tc.want)
			}
		})
	}
}
