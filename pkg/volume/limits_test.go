package volume

import (
	"errors"
	"math"
	"testing"

	"github.com/vnykmshr/volqos/internal/testutil"
	qoserrors "github.com/vnykmshr/volqos/pkg/common/errors"
)

func TestLimitsValidate(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		wantErr bool
	}{
		{"zero", Limits{}, false},
		{"iops only", Limits{IOPSBurst: 100, IOPSAvg: 50}, false},
		{"avg equals burst", Limits{BPSBurst: 4096, BPSAvg: 4096}, false},
		{"iops avg above burst", Limits{IOPSBurst: 10, IOPSAvg: 11}, true},
		{"bps avg above burst", Limits{BPSBurst: 10, BPSAvg: 20}, true},
		{"avg with disabled burst", Limits{IOPSAvg: 20}, false},
		{"iops burst without avg", Limits{IOPSBurst: 3}, true},
		{"bps burst without avg", Limits{IOPSBurst: 3, IOPSAvg: 1, BPSBurst: 4096}, true},
		{"too large", Limits{BPSBurst: math.MaxUint64}, true},
		{"bad type", Limits{Type: "sideways"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.limits.Validate()
			if !tt.wantErr {
				testutil.AssertNoError(t, err)
				return
			}
			testutil.AssertError(t, err)
			if !errors.Is(err, qoserrors.ErrInvalidConfiguration) {
				t.Errorf("error %v should wrap ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestLimitsMerge(t *testing.T) {
	prev := Limits{IOPSBurst: 100, IOPSAvg: 50, BPSBurst: 1 << 20, BPSAvg: 1 << 19, Type: OpWrite}

	got := Limits{IOPSBurst: 200}.Merge(prev)
	testutil.AssertNoError(t, got.Validate())
	want := Limits{IOPSBurst: 200, IOPSAvg: 50, BPSBurst: 1 << 20, BPSAvg: 1 << 19, Type: OpWrite}
	testutil.AssertEqual(t, got, want)

	got = Limits{BPSAvg: 1, Type: OpRead}.Merge(prev)
	testutil.AssertEqual(t, got.BPSAvg, uint64(1))
	testutil.AssertEqual(t, got.Type, OpRead)
	testutil.AssertEqual(t, got.IOPSBurst, uint64(100))
}

func TestParseOpType(t *testing.T) {
	tests := []struct {
		in      string
		want    OpType
		wantErr bool
	}{
		{"", OpAll, false},
		{"all", OpAll, false},
		{"READ", OpRead, false},
		{" write ", OpWrite, false},
		{"both", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOpType(tt.in)
		if tt.wantErr {
			testutil.AssertError(t, err)
			continue
		}
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, got, tt.want)
	}
}

func TestOpTypeMatches(t *testing.T) {
	testutil.AssertEqual(t, OpAll.Matches(Read), true)
	testutil.AssertEqual(t, OpAll.Matches(Write), true)
	testutil.AssertEqual(t, OpType("").Matches(Write), true)
	testutil.AssertEqual(t, OpRead.Matches(Read), true)
	testutil.AssertEqual(t, OpRead.Matches(Write), false)
	testutil.AssertEqual(t, OpWrite.Matches(Read), false)
	testutil.AssertEqual(t, OpWrite.Matches(Write), true)
}

func TestLimitsString(t *testing.T) {
	l := Limits{IOPSBurst: 10, IOPSAvg: 5}
	testutil.AssertEqual(t, l.String(), "iops=10/5 bps=0/0 type=all")
	testutil.AssertEqual(t, l.Unlimited(), false)
	testutil.AssertEqual(t, Limits{}.Unlimited(), true)
}
