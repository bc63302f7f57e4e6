package style_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"twc/style"
)

func snapshot() style.Snapshot {
	return style.Snapshot{
		1: {"display": "block", "margin-top": "0px", "color": "rgb(0, 0, 0)"},
		2: {"display": "block", "margin-top": "8px", "width": "100px"},
		3: {"display": "inline"},
	}
}

func TestDiff_Identical(t *testing.T) {
	if got := style.Diff(snapshot(), snapshot()); len(got) != 0 {
		t.Errorf("expected no changes, got %v", got)
	}
}

func TestDiff_SingleChange(t *testing.T) {
	styled := snapshot()
	styled[2] = style.Record{"display": "block", "margin-top": "10px", "width": "100px"}

	got := style.Diff(snapshot(), styled)
	want := style.ChangedSet{2: {"margin-top"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDiff_Cases(t *testing.T) {
	tests := []struct {
		name     string
		baseline style.Snapshot
		styled   style.Snapshot
		want     style.ChangedSet
	}{
		{
			name:     "no unit normalization",
			baseline: style.Snapshot{1: {"width": "10px"}},
			styled:   style.Snapshot{1: {"width": "10.0px"}},
			want:     style.ChangedSet{1: {"width"}},
		},
		{
			name:     "absent in baseline",
			baseline: style.Snapshot{1: {}},
			styled:   style.Snapshot{1: {"gap": "4px", "color": "red"}},
			want:     style.ChangedSet{1: {"color", "gap"}},
		},
		{
			name:     "element absent in baseline",
			baseline: style.Snapshot{},
			styled:   style.Snapshot{7: {"color": "red"}},
			want:     style.ChangedSet{7: {"color"}},
		},
		{
			name:     "absent in styled is unchanged",
			baseline: style.Snapshot{1: {"color": "red", "width": "1px"}},
			styled:   style.Snapshot{1: {"width": "1px"}},
			want:     style.ChangedSet{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := style.Diff(tt.baseline, tt.styled); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVanished(t *testing.T) {
	baseline := style.Snapshot{1: {"color": "red", "width": "1px"}, 2: {"color": "red"}}
	styled := style.Snapshot{1: {"width": "2px"}, 2: {"color": "red"}}
	want := style.ChangedSet{1: {"color"}}
	if got := style.Vanished(baseline, styled); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestOutranks(t *testing.T) {
	tests := []struct {
		name    string
		d, over style.Declaration
		want    bool
	}{
		{"higher rank", style.Declaration{Rank: 2}, style.Declaration{Rank: 1}, true},
		{"lower rank", style.Declaration{Rank: 1}, style.Declaration{Rank: 2}, false},
		{"equal rank later wins", style.Declaration{Rank: 1}, style.Declaration{Rank: 1}, true},
		{"important beats higher rank", style.Declaration{Rank: 1, Important: true}, style.Declaration{Rank: 5}, true},
		{"normal loses to important", style.Declaration{Rank: 5}, style.Declaration{Rank: 1, Important: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Outranks(tt.over); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	changed := []string{"color", "margin-top"}
	decls := []style.Declaration{
		{Property: "margin-top", Value: "1px", Rank: 0},
		{Property: "padding-top", Value: "9px", Rank: 0},
		{Property: "color", Value: "red", Rank: 1},
		{Property: "margin-top", Value: "2px", Rank: 3},
		{Property: "color", Value: "blue", Rank: 0},
	}
	want := []style.Attributed{
		{Property: "margin-top", Value: "2px", Rank: 3},
		{Property: "color", Value: "red", Rank: 1},
	}
	if got := style.Resolve(changed, decls); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func lookupFrom(m map[style.Identity][]style.Declaration, fail map[style.Identity]error) style.Lookup {
	return func(_ context.Context, id style.Identity) ([]style.Declaration, error) {
		if err, ok := fail[id]; ok {
			return nil, err
		}
		return m[id], nil
	}
}

func TestAttribute_WinnerByRank(t *testing.T) {
	changed := style.ChangedSet{1: {"width"}}
	lookup := lookupFrom(map[style.Identity][]style.Declaration{
		1: {
			{Property: "width", Value: "10vw", Rank: 2, Source: ".b"},
			{Property: "width", Value: "50%", Rank: 1, Source: ".a"},
		},
	}, nil)

	got, err := style.NewAttributor(zaptest.NewLogger(t), 2).Attribute(context.Background(), changed, lookup)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := got.Value(1, "width"); v != "10vw" {
		t.Errorf("expected higher rank value 10vw, got %q", v)
	}
}

func TestAttribute_SkipsAndOmits(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	changed := style.ChangedSet{
		1: {"color"},
		2: {"color"}, // lookup fails
		3: {"color"}, // inherited, no authored declaration
		4: {"color"}, // malformed oracle answer
	}
	lookup := lookupFrom(map[style.Identity][]style.Declaration{
		1: {{Property: "color", Value: "red"}},
		3: {{Property: "width", Value: "1px"}},
		4: {{Property: "", Value: "red"}},
	}, map[style.Identity]error{2: errors.New("node detached")})

	got, err := style.NewAttributor(zap.New(core), 4).Attribute(context.Background(), changed, lookup)
	if err != nil {
		t.Fatal(err)
	}
	want := style.Attribution{1: {{Property: "color", Value: "red"}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if n := logs.FilterMessage("Unable to resolve element, skipping").Len(); n != 2 {
		t.Errorf("expected 2 warnings, got %d", n)
	}
}

func TestAttribute_Deterministic(t *testing.T) {
	changed := make(style.ChangedSet)
	decls := make(map[style.Identity][]style.Declaration)
	for i := 1; i <= 200; i++ {
		id := style.Identity(i)
		changed[id] = []string{"margin-left", "margin-top"}
		decls[id] = []style.Declaration{
			{Property: "margin-top", Value: fmt.Sprintf("%dpx", i)},
			{Property: "margin-left", Value: "auto", Rank: 1},
		}
	}
	seq, err := style.NewAttributor(nil, 1).Attribute(context.Background(), changed, lookupFrom(decls, nil))
	if err != nil {
		t.Fatal(err)
	}
	par, err := style.NewAttributor(nil, 16).Attribute(context.Background(), changed, lookupFrom(decls, nil))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(seq, par) {
		t.Error("concurrent attribution differs from sequential one")
	}
}

func TestAttribute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := style.NewAttributor(nil, 2).Attribute(ctx, style.ChangedSet{1: {"color"}}, lookupFrom(nil, nil))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
}

func TestParseIdentity(t *testing.T) {
	if id, err := style.ParseIdentity("42"); err != nil || id != 42 {
		t.Errorf("got %v, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-1", "x"} {
		if _, err := style.ParseIdentity(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
