package colormap

import (
	"image/color"
	"testing"
)

func TestFrontsPaletteWraps(t *testing.T) {
	t.Parallel()

	if Fronts.Len() != 10 {
		t.Fatalf("expected 10 front colors, got %d", Fronts.Len())
	}
	if Hex(Fronts.AtIndex(0)) != "#1f77b4" {
		t.Fatalf("unexpected first color: %s", Hex(Fronts.AtIndex(0)))
	}
	if Fronts.AtIndex(10) != Fronts.AtIndex(0) {
		t.Fatalf("expected palette to wrap at 10")
	}
	if Hex(Fronts.AtIndex(9)) != "#17becf" {
		t.Fatalf("unexpected last color: %s", Hex(Fronts.AtIndex(9)))
	}
}

func TestViridisEndpoints(t *testing.T) {
	t.Parallel()

	c0, ok := Viridis.At(0).(color.RGBA)
	if !ok {
		t.Fatalf("expected color.RGBA at t=0")
	}
	if c0 != (color.RGBA{R: 68, G: 1, B: 84, A: 255}) {
		t.Fatalf("unexpected Viridis.At(0): %#v", c0)
	}

	c1, ok := Viridis.At(1).(color.RGBA)
	if !ok {
		t.Fatalf("expected color.RGBA at t=1")
	}
	if c1 != (color.RGBA{R: 253, G: 231, B: 37, A: 255}) {
		t.Fatalf("unexpected Viridis.At(1): %#v", c1)
	}
}

func TestParseHex(t *testing.T) {
	t.Parallel()

	c, err := ParseHex("#000080")
	if err != nil {
		t.Fatalf("ParseHex: %v", err)
	}
	if c != Consolidated {
		t.Fatalf("expected navy, got %#v", c)
	}
	short, err := ParseHex("f00")
	if err != nil || short != Selected {
		t.Fatalf("expected red from short form, got %#v (%v)", short, err)
	}
	if _, err := ParseHex("#12345"); err == nil {
		t.Fatal("expected error for malformed color")
	}
}

func TestByName(t *testing.T) {
	t.Parallel()

	if _, ok := ByName("viridis"); !ok {
		t.Fatal("expected viridis")
	}
	if _, ok := ByName("jet"); ok {
		t.Fatal("unexpected colormap jet")
	}
}

func TestSampleSpansRamp(t *testing.T) {
	t.Parallel()

	p := Viridis.Sample(5)
	if p.Len() != 5 {
		t.Fatalf("expected 5 colors, got %d", p.Len())
	}
	if p.AtIndex(0) != Viridis.At(0) || p.AtIndex(4) != Viridis.At(1) {
		t.Fatalf("expected sample to start and end on the ramp endpoints")
	}
	if Blues.Sample(1).Len() != 1 {
		t.Fatal("expected a single color for n=1")
	}
}

func TestFromHex(t *testing.T) {
	t.Parallel()

	p, err := FromHex([]string{"#000080", "f00"})
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	if p.AtIndex(0) != Consolidated || p.AtIndex(3) != Selected {
		t.Fatalf("unexpected palette: %s %s", Hex(p.AtIndex(0)), Hex(p.AtIndex(1)))
	}
	if _, err := FromHex(nil); err == nil {
		t.Fatal("expected error for empty palette")
	}
	if _, err := FromHex([]string{"#zzzzzz"}); err == nil {
		t.Fatal("expected error for malformed color")
	}
}
