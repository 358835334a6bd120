package transform

import (
	"testing"

	"github.com/jo-hoe/imagebot/internal/raster"
)

// createTestImage creates a colour image with a horizontal gradient and a
// bright square so every transform has structure to work on.
func createTestImage(width, height int) *raster.Image {
	img := raster.New(width, height, raster.RGB)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := img.Offset(x, y)
			img.Pix[off] = uint8((x * 255) / width)
			img.Pix[off+1] = uint8((y * 255) / height)
			img.Pix[off+2] = 64
			if x > width/4 && x < 3*width/4 && y > height/4 && y < 3*height/4 {
				img.Pix[off], img.Pix[off+1], img.Pix[off+2] = 240, 240, 240
			}
		}
	}
	return img
}

func newDefaultRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return registry
}

func TestParseCommand(t *testing.T) {
	testCases := []struct {
		token string
		want  Command
	}{
		{"black_white", BlackWhite},
		{"/blackwhite", BlackWhite},
		{"/BlackWhite@opencv_bot", BlackWhite},
		{"blur", Blur},
		{" /edge ", Edge},
		{"/contour", Contour},
		{"erosion", Erosion},
		{"/dilation", Dilation},
		{"histogram", Histogram},
		{"/sampling", Sampling},
	}

	for _, tc := range testCases {
		t.Run(tc.token, func(t *testing.T) {
			got, err := ParseCommand(tc.token)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}

	for _, token := range []string{"", "/", "/start", "sharpen", "black white"} {
		if _, err := ParseCommand(token); err == nil {
			t.Errorf("Expected error for %q", token)
		}
	}
}

func TestCommand_StringAndToken(t *testing.T) {
	if BlackWhite.String() != "black_white" || BlackWhite.Token() != "blackwhite" {
		t.Errorf("unexpected names %q / %q", BlackWhite.String(), BlackWhite.Token())
	}
	if Command(42).Valid() {
		t.Error("Expected out of range command to be invalid")
	}
	if len(AllCommands()) != 8 {
		t.Errorf("Expected 8 commands, got %d", len(AllCommands()))
	}
	for _, cmd := range AllCommands() {
		parsed, err := ParseCommand(cmd.Token())
		if err != nil || parsed != cmd {
			t.Errorf("token %q does not parse back to %s", cmd.Token(), cmd)
		}
	}
}

func TestNewRegistry_CoversEveryCommand(t *testing.T) {
	registry := newDefaultRegistry(t)

	if got := registry.Commands(); len(got) != len(AllCommands()) {
		t.Fatalf("Expected %d commands, got %d", len(AllCommands()), len(got))
	}
	for _, cmd := range AllCommands() {
		tr, err := registry.Lookup(cmd)
		if err != nil {
			t.Fatalf("Lookup(%s) failed: %v", cmd, err)
		}
		if tr.Command() != cmd {
			t.Errorf("Lookup(%s) returned transform for %s", cmd, tr.Command())
		}
	}

	if _, err := registry.Lookup(Command(99)); err == nil {
		t.Error("Expected error for invalid command")
	}
}

func TestNewRegistry_Overrides(t *testing.T) {
	registry, err := NewRegistry([]CommandConfig{
		{Name: "blur", Params: map[string]any{"kernelSize": 5}},
		{Name: "/sampling", Params: map[string]any{"factor": 4}},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	blur, _ := registry.Lookup(Blur)
	if ks := blur.(*BlurTransform).GetParams().KernelSize; ks != 5 {
		t.Errorf("Expected kernel size 5, got %d", ks)
	}
	sampling, _ := registry.Lookup(Sampling)
	if f := sampling.(*SamplingTransform).GetParams().Factor; f != 4 {
		t.Errorf("Expected factor 4, got %d", f)
	}
}

func TestNewRegistry_InvalidConfig(t *testing.T) {
	testCases := []struct {
		name    string
		configs []CommandConfig
	}{
		{"unknown command", []CommandConfig{{Name: "sharpen"}}},
		{"duplicate command", []CommandConfig{{Name: "blur"}, {Name: "/blur"}}},
		{"invalid params", []CommandConfig{{Name: "blur", Params: map[string]any{"kernelSize": 4}}}},
		{"unknown param", []CommandConfig{{Name: "erosion", Params: map[string]any{"kernel": 3}}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRegistry(tc.configs); err == nil {
				t.Error("Expected error for invalid command configuration")
			}
		})
	}
}

func TestTransforms_ChannelCounts(t *testing.T) {
	registry := newDefaultRegistry(t)
	expected := map[Command]int{
		BlackWhite: raster.Gray,
		Edge:       raster.Gray,
		Histogram:  raster.Gray,
		Blur:       raster.RGB,
		Contour:    raster.RGB,
		Erosion:    raster.RGB,
		Dilation:   raster.RGB,
		Sampling:   raster.RGB,
	}

	for _, input := range []*raster.Image{createTestImage(40, 30), toGray(createTestImage(40, 30))} {
		for cmd, channels := range expected {
			tr, _ := registry.Lookup(cmd)
			out, err := tr.Apply(input)
			if err != nil {
				t.Fatalf("%s failed: %v", cmd, err)
			}
			want := channels
			if input.Channels == raster.Gray {
				want = raster.Gray
			}
			if out.Channels != want {
				t.Errorf("%s on %d-channel input: expected %d channels, got %d",
					cmd, input.Channels, want, out.Channels)
			}
		}
	}
}

func TestTransforms_PureAndDeterministic(t *testing.T) {
	registry := newDefaultRegistry(t)
	input := createTestImage(64, 48)
	snapshot := input.Clone()

	for _, cmd := range AllCommands() {
		t.Run(cmd.String(), func(t *testing.T) {
			tr, _ := registry.Lookup(cmd)
			first, err := tr.Apply(input)
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			second, err := tr.Apply(input)
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			if !first.Equal(second) {
				t.Error("Expected identical output for identical input")
			}
			if !input.Equal(snapshot) {
				t.Fatal("Apply modified its input")
			}

			for i := range first.Pix {
				first.Pix[i] ^= 0xff
			}
			if !input.Equal(snapshot) {
				t.Error("output aliases the input buffer")
			}
		})
	}
}

func TestTransforms_RejectMalformedImages(t *testing.T) {
	registry := newDefaultRegistry(t)
	malformed := []*raster.Image{
		{Width: 4, Height: 4, Channels: 4, Pix: make([]uint8, 64)},
		{Width: 4, Height: 4, Channels: 3, Pix: make([]uint8, 10)},
		{Width: 0, Height: 4, Channels: 3},
	}

	for _, cmd := range AllCommands() {
		tr, _ := registry.Lookup(cmd)
		for _, img := range malformed {
			if _, err := tr.Apply(img); err == nil {
				t.Errorf("%s: expected error for malformed image %dx%dx%d",
					cmd, img.Width, img.Height, img.Channels)
			}
		}
	}
}

func TestTransforms_UniformGrayScenario(t *testing.T) {
	registry := newDefaultRegistry(t)
	input := raster.NewUniform(100, 100, raster.RGB, 128)

	bw, _ := registry.Lookup(BlackWhite)
	out, err := bw.Apply(input)
	if err != nil {
		t.Fatalf("black_white failed: %v", err)
	}
	if !out.Equal(raster.NewUniform(100, 100, raster.Gray, 128)) {
		t.Error("Expected 100x100 single-channel image uniformly valued 128")
	}

	sampling, _ := registry.Lookup(Sampling)
	out, err = sampling.Apply(input)
	if err != nil {
		t.Fatalf("sampling failed: %v", err)
	}
	if !out.Equal(raster.NewUniform(50, 50, raster.RGB, 128)) {
		t.Error("Expected 50x50 3-channel image uniformly valued 128")
	}
}

func TestParallelFor_PropagatesPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != "row 40" {
			t.Errorf("Expected panic \"row 40\" on the calling goroutine, got %v", r)
		}
	}()
	parallelFor(100, func(y int) {
		if y == 40 {
			panic("row 40")
		}
	})
	t.Error("Expected parallelFor to panic")
}

func TestParallelFor_VisitsEveryRow(t *testing.T) {
	seen := make([]int, 500)
	parallelFor(len(seen), func(y int) {
		seen[y]++
	})
	for y, n := range seen {
		if n != 1 {
			t.Fatalf("row %d visited %d times", y, n)
		}
	}
}

func TestValidateKnownParams(t *testing.T) {
	if err := ValidateKnownParams(map[string]any{"a": 1}, "a", "b"); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := ValidateKnownParams(nil); err != nil {
		t.Errorf("Expected no error for nil params, got %v", err)
	}
	if err := ValidateKnownParams(map[string]any{"c": 1}, "a"); err == nil {
		t.Error("Expected error for unknown parameter")
	}
}

func TestValidateIntParams(t *testing.T) {
	testCases := []struct {
		name    string
		params  map[string]any
		wantErr bool
	}{
		{"absent", nil, false},
		{"int", map[string]any{"kernelSize": 15}, false},
		{"int64", map[string]any{"kernelSize": int64(15)}, false},
		{"whole float", map[string]any{"kernelSize": 15.0}, false},
		{"fractional float", map[string]any{"kernelSize": 15.5}, true},
		{"string", map[string]any{"kernelSize": "15"}, true},
		{"bool", map[string]any{"kernelSize": true}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateIntParams(tc.params, "kernelSize")
			if (err != nil) != tc.wantErr {
				t.Errorf("Expected error=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConstructors_RejectFractionalParams(t *testing.T) {
	testCases := []struct {
		name    string
		factory Factory
		params  map[string]any
	}{
		{"blur kernel", NewBlurTransform, map[string]any{"kernelSize": 15.5}},
		{"contour threshold", NewContourTransform, map[string]any{"threshold": 127.3}},
		{"erosion iterations", NewErosionTransform, map[string]any{"iterations": 1.5}},
		{"dilation kernel", NewDilationTransform, map[string]any{"kernelSize": 4.9}},
		{"sampling factor", NewSamplingTransform, map[string]any{"factor": 2.5}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.factory(tc.params); err == nil {
				t.Error("Expected error for a non-integral value")
			}
		})
	}
}

func TestGetParams(t *testing.T) {
	params := map[string]any{
		"int":    7,
		"int64":  int64(8),
		"float":  2.5,
		"bool":   true,
		"string": "TRUE",
		"bad":    "x",
	}

	if v := GetIntParam(params, "int64", 0); v != 8 {
		t.Errorf("Expected 8, got %d", v)
	}
	if v := GetIntParam(params, "bad", 3); v != 3 {
		t.Errorf("Expected default 3, got %d", v)
	}
	if v := GetFloatParam(params, "int", 0); v != 7 {
		t.Errorf("Expected 7, got %v", v)
	}
	if v := GetFloatParam(params, "float", 0); v != 2.5 {
		t.Errorf("Expected 2.5, got %v", v)
	}
	if !GetBoolParam(params, "bool", false) || !GetBoolParam(params, "string", false) {
		t.Error("Expected true bool params")
	}
	if GetBoolParam(params, "bad", false) {
		t.Error("Expected default false for unparseable bool")
	}
}
