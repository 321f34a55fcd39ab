package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		region string
		want   string
	}{
		{name: "us national", input: "(415) 555-2671", region: "US", want: "+14155552671"},
		{name: "default region", input: "415-555-2671", region: "", want: "+14155552671"},
		{name: "already e164", input: "+31612345678", region: "US", want: "+31612345678"},
		{name: "garbage kept", input: "  not a number ", region: "US", want: "not a number"},
		{name: "empty", input: "   ", region: "US", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeE164(tc.input, tc.region); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsE164(t *testing.T) {
	if !IsE164("+14155552671") {
		t.Fatalf("expected +14155552671 to be E.164")
	}
	if IsE164("4155552671") {
		t.Fatalf("expected number without + to be rejected")
	}
}
