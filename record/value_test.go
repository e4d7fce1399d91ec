package record

import "testing"

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a    Value
		b    Value
		want bool
	}{
		{"null vs null", Null(), Null(), true},
		{"null vs int", Null(), Int(0), false},
		{"int vs int equal", Int(10), Int(10), true},
		{"int vs int differ", Int(10), Int(11), false},
		{"int vs float numeric equal", Int(1), Float(1.0), true},
		{"float vs int numeric equal", Float(2.0), Int(2), true},
		{"int vs float differ", Int(1), Float(1.5), false},
		{"string equal", String("a"), String("a"), true},
		{"string differ", String("a"), String("b"), false},
		{"string vs int", String("1"), Int(1), false},
		{"bool equal", Bool(true), Bool(true), true},
		{"bool differ", Bool(true), Bool(false), false},
		{"array equal", Array(Int(1), String("a")), Array(Int(1), String("a")), true},
		{"array length differ", Array(Int(1)), Array(Int(1), Int(2)), false},
		{"array element differ", Array(Int(1)), Array(Int(2)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("Equal() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueKeyStable(t *testing.T) {
	tests := []struct {
		name string
		val  Value
		want string
	}{
		{"null", Null(), "null"},
		{"int", Int(-7), "i:-7"},
		{"string", String("hello"), "s:hello"},
		{"bool true", Bool(true), "b:1"},
		{"bool false", Bool(false), "b:0"},
		{"empty array", Array(), "a:"},
		{"array", Array(Int(1), String("x")), "a:i:1\x1es:x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.val.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValueKeyDistinguishesKinds(t *testing.T) {
	// Int(1) and String("1") must not collide in cache keys even
	// though their obvious textual forms match.
	if Int(1).Key() == String("1").Key() {
		t.Fatal("Int(1) and String(\"1\") produced the same key")
	}
	if Float(1).Key() == Int(1).Key() {
		t.Fatal("Float(1) and Int(1) produced the same key")
	}
}

func TestValueClone(t *testing.T) {
	orig := Array(Int(1), Array(String("nested")))
	clone := orig.Clone()

	clone.A[0] = Int(99)
	clone.A[1].A[0] = String("changed")

	if v, _ := orig.A[0].AsInt64(); v != 1 {
		t.Errorf("clone mutation leaked into original: got %d", v)
	}
	if got := orig.A[1].A[0].StringValue(); got != "nested" {
		t.Errorf("nested clone mutation leaked into original: got %q", got)
	}
}
