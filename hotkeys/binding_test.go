package hotkeys

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseBindingSuccess(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		wantNorm string
		wantMods Modifier
		wantKey  Key
	}{
		{
			name:     "function key with two modifiers",
			spec:     "Ctrl+Shift+F12",
			wantNorm: "Ctrl+Shift+F12",
			wantMods: ModControl | ModShift,
			wantKey:  functionKey(12),
		},
		{
			name:     "F24 upper bound",
			spec:     "Alt+F24",
			wantNorm: "Alt+F24",
			wantMods: ModAlt,
			wantKey:  functionKey(24),
		},
		{
			name:     "backtick",
			spec:     "Ctrl+`",
			wantNorm: "Ctrl+`",
			wantMods: ModControl,
			wantKey:  backquoteKey(),
		},
		{
			name:     "grave alias",
			spec:     "Ctrl+Grave",
			wantNorm: "Ctrl+`",
			wantMods: ModControl,
			wantKey:  backquoteKey(),
		},
		{
			name:     "letter",
			spec:     "Ctrl+A",
			wantNorm: "Ctrl+A",
			wantMods: ModControl,
			wantKey:  letterKey('A'),
		},
		{
			name:     "lowercase letter",
			spec:     "ctrl+z",
			wantNorm: "Ctrl+Z",
			wantMods: ModControl,
			wantKey:  letterKey('Z'),
		},
		{
			name:     "digit",
			spec:     "Alt+3",
			wantNorm: "Alt+3",
			wantMods: ModAlt,
			wantKey:  digitKey('3'),
		},
		{
			name:     "space alias",
			spec:     "Ctrl+Space",
			wantNorm: "Ctrl+SPACEBAR",
			wantMods: ModControl,
			wantKey:  KeySpacebar,
		},
		{
			name:     "return alias",
			spec:     "Ctrl+Return",
			wantNorm: "Ctrl+ENTER",
			wantMods: ModControl,
			wantKey:  KeyEnter,
		},
		{
			name:     "arrow short name",
			spec:     "Ctrl+Left",
			wantNorm: "Ctrl+ARROW_LEFT",
			wantMods: ModControl,
			wantKey:  KeyArrowLeft,
		},
		{
			name:     "arrow vocabulary name",
			spec:     "Shift+Arrow_Down",
			wantNorm: "Shift+ARROW_DOWN",
			wantMods: ModShift,
			wantKey:  KeyArrowDown,
		},
		{
			name:     "page up abbreviation",
			spec:     "Alt+PgUp",
			wantNorm: "Alt+PAGE_UP",
			wantMods: ModAlt,
			wantKey:  KeyPageUp,
		},
		{
			name:     "print screen",
			spec:     "Super+PrintScreen",
			wantNorm: superModifierName + "+PRINT_SCREEN",
			wantMods: ModSuper,
			wantKey:  KeyPrintScreen,
		},
		{
			name:     "delete abbreviation",
			spec:     "Ctrl+Alt+Del",
			wantNorm: "Ctrl+Alt+DELETE",
			wantMods: ModControl | ModAlt,
			wantKey:  KeyDelete,
		},
		{
			name:     "hex key code",
			spec:     "Ctrl+0x41",
			wantNorm: "Ctrl+0X41",
			wantMods: ModControl,
			wantKey:  Key(0x41),
		},
		{
			name:     "control alias",
			spec:     "Control+A",
			wantNorm: "Ctrl+A",
			wantMods: ModControl,
			wantKey:  letterKey('A'),
		},
		{
			name:     "win alias",
			spec:     "Win+E",
			wantNorm: superModifierName + "+E",
			wantMods: ModSuper,
			wantKey:  letterKey('E'),
		},
		{
			name:     "all modifiers keep input order",
			spec:     "Shift+Ctrl+Alt+Super+A",
			wantNorm: "Shift+Ctrl+Alt+" + superModifierName + "+A",
			wantMods: ModControl | ModAlt | ModShift | ModSuper,
			wantKey:  letterKey('A'),
		},
		{
			name:     "duplicate modifiers deduplicated",
			spec:     "Ctrl+Control+A",
			wantNorm: "Ctrl+A",
			wantMods: ModControl,
			wantKey:  letterKey('A'),
		},
		{
			name:     "whitespace padded",
			spec:     "  Ctrl + Esc  ",
			wantNorm: "Ctrl+ESCAPE",
			wantMods: ModControl,
			wantKey:  KeyEscape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binding, err := ParseBinding(tt.spec)
			if err != nil {
				t.Fatalf("ParseBinding(%q) returned unexpected error: %v", tt.spec, err)
			}
			if binding.Normalized() != tt.wantNorm {
				t.Errorf("Normalized() = %q, want %q", binding.Normalized(), tt.wantNorm)
			}
			if binding.Modifiers() != tt.wantMods {
				t.Errorf("Modifiers() = 0x%X, want 0x%X", binding.Modifiers(), tt.wantMods)
			}
			if binding.Key() != tt.wantKey {
				t.Errorf("Key() = 0x%X, want 0x%X", binding.Key(), tt.wantKey)
			}
		})
	}
}

func TestParseBindingErrors(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantSub string
	}{
		{name: "empty spec", spec: "", wantSub: "empty"},
		{name: "whitespace-only spec", spec: "   ", wantSub: "empty"},
		{name: "key only, no modifier", spec: "A", wantSub: "modifiers and key"},
		{name: "unknown modifier", spec: "Hyper+A", wantSub: "unknown modifier"},
		{name: "missing key token", spec: "Ctrl+", wantSub: "missing hotkey key token"},
		{name: "unknown key name", spec: "Ctrl+Menu", wantSub: "unknown key"},
		{name: "function key out of range", spec: "Ctrl+F25", wantSub: "unknown key"},
		{name: "function key zero", spec: "Ctrl+F0", wantSub: "unknown key"},
		{name: "invalid hex key", spec: "Ctrl+0xZZZZ", wantSub: "invalid hex key"},
		{name: "hex key zero", spec: "Ctrl+0x0000", wantSub: "not a valid key"},
		{name: "hex key beyond any platform range", spec: "Ctrl+0x20000000", wantSub: "out of range"},
		{name: "hex key beyond 32 bits", spec: "Ctrl+0x100000000", wantSub: "invalid hex key"},
		{name: "leading plus", spec: "+A", wantSub: "unknown modifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBinding(tt.spec)
			if err == nil {
				t.Fatalf("ParseBinding(%q) expected error, got nil", tt.spec)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestVocabularyIsDistinct(t *testing.T) {
	mods := []Modifier{ModAlt, ModControl, ModShift, ModSuper}
	var seen Modifier
	for _, m := range mods {
		if m == 0 {
			t.Fatal("modifier constant is zero")
		}
		if seen&m != 0 {
			t.Fatalf("modifier 0x%X overlaps another modifier", m)
		}
		seen |= m
	}

	keys := map[Key]string{}
	for name, nk := range keyByName {
		if prev, ok := keys[nk.key]; ok && prev != nk.name {
			t.Fatalf("key %q and %q share code 0x%X", name, prev, nk.key)
		}
		keys[nk.key] = nk.name
	}
	if len(keys) != 18 {
		t.Fatalf("distinct named keys = %d, want 18 (17 vocabulary keys plus backquote)", len(keys))
	}
}

func TestParseBindingHexKeyUpperBound(t *testing.T) {
	top := fmt.Sprintf("Ctrl+0x%X", uint32(maxKeyCode))
	binding, err := ParseBinding(top)
	if err != nil {
		t.Fatalf("ParseBinding(%q) returned unexpected error: %v", top, err)
	}
	if binding.Key() != maxKeyCode {
		t.Fatalf("Key() = 0x%X, want 0x%X", binding.Key(), maxKeyCode)
	}

	over := fmt.Sprintf("Ctrl+0x%X", uint32(maxKeyCode)+1)
	if _, err := ParseBinding(over); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("ParseBinding(%q) error = %v, want out of range", over, err)
	}
}
