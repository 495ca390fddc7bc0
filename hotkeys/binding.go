package hotkeys

import (
	"fmt"
	"strconv"
	"strings"
)

// Binding describes a parsed global hotkey.
// Construct only via ParseBinding to guarantee invariant consistency.
type Binding struct {
	modifiers  Modifier
	key        Key
	normalized string
}

// Modifiers returns the modifier bitmask.
func (b Binding) Modifiers() Modifier { return b.modifiers }

// Key returns the OS-native key code.
func (b Binding) Key() Key { return b.key }

// Normalized returns the canonical human-readable binding string.
func (b Binding) Normalized() string { return b.normalized }

func (b Binding) String() string { return b.normalized }

var modifierByName = map[string]Modifier{
	"CTRL":    ModControl,
	"CONTROL": ModControl,
	"SHIFT":   ModShift,
	"ALT":     ModAlt,
	"WIN":     ModSuper,
	"SUPER":   ModSuper,
	"META":    ModSuper,
}

type namedKey struct {
	key  Key
	name string
}

var keyByName = map[string]namedKey{
	"BACKSPACE":    {KeyBackspace, "BACKSPACE"},
	"TAB":          {KeyTab, "TAB"},
	"ENTER":        {KeyEnter, "ENTER"},
	"RETURN":       {KeyEnter, "ENTER"},
	"CAPSLOCK":     {KeyCapsLock, "CAPS_LOCK"},
	"CAPS_LOCK":    {KeyCapsLock, "CAPS_LOCK"},
	"ESC":          {KeyEscape, "ESCAPE"},
	"ESCAPE":       {KeyEscape, "ESCAPE"},
	"SPACE":        {KeySpacebar, "SPACEBAR"},
	"SPACEBAR":     {KeySpacebar, "SPACEBAR"},
	"PAGEUP":       {KeyPageUp, "PAGE_UP"},
	"PAGE_UP":      {KeyPageUp, "PAGE_UP"},
	"PGUP":         {KeyPageUp, "PAGE_UP"},
	"PAGEDOWN":     {KeyPageDown, "PAGE_DOWN"},
	"PAGE_DOWN":    {KeyPageDown, "PAGE_DOWN"},
	"PGDN":         {KeyPageDown, "PAGE_DOWN"},
	"END":          {KeyEnd, "END"},
	"HOME":         {KeyHome, "HOME"},
	"LEFT":         {KeyArrowLeft, "ARROW_LEFT"},
	"ARROW_LEFT":   {KeyArrowLeft, "ARROW_LEFT"},
	"RIGHT":        {KeyArrowRight, "ARROW_RIGHT"},
	"ARROW_RIGHT":  {KeyArrowRight, "ARROW_RIGHT"},
	"UP":           {KeyArrowUp, "ARROW_UP"},
	"ARROW_UP":     {KeyArrowUp, "ARROW_UP"},
	"DOWN":         {KeyArrowDown, "ARROW_DOWN"},
	"ARROW_DOWN":   {KeyArrowDown, "ARROW_DOWN"},
	"PRINTSCREEN":  {KeyPrintScreen, "PRINT_SCREEN"},
	"PRINT_SCREEN": {KeyPrintScreen, "PRINT_SCREEN"},
	"PRTSC":        {KeyPrintScreen, "PRINT_SCREEN"},
	"INSERT":       {KeyInsert, "INSERT"},
	"INS":          {KeyInsert, "INSERT"},
	"DELETE":       {KeyDelete, "DELETE"},
	"DEL":          {KeyDelete, "DELETE"},
	"BACKQUOTE":    {backquoteKey(), "`"},
	"GRAVE":        {backquoteKey(), "`"},
}

// ParseBinding parses a binding like "Ctrl+Shift+F12". Modifier and key names
// are case-insensitive; at least one modifier is required.
func ParseBinding(spec string) (Binding, error) {
	raw := strings.TrimSpace(spec)
	if raw == "" {
		return Binding{}, fmt.Errorf("hotkey spec is empty")
	}

	parts := strings.Split(raw, "+")
	if len(parts) < 2 {
		return Binding{}, fmt.Errorf("hotkey must include modifiers and key: %s", raw)
	}

	var modifiers Modifier
	var normalizedMods []string

	for _, token := range parts[:len(parts)-1] {
		name := strings.ToUpper(strings.TrimSpace(token))
		mod, ok := modifierByName[name]
		if !ok {
			return Binding{}, fmt.Errorf("unknown modifier %q in hotkey %q", token, raw)
		}
		if modifiers&mod != 0 {
			continue
		}
		modifiers |= mod
		normalizedMods = append(normalizedMods, modifierName(mod))
	}

	key, normalizedKey, err := parseKey(parts[len(parts)-1])
	if err != nil {
		return Binding{}, err
	}

	normalized := strings.Join(append(normalizedMods, normalizedKey), "+")
	return Binding{
		modifiers:  modifiers,
		key:        key,
		normalized: normalized,
	}, nil
}

func parseKey(raw string) (Key, string, error) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	if token == "" {
		return 0, "", fmt.Errorf("missing hotkey key token")
	}

	if named, ok := keyByName[token]; ok {
		return named.key, named.name, nil
	}

	if len(token) == 1 {
		ch := token[0]
		switch {
		case ch >= 'A' && ch <= 'Z':
			return letterKey(ch), token, nil
		case ch >= '0' && ch <= '9':
			return digitKey(ch), token, nil
		case ch == '`':
			return backquoteKey(), "`", nil
		}
	}

	if n, ok := parseFunctionKey(token); ok {
		return functionKey(n), token, nil
	}

	if strings.HasPrefix(token, "0X") {
		value, err := strconv.ParseUint(token[2:], 16, 32)
		if err != nil {
			return 0, "", fmt.Errorf("invalid hex key %q", raw)
		}
		if value == 0 {
			return 0, "", fmt.Errorf("key code 0x0 is not a valid key")
		}
		if Key(value) > maxKeyCode {
			return 0, "", fmt.Errorf("key code %s is out of range (max 0x%X)", token, maxKeyCode)
		}
		return Key(value), token, nil
	}

	return 0, "", fmt.Errorf("unknown key %q in hotkey spec", raw)
}

func parseFunctionKey(token string) (int, bool) {
	if len(token) < 2 || token[0] != 'F' {
		return 0, false
	}
	n, err := strconv.Atoi(token[1:])
	if err != nil || n < 1 || n > maxFunctionKey {
		return 0, false
	}
	return n, true
}

func modifierName(mod Modifier) string {
	switch mod {
	case ModControl:
		return "Ctrl"
	case ModShift:
		return "Shift"
	case ModAlt:
		return "Alt"
	case ModSuper:
		return superModifierName
	default:
		return "Mod"
	}
}
