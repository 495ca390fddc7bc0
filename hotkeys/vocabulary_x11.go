//go:build !windows

package hotkeys

// X11 modifier masks (X.h). Alt is Mod1 and Super is Mod4 on common layouts.
const (
	ModShift   Modifier = 1 << 0
	ModControl Modifier = 1 << 2
	ModAlt     Modifier = 1 << 3
	ModSuper   Modifier = 1 << 6
)

// Lock masks that X11 folds into the grab state. The X11 backend grabs
// variants with these set so a hotkey keeps firing with CapsLock/NumLock on.
const (
	modCapsLock Modifier = 1 << 1
	modNumLock  Modifier = 1 << 4
)

// X11 keysyms (keysymdef.h).
const (
	KeyBackspace   Key = 0xff08
	KeyTab         Key = 0xff09
	KeyEnter       Key = 0xff0d
	KeyCapsLock    Key = 0xffe5
	KeyEscape      Key = 0xff1b
	KeySpacebar    Key = 0x0020
	KeyPageUp      Key = 0xff55
	KeyPageDown    Key = 0xff56
	KeyEnd         Key = 0xff57
	KeyHome        Key = 0xff50
	KeyArrowLeft   Key = 0xff51
	KeyArrowUp     Key = 0xff52
	KeyArrowRight  Key = 0xff53
	KeyArrowDown   Key = 0xff54
	KeyPrintScreen Key = 0xff61
	KeyInsert      Key = 0xff63
	KeyDelete      Key = 0xffff
)

const (
	xkGrave Key = 0x0060
	xkF1    Key = 0xffbe
)

const superModifierName = "Super"

// maxKeyCode is the largest keysym value; keysyms are 29-bit.
const maxKeyCode Key = 0x1FFFFFFF

// letterKey maps 'A'..'Z' to the lower-case keysym; X11 grabs are made on the
// unshifted symbol.
func letterKey(ch byte) Key { return Key(ch - 'A' + 'a') }

func digitKey(ch byte) Key { return Key(ch) }

func functionKey(n int) Key { return xkF1 + Key(n-1) }

func backquoteKey() Key { return xkGrave }
