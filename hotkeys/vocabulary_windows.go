//go:build windows

package hotkeys

// Win32 RegisterHotKey modifier flags.
const (
	ModAlt     Modifier = 0x0001
	ModControl Modifier = 0x0002
	ModShift   Modifier = 0x0004
	ModSuper   Modifier = 0x0008
)

// Win32 virtual-key codes.
const (
	KeyBackspace   Key = 0x08
	KeyTab         Key = 0x09
	KeyEnter       Key = 0x0D
	KeyCapsLock    Key = 0x14
	KeyEscape      Key = 0x1B
	KeySpacebar    Key = 0x20
	KeyPageUp      Key = 0x21
	KeyPageDown    Key = 0x22
	KeyEnd         Key = 0x23
	KeyHome        Key = 0x24
	KeyArrowLeft   Key = 0x25
	KeyArrowUp     Key = 0x26
	KeyArrowRight  Key = 0x27
	KeyArrowDown   Key = 0x28
	KeyPrintScreen Key = 0x2C
	KeyInsert      Key = 0x2D
	KeyDelete      Key = 0x2E
)

const (
	vkOem3 Key = 0xC0
	vkF1   Key = 0x70
)

const superModifierName = "Win"

// maxKeyCode is the largest virtual-key code; 0xFF is reserved.
const maxKeyCode Key = 0xFE

// letterKey maps 'A'..'Z' to its virtual-key code (same as the ASCII upper case).
func letterKey(ch byte) Key { return Key(ch) }

// digitKey maps '0'..'9' to its virtual-key code.
func digitKey(ch byte) Key { return Key(ch) }

func functionKey(n int) Key { return vkF1 + Key(n-1) }

func backquoteKey() Key { return vkOem3 }
