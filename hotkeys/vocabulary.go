package hotkeys

// ID identifies one registered hotkey. The OS echoes it back in every
// notification for that hotkey.
type ID int32

// Modifier is an OS-encoded modifier bitmask. Values are passed to the OS
// unchanged.
type Modifier uint32

// Key is an OS-native virtual-key code (Windows) or keysym (X11).
type Key uint32

// Action is invoked once per notification of the hotkey it is registered for.
type Action func()

// maxID is the upper bound for application-defined hotkey IDs (Win32 reserves
// 0xC000-0xFFFF for shared DLLs). The same bound is applied everywhere so IDs
// behave identically across platforms.
const maxID ID = 0xBFFF

// maxFunctionKey is the highest function key number accepted by ParseBinding.
const maxFunctionKey = 24
