// Package wasmtest assembles small guest modules that speak the call ABI,
// so most host tests do not depend on a Go-to-wasip1 build step.
// BuildGoGuest covers the ones that need a real Go guest.
package wasmtest

var (
	i32 byte = 0x7f

	typeHandOff  = []byte{0x60, 0x02, i32, i32, 0x00} // (i32, i32) -> ()
	typeAllocate = []byte{0x60, 0x01, i32, 0x01, i32} // (i32) -> i32
	typeEntry    = []byte{0x60, 0x01, i32, 0x00}      // (i32) -> ()
)

// allocateBody is a bump allocator over global 0.
var allocateBody = []byte{
	0x00,       // no locals
	0x23, 0x00, // global.get 0 (returned)
	0x23, 0x00, // global.get 0
	0x20, 0x00, // local.get 0
	0x6a,       // i32.add
	0x24, 0x00, // global.set 0
	0x0b, // end
}

// EchoBody hands the descriptor's args region straight back.
var EchoBody = []byte{
	0x00,                         // no locals
	0x20, 0x00, 0x28, 0x02, 0x00, // i32.load offset=0 (args_ptr)
	0x20, 0x00, 0x28, 0x02, 0x04, // i32.load offset=4 (args_len)
	0x10, 0x00, // call $ret
	0x00, // unreachable
	0x0b, // end
}

// SilentBody returns without calling ret.
var SilentBody = []byte{0x00, 0x0b}

// TrapBody hits unreachable.
var TrapBody = []byte{0x00, 0x00, 0x0b}

// SpinBody loops forever.
var SpinBody = []byte{
	0x00,
	0x03, 0x40, // loop
	0x0c, 0x00, // br 0
	0x0b, // end loop
	0x0b,
}

// BadHandOffBody calls ret with a region past the end of memory.
func BadHandOffBody() []byte {
	body := []byte{0x00, 0x41}
	body = append(body, sleb(65530)...)
	body = append(body, 0x41)
	body = append(body, sleb(100)...)
	return append(body, 0x10, 0x00, 0x00, 0x0b)
}

// EchoGuest returns a guest whose call hands its input straight back.
func EchoGuest() []byte { return Guest(EchoBody, true) }

// Guest assembles a module importing env.ret and exporting memory,
// allocate and call, with call implemented by entryBody.
func Guest(entryBody []byte, withAllocate bool) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	out = append(out, section(0x01, vec(typeHandOff, typeAllocate, typeEntry))...)
	out = append(out, section(0x02, vec(cat(name("env"), name("ret"), []byte{0x00, 0x00})))...)
	out = append(out, section(0x03, vec([]byte{0x01}, []byte{0x02}))...)
	out = append(out, section(0x05, vec([]byte{0x00, 0x01}))...)

	global := cat([]byte{i32, 0x01, 0x41}, sleb(1024), []byte{0x0b})
	out = append(out, section(0x06, vec(global))...)

	exports := [][]byte{
		cat(name("memory"), []byte{0x02, 0x00}),
		cat(name("call"), []byte{0x00, 0x02}),
	}
	if withAllocate {
		exports = append(exports, cat(name("allocate"), []byte{0x00, 0x01}))
	}
	out = append(out, section(0x07, vec(exports...))...)

	out = append(out, section(0x0a, vec(codeBody(allocateBody), codeBody(entryBody)))...)
	return out
}

func section(id byte, content []byte) []byte {
	return cat([]byte{id}, uleb(uint32(len(content))), content)
}

func vec(items ...[]byte) []byte {
	return cat(append([][]byte{uleb(uint32(len(items)))}, items...)...)
}

func codeBody(body []byte) []byte {
	return cat(uleb(uint32(len(body))), body)
}

func name(s string) []byte {
	return cat(uleb(uint32(len(s))), []byte(s))
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
