package protocol

import (
	"testing"
)

func TestDescriptorWireLayout(t *testing.T) {
	d := Descriptor{
		ArgsPtr:   0x04030201,
		ArgsLen:   4,
		ResultPtr: 0,
		ResultLen: 0,
	}

	buf, err := d.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() failed: %v", err)
	}

	want := []byte{
		0x01, 0x02, 0x03, 0x04, // args_ptr
		0x04, 0x00, 0x00, 0x00, // args_len
		0x00, 0x00, 0x00, 0x00, // result_ptr
		0x00, 0x00, 0x00, 0x00, // result_len
	}
	if string(buf) != string(want) {
		t.Errorf("wire bytes = %v, want %v", buf, want)
	}
}

func TestDescriptorFieldOrder(t *testing.T) {
	d := Descriptor{ArgsPtr: 1, ArgsLen: 2, ResultPtr: 3, ResultLen: 4}
	buf, _ := d.MarshalBinary()

	offsets := []int{ArgsPtrOffset, ArgsLenOffset, ResultPtrOffset, ResultLenOffset}
	for i, off := range offsets {
		if buf[off] != byte(i+1) {
			t.Errorf("byte at offset %d = %d, want %d", off, buf[off], i+1)
		}
	}
}

func TestDescriptorUnmarshalShort(t *testing.T) {
	var d Descriptor
	if err := d.UnmarshalBinary(make([]byte, DescriptorSize-1)); err == nil {
		t.Error("UnmarshalBinary() should fail for a short buffer")
	}
}

func TestDescriptorUnmarshalPassesResultFieldsThrough(t *testing.T) {
	src := Descriptor{ArgsPtr: 1024, ArgsLen: 9, ResultPtr: 2048, ResultLen: 77}
	buf, _ := src.MarshalBinary()

	var got Descriptor
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary() failed: %v", err)
	}
	if got != src {
		t.Errorf("decoded %+v, want %+v", got, src)
	}
}
