package ipc

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
)

// Some serialization designs lean on language-level thread-local buffers so
// a value's custom encode/decode logic can stash side-band handles
// somewhere the top-level call can retrieve them once the generic walk
// returns. Go has nothing equivalent (goroutines are not OS threads, and
// borrowing one goroutine-local slot per call is not safe against
// migration), so this package threads an explicit state object through a
// hand-written reflective walk instead: encodeState/decodeState below.
// Every Send/Recv call gets its own independent state, so there is no
// save/restore bracketing to get wrong.
//
// The walk recurses structurally over composite kinds it needs to look
// inside for embedded endpoints (structs, slices, arrays, maps, pointers)
// and hands every other value to msgpack for the actual wire bytes.

// ipcEncodable is implemented by every endpoint type the codec may find
// embedded in a value being sent: TypedSender, TypedReceiver, BytesSender,
// BytesReceiver, SharedMemory, OpaqueSender, OpaqueReceiver.
type ipcEncodable interface {
	ipcEncode(st *encodeState) error
}

// ipcDecodable is implemented on the pointer receiver of the same types, so
// the walk can reconstruct one in place over an addressable struct field.
type ipcDecodable interface {
	ipcDecode(st *decodeState) error
}

type encodeState struct {
	buf      *bytes.Buffer
	channels []platform.Channel
	memory   []platform.Memory
}

type decodeState struct {
	r       *bytes.Reader
	handles []platform.OpaqueHandle
	memory  []platform.Memory
	nextH   int
	nextM   int
}

func (st *decodeState) takeHandle() (platform.OpaqueHandle, error) {
	if st.nextH >= len(st.handles) {
		return nil, ErrIndexOutOfRange
	}
	h := st.handles[st.nextH]
	st.nextH++
	return h, nil
}

func (st *decodeState) takeMemory() (platform.Memory, error) {
	if st.nextM >= len(st.memory) {
		return nil, ErrIndexOutOfRange
	}
	m := st.memory[st.nextM]
	st.nextM++
	return m, nil
}

// encode walks v and produces a payload plus the side-band channels/memory
// it found embedded anywhere inside it.
func encode[T any](v T) ([]byte, []platform.Channel, []platform.Memory, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	st := &encodeState{buf: buf}

	rv := reflect.ValueOf(&v).Elem()
	if err := encodeValue(rv, st); err != nil {
		// Nothing is sent: close every handle and memory clone gathered
		// before the failure so a failed encode leaks no descriptors.
		for _, c := range st.channels {
			switch c.Kind {
			case platform.ChannelKindSender:
				c.Sender.Close()
			case platform.ChannelKindReceiver:
				c.Receiver.Close()
			}
		}
		for _, m := range st.memory {
			m.Close()
		}
		return nil, nil, nil, serializationErr("encode", err)
	}

	payload := make([]byte, buf.Len())
	copy(payload, buf.Bytes())
	return payload, st.channels, st.memory, nil
}

// decode reconstructs a T from a payload and the side-band vectors a
// backend delivered alongside it.
func decode[T any](payload []byte, handles []platform.OpaqueHandle, memory []platform.Memory) (T, error) {
	var v T
	st := &decodeState{r: bytes.NewReader(payload), handles: handles, memory: memory}

	rv := reflect.ValueOf(&v).Elem()
	if err := decodeValue(rv, st); err != nil {
		return v, serializationErr("decode", err)
	}
	return v, nil
}

// encodeValue recurses over rv, delegating embedded endpoints to their
// ipcEncode method and leaf scalars to msgpack.
func encodeValue(rv reflect.Value, st *encodeState) error {
	if rv.CanAddr() {
		if enc, ok := rv.Addr().Interface().(ipcEncodable); ok {
			return enc.ipcEncode(st)
		}
	}
	// Skip this fallback for pointer-kind values: every endpoint type's
	// ipcEncode has a value receiver, so *T also satisfies ipcEncodable by
	// promotion, which would swallow a pointer-to-endpoint field here
	// without writing the presence byte decodeValue's Ptr case expects.
	// Falling through to the switch below recurses into rv.Elem() instead,
	// which hits the CanAddr branch above and stays symmetric with decode.
	if rv.Kind() != reflect.Ptr {
		if enc, ok := rv.Interface().(ipcEncodable); ok {
			return enc.ipcEncode(st)
		}
	}

	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return st.buf.WriteByte(0)
		}
		if err := st.buf.WriteByte(1); err != nil {
			return err
		}
		return encodeValue(rv.Elem(), st)

	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if rv.Type().Field(i).PkgPath != "" {
				continue // unexported
			}
			if err := encodeValue(rv.Field(i), st); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return encodeLeaf(rv.Interface(), st)
		}
		if rv.IsNil() {
			return writeVarint(st.buf, 0)
		}
		if err := writeVarint(st.buf, uint64(rv.Len())+1); err != nil {
			return err
		}
		for i := 0; i < rv.Len(); i++ {
			if err := encodeValue(rv.Index(i), st); err != nil {
				return err
			}
		}
		return nil

	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return encodeLeaf(rv.Interface(), st)
		}
		for i := 0; i < rv.Len(); i++ {
			if err := encodeValue(rv.Index(i), st); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		return encodeMap(rv, st)

	default:
		return encodeLeaf(rv.Interface(), st)
	}
}

// decodeValue mirrors encodeValue's traversal order exactly; rv must be
// addressable.
func decodeValue(rv reflect.Value, st *decodeState) error {
	if rv.CanAddr() {
		if dec, ok := rv.Addr().Interface().(ipcDecodable); ok {
			return dec.ipcDecode(st)
		}
	}

	switch rv.Kind() {
	case reflect.Ptr:
		tag, err := st.r.ReadByte()
		if err != nil {
			return err
		}
		if tag == 0 {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		rv.Set(reflect.New(rv.Type().Elem()))
		return decodeValue(rv.Elem(), st)

	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if rv.Type().Field(i).PkgPath != "" {
				continue
			}
			if err := decodeValue(rv.Field(i), st); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return decodeLeaf(rv, st)
		}
		n, err := readVarint(st.r)
		if err != nil {
			return err
		}
		if n == 0 {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		length := int(n - 1)
		out := reflect.MakeSlice(rv.Type(), length, length)
		for i := 0; i < length; i++ {
			if err := decodeValue(out.Index(i), st); err != nil {
				return err
			}
		}
		rv.Set(out)
		return nil

	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return decodeLeaf(rv, st)
		}
		for i := 0; i < rv.Len(); i++ {
			if err := decodeValue(rv.Index(i), st); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		return decodeMap(rv, st)

	default:
		return decodeLeaf(rv, st)
	}
}

// Maps are walked key-sorted so two encodes of the same logical map produce
// the same bytes; reflect.Value.MapRange order is randomized by design, so
// without this two Sends of an identical map could legitimately disagree.
func encodeMap(rv reflect.Value, st *encodeState) error {
	if rv.IsNil() {
		return writeVarint(st.buf, 0)
	}
	keys := rv.MapKeys()
	entries := make([][2]reflect.Value, len(keys))
	encodedKeys := make([][]byte, len(keys))
	for i, k := range keys {
		kb, err := msgpack.Marshal(k.Interface())
		if err != nil {
			return err
		}
		encodedKeys[i] = kb
		entries[i] = [2]reflect.Value{k, rv.MapIndex(k)}
	}
	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && bytes.Compare(encodedKeys[order[j-1]], encodedKeys[order[j]]) > 0; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}

	if err := writeVarint(st.buf, uint64(len(keys))+1); err != nil {
		return err
	}
	for _, idx := range order {
		if err := encodeValue(entries[idx][0], st); err != nil {
			return err
		}
		if err := encodeValue(entries[idx][1], st); err != nil {
			return err
		}
	}
	return nil
}

func decodeMap(rv reflect.Value, st *decodeState) error {
	n, err := readVarint(st.r)
	if err != nil {
		return err
	}
	if n == 0 {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}
	count := int(n - 1)
	out := reflect.MakeMapWithSize(rv.Type(), count)
	keyType := rv.Type().Key()
	valType := rv.Type().Elem()
	for i := 0; i < count; i++ {
		k := reflect.New(keyType).Elem()
		if err := decodeValue(k, st); err != nil {
			return err
		}
		v := reflect.New(valType).Elem()
		if err := decodeValue(v, st); err != nil {
			return err
		}
		out.SetMapIndex(k, v)
	}
	rv.Set(out)
	return nil
}

func encodeLeaf(v interface{}, st *encodeState) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("msgpack encode: %w", err)
	}
	return writeLeaf(st.buf, b)
}

func decodeLeaf(rv reflect.Value, st *decodeState) error {
	b, err := readLeaf(st.r)
	if err != nil {
		return err
	}
	if !rv.CanAddr() {
		return fmt.Errorf("ipc: cannot decode into unaddressable %s", rv.Type())
	}
	if err := msgpack.Unmarshal(b, rv.Addr().Interface()); err != nil {
		return fmt.Errorf("msgpack decode into %s: %w", rv.Type(), err)
	}
	return nil
}
