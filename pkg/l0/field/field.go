package field

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/fieldlink/pkg/l0/comm"
)

// Field is a named, typed, fixed-arity slot of remote state.
type Field struct {
	name     string
	id       byte
	typ      ValueType
	quantity int

	device   *Device
	lock     sync.Mutex
	pending  []*pendingGet
	watchers []*watcher
	last     Value
	lastAt   time.Time
}

// pendingGet is a one-shot continuation waiting for the next value.
type pendingGet struct {
	deliver  func(Value)
	expire   func()
	expireAt time.Time
}

type watcher struct {
	fn func(Value)
}

// Result is the result of a Request.
type Result struct {
	Value Value
	Err   error
}

// Request is a GET waiting for a value.
type Request struct {
	field    *Field
	resultCh chan Result
}

// Field returns the requested field.
func (r *Request) Field() *Field {
	return r.field
}

// ResultChan returns the chan to retrieve result.
func (r *Request) ResultChan() <-chan Result {
	return r.resultCh
}

// NewField creates a detached field. Use Device.Register to bind it
// to a device.
func NewField(name string, id byte, typ ValueType, quantity int) (*Field, error) {
	if !typ.IsValid() {
		return nil, fmt.Errorf("%w: field %q has unknown type %d", ErrInvalidField, name, typ)
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: field %q has quantity %d", ErrInvalidField, name, quantity)
	}
	if size := typ.Size() * quantity; size > comm.MaxPayloadSize {
		return nil, fmt.Errorf("%w: field %q payload of %d bytes exceeds %d", ErrInvalidField, name, size, comm.MaxPayloadSize)
	}
	return &Field{name: name, id: id, typ: typ, quantity: quantity}, nil
}

// Name returns the application facing name.
func (f *Field) Name() string { return f.name }

// ID returns the wire id.
func (f *Field) ID() byte { return f.id }

// Type returns the element type.
func (f *Field) Type() ValueType { return f.typ }

// Quantity returns the number of elements.
func (f *Field) Quantity() int { return f.quantity }

// IsList indicates the field is an array.
func (f *Field) IsList() bool { return f.quantity > 1 }

// PayloadSize returns the encoded size of a value.
func (f *Field) PayloadSize() int { return f.typ.Size() * f.quantity }

// String implements fmt.Stringer.
func (f *Field) String() string {
	if f.quantity > 1 {
		return fmt.Sprintf("%s(id=%d, %s[%d])", f.name, f.id, f.typ, f.quantity)
	}
	return fmt.Sprintf("%s(id=%d, %s)", f.name, f.id, f.typ)
}

// Pending returns the number of queued continuations.
func (f *Field) Pending() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.pending)
}

// Last returns the most recently received value.
func (f *Field) Last() (Value, time.Time, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.last, f.lastAt, !f.lastAt.IsZero()
}

func (f *Field) check(want ValueType, list bool) error {
	if f.typ != want || f.IsList() != list {
		return &TypeMismatchError{Field: f.name, Want: want, WantList: list, Have: f.typ, Quantity: f.quantity}
	}
	return nil
}

func (f *Field) checkLen(n int) error {
	if n != f.quantity {
		return &TypeMismatchError{Field: f.name, Want: f.typ, WantList: f.IsList(), Have: f.typ, Quantity: f.quantity, Len: n}
	}
	return nil
}

// get queues a continuation and sends a GET frame. The continuation is
// queued first so a reply can't arrive before it's waiting.
func (f *Field) get(p *pendingGet) error {
	d := f.device
	if d == nil {
		return ErrNotAttached
	}
	if exp := d.Expiration; exp > 0 {
		p.expireAt = d.now().Add(exp)
	}
	f.lock.Lock()
	f.pending = append(f.pending, p)
	f.lock.Unlock()
	if err := d.Conn.Send(comm.NewGet(f.id)); err != nil {
		f.lock.Lock()
		for i, q := range f.pending {
			if q == p {
				f.pending = append(f.pending[:i], f.pending[i+1:]...)
				break
			}
		}
		f.lock.Unlock()
		return err
	}
	return nil
}

func (f *Field) getTyped(want ValueType, list bool, deliver func(Value)) error {
	if err := f.check(want, list); err != nil {
		return err
	}
	return f.get(&pendingGet{deliver: deliver, expire: f.logExpired})
}

func (f *Field) logExpired() {
	glog.Warningf("field %q: no value received, request expired", f.name)
}

// Get requests the value regardless of type.
func (f *Field) Get(fn func(Value)) error {
	return f.get(&pendingGet{deliver: fn, expire: f.logExpired})
}

// Request sends a GET and returns a Request to retrieve the value.
// The result is ErrExpired if no value arrives before the device expiration.
func (f *Field) Request() (*Request, error) {
	r := &Request{field: f, resultCh: make(chan Result, 1)}
	err := f.get(&pendingGet{
		deliver: func(v Value) { r.resultCh <- Result{Value: v} },
		expire:  func() { r.resultCh <- Result{Err: ErrExpired} },
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Fetch requests the value and waits for it.
func (f *Field) Fetch(ctx context.Context) (Value, error) {
	r, err := f.Request()
	if err != nil {
		return Value{}, err
	}
	select {
	case res := <-r.ResultChan():
		return res.Value, res.Err
	case <-ctx.Done():
		return Value{}, ctx.Err()
	}
}

// GetByte requests a byte.
func (f *Field) GetByte(fn func(byte)) error {
	return f.getTyped(TypeByte, false, func(v Value) {
		b, _ := v.Byte()
		fn(b)
	})
}

// GetBytes requests a byte array.
func (f *Field) GetBytes(fn func([]byte)) error {
	return f.getTyped(TypeByte, true, func(v Value) {
		b, _ := v.Bytes()
		fn(b)
	})
}

// GetBool requests a byte as boolean.
func (f *Field) GetBool(fn func(bool)) error {
	return f.getTyped(TypeByte, false, func(v Value) {
		b, _ := v.Bool()
		fn(b)
	})
}

// GetBools requests a byte array as booleans.
func (f *Field) GetBools(fn func([]bool)) error {
	return f.getTyped(TypeByte, true, func(v Value) {
		b, _ := v.Bools()
		fn(b)
	})
}

// GetChar requests a byte as character code.
func (f *Field) GetChar(fn func(rune)) error {
	return f.getTyped(TypeByte, false, func(v Value) {
		c, _ := v.Char()
		fn(c)
	})
}

// GetChars requests a byte array as string.
func (f *Field) GetChars(fn func(string)) error {
	return f.getTyped(TypeByte, true, func(v Value) {
		s, _ := v.Chars()
		fn(s)
	})
}

// GetInt requests an int.
func (f *Field) GetInt(fn func(int32)) error {
	return f.getTyped(TypeInt, false, func(v Value) {
		n, _ := v.Int()
		fn(n)
	})
}

// GetInts requests an int array.
func (f *Field) GetInts(fn func([]int32)) error {
	return f.getTyped(TypeInt, true, func(v Value) {
		n, _ := v.Ints()
		fn(n)
	})
}

// GetFloat requests a float.
func (f *Field) GetFloat(fn func(float32)) error {
	return f.getTyped(TypeFloat, false, func(v Value) {
		n, _ := v.Float()
		fn(n)
	})
}

// GetFloats requests a float array.
func (f *Field) GetFloats(fn func([]float32)) error {
	return f.getTyped(TypeFloat, true, func(v Value) {
		n, _ := v.Floats()
		fn(n)
	})
}

// GetDouble requests a float widened to float64.
func (f *Field) GetDouble(fn func(float64)) error {
	return f.getTyped(TypeFloat, false, func(v Value) {
		n, _ := v.Double()
		fn(n)
	})
}

// GetDoubles requests a float array widened to float64.
func (f *Field) GetDoubles(fn func([]float64)) error {
	return f.getTyped(TypeFloat, true, func(v Value) {
		n, _ := v.Doubles()
		fn(n)
	})
}

// Set sends a value. Its type must match and its length must equal the quantity.
func (f *Field) Set(v Value) error {
	if v.Type() != f.typ {
		return &TypeMismatchError{Field: f.name, Want: v.Type(), WantList: v.Len() > 1, Have: f.typ, Quantity: f.quantity}
	}
	return f.send(v)
}

func (f *Field) send(v Value) error {
	if err := f.checkLen(v.Len()); err != nil {
		return err
	}
	d := f.device
	if d == nil {
		return ErrNotAttached
	}
	return d.Conn.Send(comm.NewSet(f.id, v.Encode()))
}

func (f *Field) setTyped(want ValueType, list bool, v Value) error {
	if err := f.check(want, list); err != nil {
		return err
	}
	return f.send(v)
}

// SetByte sends a byte.
func (f *Field) SetByte(b byte) error {
	return f.setTyped(TypeByte, false, Bytes(b))
}

// SetBytes sends a byte array.
func (f *Field) SetBytes(b []byte) error {
	return f.setTyped(TypeByte, true, Bytes(b...))
}

// SetBool sends a boolean as 1 or 0.
func (f *Field) SetBool(b bool) error {
	return f.setTyped(TypeByte, false, Bools(b))
}

// SetBools sends booleans as 1 or 0.
func (f *Field) SetBools(b []bool) error {
	return f.setTyped(TypeByte, true, Bools(b...))
}

// SetChar sends a character code which must fit in a byte.
func (f *Field) SetChar(c rune) error {
	if err := f.check(TypeByte, false); err != nil {
		return err
	}
	if c < 0 || c > 0xff {
		return fmt.Errorf("%w: char %q doesn't fit in a byte", ErrValueRange, c)
	}
	return f.send(Bytes(byte(c)))
}

// SetChars sends the bytes of s.
func (f *Field) SetChars(s string) error {
	return f.setTyped(TypeByte, true, Chars(s))
}

// SetInt sends an int.
func (f *Field) SetInt(n int32) error {
	return f.setTyped(TypeInt, false, Ints(n))
}

// SetInts sends an int array.
func (f *Field) SetInts(n []int32) error {
	return f.setTyped(TypeInt, true, Ints(n...))
}

// SetFloat sends a float.
func (f *Field) SetFloat(n float32) error {
	return f.setTyped(TypeFloat, false, Floats(n))
}

// SetFloats sends a float array.
func (f *Field) SetFloats(n []float32) error {
	return f.setTyped(TypeFloat, true, Floats(n...))
}

// SetDouble sends a float64 truncated to single precision.
func (f *Field) SetDouble(n float64) error {
	return f.setTyped(TypeFloat, false, Doubles(n))
}

// SetDoubles sends float64s truncated to single precision.
func (f *Field) SetDoubles(n []float64) error {
	return f.setTyped(TypeFloat, true, Doubles(n...))
}

// Watch registers fn to be called with every value received.
// The returned func cancels the registration.
func (f *Field) Watch(fn func(Value)) (cancel func()) {
	w := &watcher{fn: fn}
	f.lock.Lock()
	f.watchers = append(f.watchers, w)
	f.lock.Unlock()
	return func() {
		f.lock.Lock()
		defer f.lock.Unlock()
		for i, e := range f.watchers {
			if e == w {
				f.watchers = append(f.watchers[:i], f.watchers[i+1:]...)
				return
			}
		}
	}
}

// receive decodes a payload and flushes all pending continuations in order.
func (f *Field) receive(payload []byte, now time.Time) error {
	v, err := Decode(f.typ, f.quantity, payload)
	if err != nil {
		if sizeErr, ok := err.(*PayloadSizeError); ok {
			sizeErr.Field = f.name
		}
		return err
	}
	f.lock.Lock()
	pending := f.pending
	f.pending = nil
	watchers := make([]*watcher, len(f.watchers))
	copy(watchers, f.watchers)
	f.last, f.lastAt = v, now
	f.lock.Unlock()

	for _, p := range pending {
		if !p.expireAt.IsZero() && now.After(p.expireAt) {
			if p.expire != nil {
				p.expire()
			}
			continue
		}
		p.deliver(v)
	}
	for _, w := range watchers {
		w.fn(v)
	}
	return nil
}

// purgeExpired drops continuations which expired before now.
func (f *Field) purgeExpired(now time.Time) {
	var expired []*pendingGet
	f.lock.Lock()
	kept := f.pending[:0]
	for _, p := range f.pending {
		if !p.expireAt.IsZero() && now.After(p.expireAt) {
			expired = append(expired, p)
		} else {
			kept = append(kept, p)
		}
	}
	f.pending = kept
	f.lock.Unlock()
	for _, p := range expired {
		if p.expire != nil {
			p.expire()
		}
	}
}
